// Package httpserver exposes the device description, SCPD documents, SOAP
// control endpoints, and SUBSCRIBE/UNSUBSCRIBE handlers over HTTP, a chi
// router driven entirely by internal/upnp.Device and internal/events.Manager.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/mileusna/useragent"
	"github.com/unrolled/secure"

	"github.com/navidrome/renderd/internal/events"
	"github.com/navidrome/renderd/internal/upnp"
	"github.com/navidrome/renderd/log"
)

// Server binds an HTTP listener serving the device description, SCPD
// documents, SOAP control URLs, and event subscription endpoints.
type Server struct {
	device *upnp.Device
	events *events.Manager
	srv    *http.Server

	BoundPort int
}

func init() {
	chi.RegisterMethod("SUBSCRIBE")
	chi.RegisterMethod("UNSUBSCRIBE")
}

func New(device *upnp.Device, mgr *events.Manager) *Server {
	return &Server{device: device, events: mgr}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
	}).Handler)
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}}))
	r.Use(httprate.LimitByIP(120, time.Minute))
	r.Use(logRequest)

	r.Get("/debug/events", s.handleDebugEvents)
	r.Get("/description.xml", s.handleDeviceDescription)
	for _, svc := range []upnp.ServiceName{upnp.AVTransport, upnp.RenderingControl, upnp.ConnectionManager} {
		svc := svc
		base := "/dlna/" + string(svc)
		r.Get(base+"/scpd.xml", s.handleSCPD(svc))
		r.Post(base+"/control", s.handleControl(svc))
		r.Method("SUBSCRIBE", base+"/event", s.handleSubscribe(svc))
		r.Method("UNSUBSCRIBE", base+"/event", s.handleUnsubscribe(svc))
	}
	return r
}

// Run binds to the configured port (0 meaning "pick one"), falling back to
// an ephemeral port on EADDRINUSE, then serves until ctx is canceled.
func (s *Server) Run(ctx context.Context, preferredPort int) error {
	ln, err := bindWithFallback(preferredPort)
	if err != nil {
		return err
	}
	s.BoundPort = ln.Addr().(*net.TCPAddr).Port

	s.srv = &http.Server{Handler: s.routes()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func bindWithFallback(preferredPort int) (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", preferredPort))
	if err == nil {
		return ln, nil
	}
	if preferredPort == 0 {
		return nil, err
	}
	log.Warn(context.Background(), "preferred port unavailable, falling back to an ephemeral one", err, "port", preferredPort)
	return net.Listen("tcp", ":0")
}

var debugUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleDebugEvents streams every published state-variable batch over a
// websocket, a live-tail convenience for operators debugging a control
// point's view of the device without needing a real UPnP event subscriber.
func (s *Server) handleDebugEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := debugUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug(r.Context(), "debug events upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ch, unregister := s.events.Tail()
	defer unregister()

	for {
		select {
		case <-r.Context().Done():
			return
		case tail, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(tail); err != nil {
				return
			}
		}
	}
}

// logRequest logs every request at debug level, naming the control point's
// client software when the User-Agent is recognizable (Sonos, BubbleUPnP,
// and friends all identify themselves distinctly here).
func logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := useragent.Parse(r.UserAgent())
		log.Debug(r.Context(), "http request",
			"method", r.Method, "path", r.URL.Path,
			"client", ua.Name, "client_version", ua.Version, "os", ua.OS)
		next.ServeHTTP(w, r)
	})
}
