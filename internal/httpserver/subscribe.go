package httpserver

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/navidrome/renderd/internal/upnp"
	"github.com/navidrome/renderd/log"
)

var callbackPattern = regexp.MustCompile(`<(.*?)>`)

// handleSubscribe implements GENA SUBSCRIBE: a request carrying SID renews
// an existing subscription (412 if unknown), one carrying CALLBACK creates
// a new one, and one with neither is also a 412.
func (s *Server) handleSubscribe(service upnp.ServiceName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sid := r.Header.Get("SID")
		callback := r.Header.Get("CALLBACK")
		timeout := parseTimeoutHeader(r.Header.Get("TIMEOUT"))

		switch {
		case sid != "":
			newTimeout, err := s.events.Renew(sid, timeout)
			if err != nil {
				http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
				return
			}
			writeSubscribeOK(w, sid, newTimeout)

		case callback != "":
			url := extractCallbackURL(callback)
			if url == "" {
				http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
				return
			}
			newSid, newTimeout, err := s.events.Subscribe(ctx, service, url, timeout, s.observedSnapshot(service))
			if err != nil {
				log.Error(ctx, "subscribe failed", err, "service", service)
				http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
				return
			}
			writeSubscribeOK(w, newSid, newTimeout)

		default:
			http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
		}
	}
}

func (s *Server) handleUnsubscribe(service upnp.ServiceName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := r.Header.Get("SID")
		if sid == "" {
			http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
			return
		}
		if err := s.events.Unsubscribe(sid); err != nil {
			http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) stateTable(service upnp.ServiceName) *upnp.StateTable {
	switch service {
	case upnp.AVTransport:
		return s.device.AVTransport
	case upnp.RenderingControl:
		return s.device.RenderingControl
	default:
		return s.device.ConnectionManager
	}
}

// observedSnapshot builds the initial-event payload: the current value of
// every evented variable of the service, nothing else.
func (s *Server) observedSnapshot(service upnp.ServiceName) map[string]string {
	table := s.stateTable(service)
	snapshot := make(map[string]string)
	for _, name := range table.ObservedNames() {
		snapshot[name] = table.Get(name)
	}
	return snapshot
}

func extractCallbackURL(header string) string {
	matches := callbackPattern.FindStringSubmatch(header)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// parseTimeoutHeader parses "Second-1800" into a duration, per the GENA
// SUBSCRIBE TIMEOUT header format.
func parseTimeoutHeader(header string) time.Duration {
	if !strings.HasPrefix(header, "Second-") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(header, "Second-"))
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func writeSubscribeOK(w http.ResponseWriter, sid string, timeout time.Duration) {
	w.Header().Set("SID", sid)
	w.Header().Set("TIMEOUT", "Second-"+strconv.Itoa(int(timeout.Seconds())))
	w.WriteHeader(http.StatusOK)
}
