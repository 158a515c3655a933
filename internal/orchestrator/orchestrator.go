// Package orchestrator wires together settings, the UPnP device registry,
// the renderer driver, the event notifier, SSDP discovery and the HTTP
// server into one supervised process: it owns startup order, the
// auto-port/IP-change retry loop, and coordinated shutdown.
package orchestrator

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/navidrome/renderd/conf"
	"github.com/navidrome/renderd/internal/events"
	"github.com/navidrome/renderd/internal/history"
	"github.com/navidrome/renderd/internal/httpserver"
	"github.com/navidrome/renderd/internal/metrics"
	"github.com/navidrome/renderd/internal/player"
	"github.com/navidrome/renderd/internal/settings"
	"github.com/navidrome/renderd/internal/ssdp"
	"github.com/navidrome/renderd/internal/upnp"
	"github.com/navidrome/renderd/log"
)

// Renderer is the fully wired process: one UPnP device, one player driver,
// one event notifier, one SSDP advertiser, one HTTP server, and an optional
// history recorder.
type Renderer struct {
	store    *settings.Store
	device   *upnp.Device
	events   *events.Manager
	player   *player.Driver
	http     *httpserver.Server
	ssdp     *ssdp.Server
	history  *history.Store
	friendly string

	restartSSDP chan struct{}
}

// New assembles every component from conf.Server but starts nothing yet.
func New() (*Renderer, error) {
	cfg := conf.Server

	store, err := settings.Open(cfg.DataFolder)
	if err != nil {
		return nil, err
	}

	friendly := store.FriendlyName(cfg.FriendlyName)
	device := upnp.NewDevice(store.USN(), friendly)

	mgr := events.NewManager(events.Config{
		DefaultTimeout:  cfg.Events.DefaultTimeout,
		MaxMissedEvents: cfg.Events.MaxMissedEvents,
	})
	device.SetEventPublisher(mgr)

	drv := player.New(player.Config{
		Binary:        cfg.Player.Binary,
		ExtraArgs:     cfg.Player.ExtraArgs,
		Socket:        cfg.Player.Socket,
		Fullscreen:    cfg.Player.Fullscreen,
		OnTop:         cfg.Player.OnTop,
		HWDecode:      cfg.Player.HWDecode,
		Geometry:      cfg.Player.Geometry,
		Autofit:       cfg.Player.Autofit,
		InitialVolume: cfg.Player.InitialVolume,
	}, device)
	device.SetPlayer(drv)

	httpSrv := httpserver.New(device, mgr)

	r := &Renderer{
		store:       store,
		device:      device,
		events:      mgr,
		player:      drv,
		http:        httpSrv,
		friendly:    friendly,
		restartSSDP: make(chan struct{}, 1),
	}

	if cfg.History.Enabled {
		h, err := history.Open(cfg.DataFolder, cfg.History.Retain)
		if err != nil {
			log.Warn(context.Background(), "history store disabled: failed to open", err)
		} else {
			r.history = h
			mgr.SetRecorder(h)
		}
	}

	return r, nil
}

// Run starts every subsystem and blocks until ctx is canceled or one of
// them fails irrecoverably. The HTTP server binds first (SSDP needs its
// bound port, and a changed port resets the device UUID), then everything
// else starts concurrently.
func (r *Renderer) Run(ctx context.Context) error {
	cfg := conf.Server
	group, gctx := errgroup.WithContext(ctx)

	portReady := make(chan int, 1)
	group.Go(func() error {
		err := r.http.Run(gctx, r.store.ApplicationPort())
		return err
	})

	group.Go(func() error {
		return r.waitForBoundPort(gctx, portReady)
	})

	var boundPort int
	select {
	case boundPort = <-portReady:
	case <-gctx.Done():
		return r.group0Err(group)
	}

	// A port change invalidates the LOCATION every control point has cached
	// against the old UUID, so the device re-identifies itself rather than
	// answering to a stale advertisement.
	if prev := r.store.ApplicationPort(); prev != 0 && prev != boundPort {
		r.device.UUID = r.store.ResetUSN()
		log.Info(gctx, "bound port changed, regenerated device UUID",
			"previous", prev, "port", boundPort, "uuid", r.device.UUID)
	}
	r.store.SetApplicationPort(boundPort)

	group.Go(func() error {
		return r.events.Run(gctx)
	})

	group.Go(func() error {
		return r.runPlayerSupervised(gctx)
	})

	group.Go(func() error {
		return r.runSSDPSupervised(gctx, boundPort)
	})

	group.Go(func() error {
		return r.watchIPChanges(gctx)
	})

	if err := r.store.WatchExternalEdits(gctx, func() {
		log.Info(gctx, "settings file changed on disk, reloaded")
		r.player.Reload(gctx)
	}); err != nil {
		log.Warn(gctx, "failed to watch settings file for external edits", err)
	}

	if r.history != nil {
		group.Go(func() error {
			return r.runHistoryHousekeeping(gctx)
		})
	}

	if cfg.Metrics.Enabled {
		group.Go(func() error {
			return r.runMetricsServer(gctx, cfg.Metrics.Addr)
		})
	}

	err := group.Wait()
	if err != nil && gctx.Err() != nil && ctx.Err() != nil {
		// Shutdown was requested by the caller; subsystem errors racing the
		// cancellation are expected (e.g. http.ErrServerClosed already
		// translated to nil, or a context.Canceled from a blocking read).
		return nil
	}
	return err
}

// waitForBoundPort polls until httpserver.Server has bound its listener,
// since Run assigns BoundPort only after a successful Listen.
func (r *Renderer) waitForBoundPort(ctx context.Context, out chan<- int) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if r.http.BoundPort != 0 {
				out <- r.http.BoundPort
				return nil
			}
		}
	}
}

// runPlayerSupervised runs the renderer driver's Run loop exactly once.
// player.Driver.Run already retries post-connection crashes indefinitely on
// its own and only returns an error once its 3-attempt pre-connection
// startup budget is exhausted. Retrying that error here a second time would
// silently swallow the fatal case and defeat the budget entirely, so it's
// propagated up through the errgroup instead, stopping the whole service.
func (r *Renderer) runPlayerSupervised(ctx context.Context) error {
	err := r.player.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		log.Error(ctx, "MPV Can't start", err)
	}
	return err
}

// watchIPChanges polls every 5s for a host address change, on the same
// cron scheduler runHistoryHousekeeping uses. A detected change signals
// runSSDPSupervised to restart the advertiser without a byebye.
func (r *Renderer) watchIPChanges(ctx context.Context) error {
	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc("*/5 * * * * *", func() {
		if r.store.IPChanged() {
			log.Info(ctx, "local IP address changed, restarting SSDP advertiser")
			select {
			case r.restartSSDP <- struct{}{}:
			default:
			}
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

// runSSDPSupervised owns the SSDP server's lifetime for the whole process
// run: a normal exit or parent cancellation ends the loop and propagates the
// byebye-bearing shutdown, while an IP-change signal tears down the current
// instance with SuppressByebye set and immediately starts a fresh one so the
// next alive announce carries the refreshed LOCATION.
func (r *Renderer) runSSDPSupervised(ctx context.Context, port int) error {
	cfg := conf.Server
	for {
		adv := ssdp.Advertiser{
			UUID:         r.device.UUID,
			FriendlyName: r.friendly,
			ServerName:   "renderd",
			HTTPPort:     port,
			LocalIP:      settings.LocalIP,
			ServiceTypes: upnp.ServiceTypes(),
			NotifyEvery:  cfg.SSDP.NotifyInterval,
		}
		srv := ssdp.New(adv)
		r.ssdp = srv

		sctx, cancel := context.WithCancel(ctx)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Run(sctx) }()

		select {
		case <-ctx.Done():
			cancel()
			<-errCh
			return nil
		case <-r.restartSSDP:
			srv.SuppressByebye()
			cancel()
			<-errCh
		case err := <-errCh:
			cancel()
			return err
		}
	}
}

// runMetricsServer serves Prometheus metrics on a separate, loopback-only
// listener: it is an operator surface, never advertised over SSDP or
// exposed on the DLNA port.
func (r *Renderer) runMetricsServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		// A busy metrics port shouldn't take the renderer down with it.
		log.Warn(ctx, "metrics server stopped", err, "addr", addr)
		return nil
	}
}

// runHistoryHousekeeping vacuums the history database once a day and closes
// it when the renderer stops.
func (r *Renderer) runHistoryHousekeeping(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc("0 3 * * *", func() {
		if err := r.history.Vacuum(ctx); err != nil {
			log.Warn(ctx, "history vacuum failed", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return r.history.Close()
}

func (r *Renderer) group0Err(group *errgroup.Group) error {
	if err := group.Wait(); err != nil {
		return multierror.Append(nil, err).ErrorOrNil()
	}
	return nil
}

// Shutdown stops the renderer driver's child process directly; the rest of
// the subsystems stop via context cancellation from Run's caller.
func (r *Renderer) Shutdown() {
	r.player.Shutdown()
}
