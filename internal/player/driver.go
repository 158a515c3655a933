package player

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/dexterlb/mpvipc"
	shellwords "github.com/kballard/go-shellquote"

	"github.com/navidrome/renderd/internal/upnp"
	"github.com/navidrome/renderd/log"
)

// Config configures how the child player process is launched and reached.
type Config struct {
	Binary       string // e.g. "mpv"
	ExtraArgs    string // shell-quoted extra flags, e.g. "--no-video --gapless-audio"
	Socket       string // IPC socket path; a per-run default is chosen if empty
	Fullscreen   bool
	OnTop        bool
	HWDecode     bool
	Geometry     string // mpv --geometry value, e.g. "50%:50%"
	Autofit      string // mpv --autofit value, e.g. "90%"
	InitialVolume int   // 0 means "leave mpv's default"
}

// ipcConn is the subset of *mpvipc.Connection the driver calls, narrowed to
// an interface so commands.go stays testable without a real mpv process.
type ipcConn interface {
	Call(args ...interface{}) (interface{}, error)
}

// Driver supervises the player subprocess and its IPC connection, and
// implements upnp.Player so internal/upnp.Device can drive it directly from
// SOAP action handlers.
type Driver struct {
	cfg    Config
	device *upnp.Device

	mu            sync.Mutex
	conn          ipcConn
	cmd           *exec.Cmd
	playing       bool // last requested play/pause intent, for playback-restart disambiguation
	quitting      bool
	currentURI    string
	nextURI       string
	lastPosition  int
	pendingReload *reloadRequest
}

// reloadRequest carries the URI/position a settings-triggered reload should
// resume at once the restarted player reconnects over IPC.
type reloadRequest struct {
	uri          string
	startSeconds int
}

// Reload restarts the player after a settings change: if a track is
// currently playing, the current URI and last known position are saved for
// runOnce to resume once the restarted player reconnects; the running child
// is then killed, and Run's existing crash-retry loop brings a fresh one up.
func (d *Driver) Reload(ctx context.Context) {
	d.mu.Lock()
	playing := d.playing
	uri := d.currentURI
	position := d.lastPosition
	cmd := d.cmd
	if playing && uri != "" {
		d.pendingReload = &reloadRequest{uri: uri, startSeconds: position}
	}
	d.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		log.Info(ctx, "reloading player after settings change", "uri", uri, "position", position)
		_ = cmd.Process.Kill()
	}
}

func New(cfg Config, device *upnp.Device) *Driver {
	if cfg.Binary == "" {
		cfg.Binary = "mpv"
	}
	if cfg.Socket == "" {
		cfg.Socket = defaultSocketPath()
	}
	return &Driver{cfg: cfg, device: device}
}

func defaultSocketPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("renderd-mpv-%d.sock", os.Getpid()))
}

// Run launches mpv, connects over IPC, observes properties, and processes
// lifecycle/property events until ctx is canceled. The 3-attempt error
// budget only guards the startup race (the process exiting before its IPC
// socket ever came up); once an attempt has connected over IPC at least
// once, a later crash resets the budget and is retried indefinitely with a
// 1s backoff, so the renderer keeps coming back after an arbitrary number
// of player crashes, not just three.
func (d *Driver) Run(ctx context.Context) error {
	const maxRetries = 3
	retries := 0
	for {
		connected, err := d.runOnce(ctx)
		d.mu.Lock()
		quitting := d.quitting
		d.mu.Unlock()
		if ctx.Err() != nil || quitting {
			return nil
		}
		if err == nil {
			return nil
		}
		if connected {
			retries = 0
		} else {
			retries++
		}
		log.Error(ctx, "player process exited unexpectedly", err, "attempt", retries, "connected", connected)
		if !connected && retries > maxRetries {
			return fmt.Errorf("player process failed to start %d times: %w", retries, err)
		}
		time.Sleep(time.Second)
	}
}

// runOnce spawns and supervises a single player process, reporting whether
// its IPC connection ever came up before it exited.
func (d *Driver) runOnce(ctx context.Context) (connected bool, err error) {
	args, err := d.buildArgs()
	if err != nil {
		return false, err
	}

	cmd := exec.CommandContext(ctx, d.cfg.Binary, args...)
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("starting %s: %w", d.cfg.Binary, err)
	}
	d.mu.Lock()
	d.cmd = cmd
	d.mu.Unlock()

	conn, err := d.connectWithRetry(ctx)
	if err != nil {
		_ = cmd.Process.Kill()
		return false, err
	}
	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.conn = nil
		d.mu.Unlock()
		conn.Close()
	}()

	if err := d.observeAll(conn); err != nil {
		log.Warn(ctx, "failed to register mpv property observers", err)
	}
	if d.cfg.InitialVolume > 0 {
		if _, err := conn.Call("set_property", "volume", d.cfg.InitialVolume); err != nil {
			log.Warn(ctx, "failed to set initial player volume", err)
		}
	}

	d.mu.Lock()
	pending := d.pendingReload
	d.pendingReload = nil
	d.mu.Unlock()
	if pending != nil {
		if _, err := conn.Call("loadfile", pending.uri, "replace", d.loadfileOptions(pending.startSeconds)); err != nil {
			log.Warn(ctx, "failed to resume playback after reload", err)
		}
	}

	go d.pumpEvents(ctx, conn)

	return true, cmd.Wait()
}

// buildArgs builds mpv's argv: the IPC socket flag plus any user-configured
// extra flags, shell-split so a single config string can carry several.
func (d *Driver) buildArgs() ([]string, error) {
	args := []string{
		"--idle=yes",
		"--force-window=no",
		"--input-ipc-server=" + d.cfg.Socket,
		"--no-terminal",
	}
	if d.cfg.Fullscreen {
		args = append(args, "--fullscreen=yes")
	}
	if d.cfg.OnTop {
		args = append(args, "--ontop=yes")
	}
	if d.cfg.HWDecode {
		args = append(args, "--hwdec=auto")
	}
	if d.cfg.Geometry != "" {
		args = append(args, "--geometry="+d.cfg.Geometry)
	}
	if d.cfg.Autofit != "" {
		args = append(args, "--autofit="+d.cfg.Autofit)
	}
	if d.cfg.ExtraArgs != "" {
		extra, err := shellwords.Split(d.cfg.ExtraArgs)
		if err != nil {
			return nil, fmt.Errorf("parsing player.extraargs: %w", err)
		}
		args = append(args, extra...)
	}
	return args, nil
}

// connectWithRetry polls the socket every 0.5s: mpv needs a moment after
// forking before its IPC endpoint exists.
func (d *Driver) connectWithRetry(ctx context.Context) (*mpvipc.Connection, error) {
	deadline := time.Now().Add(10 * time.Second)
	for {
		conn := mpvipc.NewConnection(d.cfg.Socket)
		if err := conn.Open(); err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out connecting to player IPC socket %s", d.cfg.Socket)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (d *Driver) observeAll(conn *mpvipc.Connection) error {
	for _, prop := range allObservedProperties {
		if _, err := conn.Call("observe_property", int(prop), prop.mpvName()); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) withConn(fn func(ipcConn) error) error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("player is not connected")
	}
	return fn(conn)
}

// Shutdown asks mpv to quit and lets Run's cmd.Wait() return normally
// instead of treating the exit as a crash.
func (d *Driver) Shutdown() {
	d.mu.Lock()
	d.quitting = true
	conn := d.conn
	d.mu.Unlock()
	if conn != nil {
		_, _ = conn.Call("quit")
	}
}
