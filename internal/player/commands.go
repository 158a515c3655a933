package player

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// The methods below implement upnp.Player, translating each SOAP-driven
// action into mpv IPC commands: loadfile, set_property pause/volume/mute,
// seek, stop.

// loadfileOptions builds mpv's loadfile options string, a comma-separated
// "key=val" list, carrying the start position (always 0 for a fresh URI;
// Driver.Reload passes the saved position when resuming across a restart)
// and fullscreen=yes when configured.
func (d *Driver) loadfileOptions(startSeconds int) string {
	opts := []string{fmt.Sprintf("start=%d", startSeconds)}
	if d.cfg.Fullscreen {
		opts = append(opts, "fullscreen=yes")
	}
	return strings.Join(opts, ",")
}

func (d *Driver) SetAVTransportURI(ctx context.Context, uri, title string) error {
	d.mu.Lock()
	d.currentURI = uri
	d.lastPosition = 0
	d.mu.Unlock()
	return d.withConn(func(c ipcConn) error {
		_, err := c.Call("loadfile", uri, "replace", d.loadfileOptions(0))
		return err
	})
}

func (d *Driver) SetNextAVTransportURI(ctx context.Context, uri, metadata string) error {
	// mpv has no native "next URI" concept; the URI is held here and loaded
	// when the current track ends (events.go's end-file/eof handling).
	d.mu.Lock()
	d.nextURI = uri
	d.mu.Unlock()
	return nil
}

func (d *Driver) Play(ctx context.Context, speed string) error {
	d.mu.Lock()
	d.playing = true
	d.mu.Unlock()
	return d.withConn(func(c ipcConn) error {
		if speed != "" && speed != "1" {
			if s, err := strconv.ParseFloat(speed, 64); err == nil {
				if _, err := c.Call("set_property", "speed", s); err != nil {
					return err
				}
			}
		}
		_, err := c.Call("set_property", "pause", false)
		return err
	})
}

func (d *Driver) Pause(ctx context.Context) error {
	d.mu.Lock()
	d.playing = false
	d.mu.Unlock()
	return d.withConn(func(c ipcConn) error {
		_, err := c.Call("set_property", "pause", true)
		return err
	})
}

func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.playing = false
	d.mu.Unlock()
	return d.withConn(func(c ipcConn) error {
		_, err := c.Call("stop")
		return err
	})
}

func (d *Driver) Seek(ctx context.Context, unit, target string) error {
	var seconds int
	switch unit {
	case "REL_TIME", "ABS_TIME":
		seconds = parseClock(target)
	default:
		return fmt.Errorf("unsupported seek unit %q", unit)
	}
	return d.withConn(func(c ipcConn) error {
		_, err := c.Call("seek", seconds, "absolute")
		return err
	})
}

func (d *Driver) Next(ctx context.Context) error {
	return fmt.Errorf("Next is not supported by this renderer")
}

func (d *Driver) Previous(ctx context.Context) error {
	return fmt.Errorf("Previous is not supported by this renderer")
}

func (d *Driver) SetVolume(ctx context.Context, volume int) error {
	return d.withConn(func(c ipcConn) error {
		_, err := c.Call("set_property", "volume", volume)
		return err
	})
}

func (d *Driver) SetMute(ctx context.Context, mute bool) error {
	return d.withConn(func(c ipcConn) error {
		_, err := c.Call("set_property", "mute", mute)
		return err
	})
}

// AddSubtitle side-loads an external subtitle file and selects it.
func (d *Driver) AddSubtitle(ctx context.Context, path string) error {
	return d.withConn(func(c ipcConn) error {
		_, err := c.Call("sub-add", path, "select")
		return err
	})
}

// SetSubtitleVisibility toggles rendering of the selected subtitle track
// without unloading it.
func (d *Driver) SetSubtitleVisibility(ctx context.Context, visible bool) error {
	return d.withConn(func(c ipcConn) error {
		_, err := c.Call("set_property", "sub-visibility", visible)
		return err
	})
}

// SetSpeed changes playback rate outside of a Play action.
func (d *Driver) SetSpeed(ctx context.Context, speed float64) error {
	return d.withConn(func(c ipcConn) error {
		_, err := c.Call("set_property", "speed", speed)
		return err
	})
}
