package player

import (
	"context"
	"strconv"

	"github.com/dexterlb/mpvipc"

	"github.com/navidrome/renderd/internal/upnp"
	"github.com/navidrome/renderd/log"
)

// pumpEvents reads mpv's IPC event stream and translates it into UPnP state
// updates, the Go shape of mpv.py's updateState(res): a run loop keyed on
// whether the message carries "id" (an observed property update) or
// "event" (a lifecycle transition).
func (d *Driver) pumpEvents(ctx context.Context, real *mpvipc.Connection) {
	events, stopListening := real.NewEventListener()
	defer close(stopListening)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.handleEvent(ctx, ev)
		}
	}
}

func (d *Driver) handleEvent(ctx context.Context, ev *mpvipc.Event) {
	switch ev.Name {
	case "property-change":
		d.handlePropertyChange(ctx, ObserveProperty(ev.ID), ev.Data)
	case "start-file":
		d.device.ApplyPlayerUpdate(upnp.AVTransport, map[string]string{
			"TransportState": "TRANSITIONING",
		})
	case "seek":
		d.device.ApplyPlayerUpdate(upnp.AVTransport, map[string]string{
			"TransportState": "TRANSITIONING",
		})
	case "idle":
		d.device.ApplyPlayerUpdate(upnp.AVTransport, map[string]string{
			"TransportState": "STOPPED",
		})
	case "playback-restart":
		d.mu.Lock()
		playing := d.playing
		d.mu.Unlock()
		state := "PAUSED_PLAYBACK"
		if playing {
			state = "PLAYING"
		}
		d.device.ApplyPlayerUpdate(upnp.AVTransport, map[string]string{
			"TransportState": state,
		})
	case "end-file":
		d.handleEndFile(ctx, ev.ExtraData)
	default:
		log.Debug(ctx, "unhandled mpv event", "event", ev.Name)
	}
}

// handleEndFile distinguishes reason ∈ {error, eof, stop} per mpv's
// end-file event and maps each to its own state/status pair: error sets
// TransportStatus=ERROR_OCCURRED, eof means the queue ran out
// (NO_MEDIA_PRESENT), and an explicit stop settles at STOPPED. When a
// NextAVTransportURI was queued, eof loads it instead of going idle.
func (d *Driver) handleEndFile(ctx context.Context, extra interface{}) {
	reason := "unknown"
	if m, ok := extra.(map[string]interface{}); ok {
		if r, ok := m["reason"].(string); ok {
			reason = r
		}
	}
	if reason == "eof" && d.advanceToNextURI(ctx) {
		return
	}
	var state, status string
	switch reason {
	case "error":
		state, status = "STOPPED", "ERROR_OCCURRED"
	case "eof":
		state, status = "NO_MEDIA_PRESENT", "OK"
	case "stop":
		state, status = "STOPPED", "OK"
	default:
		state, status = "STOPPED", "OK"
	}
	d.device.ApplyPlayerUpdate(upnp.AVTransport, map[string]string{
		"TransportState":  state,
		"TransportStatus": status,
	})
}

// advanceToNextURI consumes a queued NextAVTransportURI at end of track,
// reporting whether playback moved on to it.
func (d *Driver) advanceToNextURI(ctx context.Context) bool {
	d.mu.Lock()
	next := d.nextURI
	d.nextURI = ""
	if next == "" || next == "NOT_IMPLEMENTED" {
		d.mu.Unlock()
		return false
	}
	d.currentURI = next
	d.lastPosition = 0
	d.mu.Unlock()

	if err := d.withConn(func(c ipcConn) error {
		_, err := c.Call("loadfile", next, "replace", d.loadfileOptions(0))
		return err
	}); err != nil {
		log.Warn(ctx, "failed to load the queued next track", err, "uri", next)
		return false
	}
	d.device.ApplyPlayerUpdate(upnp.AVTransport, map[string]string{
		"CurrentTrackURI":            next,
		"AVTransportURI":             next,
		"RelativeTimePosition":       "00:00:00",
		"AbsoluteTimePosition":       "00:00:00",
		"NextAVTransportURI":         "NOT_IMPLEMENTED",
		"NextAVTransportURIMetaData": "NOT_IMPLEMENTED",
		"TransportState":             "TRANSITIONING",
	})
	return true
}

func (d *Driver) handlePropertyChange(ctx context.Context, prop ObserveProperty, data interface{}) {
	switch prop {
	case ObserveVolume:
		if v, ok := asNumber(data); ok {
			d.device.ApplyPlayerUpdate(upnp.RenderingControl, map[string]string{
				"Volume": strconv.Itoa(int(v)),
			})
		}
	case ObserveTimePos:
		if v, ok := asNumber(data); ok {
			d.mu.Lock()
			d.lastPosition = int(v)
			d.mu.Unlock()
			clock := formatClock(int(v))
			d.device.ApplyPlayerUpdate(upnp.AVTransport, map[string]string{
				"RelativeTimePosition": clock,
				"AbsoluteTimePosition": clock,
			})
		}
	case ObservePause:
		if paused, ok := data.(bool); ok {
			d.mu.Lock()
			d.playing = !paused
			d.mu.Unlock()
			state := "PLAYING"
			if paused {
				state = "PAUSED_PLAYBACK"
			}
			d.device.ApplyPlayerUpdate(upnp.AVTransport, map[string]string{
				"TransportState": state,
			})
		}
	case ObserveMute:
		if muted, ok := data.(bool); ok {
			mute := "0"
			if muted {
				mute = "1"
			}
			d.device.ApplyPlayerUpdate(upnp.RenderingControl, map[string]string{"Mute": mute})
		}
	case ObserveDuration:
		if v, ok := asNumber(data); ok {
			clock := formatClock(int(v))
			d.device.ApplyPlayerUpdate(upnp.AVTransport, map[string]string{
				"CurrentTrackDuration": clock,
				"CurrentMediaDuration": clock,
			})
		}
	case ObserveSpeed:
		if v, ok := asNumber(data); ok {
			d.device.ApplyPlayerUpdate(upnp.AVTransport, map[string]string{
				"TransportPlaySpeed": strconv.FormatFloat(v, 'g', -1, 64),
			})
		}
	case ObserveTrackList, ObserveSubVisibility:
		// Observed for parity with the player's full property set; renderd
		// has no state variable these map to (no subtitle or multi-track
		// UPnP actions are modeled), so they're logged at debug for
		// diagnostics only.
		log.Debug(ctx, "player property changed", "property", prop.mpvName(), "value", data)
	}
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
