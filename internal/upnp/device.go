package upnp

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/navidrome/renderd/internal/metrics"
	"github.com/navidrome/renderd/log"
)

var knownTransportStates = []string{"STOPPED", "PLAYING", "PAUSED_PLAYBACK", "TRANSITIONING", "NO_MEDIA_PRESENT"}

// Player is the subset of renderer-driver behavior the SOAP layer needs to
// invoke side effects on, implemented by internal/player.Driver. Keeping it
// an injected interface means the registry never imports the driver and
// tests can substitute a fake.
type Player interface {
	SetAVTransportURI(ctx context.Context, uri, metadata string) error
	SetNextAVTransportURI(ctx context.Context, uri, metadata string) error
	Play(ctx context.Context, speed string) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Seek(ctx context.Context, unit, target string) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SetVolume(ctx context.Context, volume int) error
	SetMute(ctx context.Context, mute bool) error
}

// EventPublisher is notified every time a batch of state variables changes,
// so internal/events can fan it out to subscribers. Device calls it after
// every action that mutates state, regardless of whether the mutation came
// from a control point (SOAP) or the player (IPC callback).
type EventPublisher interface {
	Publish(service ServiceName, changed map[string]string, snapshot map[string]string)
}

type noopPublisher struct{}

func (noopPublisher) Publish(ServiceName, map[string]string, map[string]string) {}

// Device is the service/action registry and state owner for this media
// renderer: all three service state tables plus the dispatch table over
// them.
type Device struct {
	UUID         string
	FriendlyName string

	AVTransport       *StateTable
	RenderingControl  *StateTable
	ConnectionManager *StateTable

	player    Player
	publisher EventPublisher
}

// NewDevice seeds all three service state tables with their standard
// initial values.
func NewDevice(uuid, friendlyName string) *Device {
	d := &Device{
		UUID:              uuid,
		FriendlyName:      friendlyName,
		AVTransport:       NewStateTable(AVTransportObserved),
		RenderingControl:  NewStateTable(RenderingControlObserved),
		ConnectionManager: NewStateTable(ConnectionManagerObserved),
		player:            noopPlayer{},
		publisher:         noopPublisher{},
	}
	d.AVTransport.SetMany(defaultAVTransportState())
	d.RenderingControl.SetMany(defaultRenderingControlState())
	d.ConnectionManager.SetMany(defaultConnectionManagerState())
	return d
}

func (d *Device) SetPlayer(p Player) {
	if p == nil {
		p = noopPlayer{}
	}
	d.player = p
}

func (d *Device) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	d.publisher = p
}

// ApplyPlayerUpdate lets the renderer driver push state changes (volume,
// position, transport transitions observed over IPC) back through the same
// commit-then-publish path SOAP actions use, so both sources of truth
// notify subscribers identically.
func (d *Device) ApplyPlayerUpdate(service ServiceName, updates map[string]string) {
	d.commit(service, updates)
}

func (d *Device) table(service ServiceName) *StateTable {
	switch service {
	case AVTransport:
		return d.AVTransport
	case RenderingControl:
		return d.RenderingControl
	case ConnectionManager:
		return d.ConnectionManager
	default:
		return nil
	}
}

func (d *Device) commit(service ServiceName, updates map[string]string) {
	d.commitWith(service, updates, false)
}

// commitForced publishes every observed variable in updates even when its
// value did not change. Loading a new URI must notify subscribers of the
// reset positions and the (possibly re-set) track URI; the regular
// changed-only dedup would swallow those.
func (d *Device) commitForced(service ServiceName, updates map[string]string) {
	d.commitWith(service, updates, true)
}

func (d *Device) commitWith(service ServiceName, updates map[string]string, force bool) {
	table := d.table(service)
	if table == nil || len(updates) == 0 {
		return
	}
	changed := table.SetMany(updates)
	if force {
		changed = changed[:0]
		for name := range updates {
			if table.IsObserved(name) {
				changed = append(changed, name)
			}
		}
	}
	if len(changed) == 0 {
		return
	}
	snapshot := make(map[string]string, len(changed))
	for _, name := range changed {
		snapshot[name] = table.Get(name)
	}
	if service == AVTransport {
		if state, ok := snapshot["TransportState"]; ok {
			metrics.SetTransportState(state, knownTransportStates)
		}
	}
	d.publisher.Publish(service, snapshot, table.GetAll())
}

// Dispatch parses a SOAP request body for the given service and routes it
// to the matching action: parse, commit input side effects, invoke the
// handler, build the response. Actions with no bespoke handler but a
// declaration in the service's SCPD fall through to a generic handler that
// echoes each declared output argument's related state variable. Returns
// the marshaled response element, or a Fault describing why it failed.
func (d *Device) Dispatch(ctx context.Context, service ServiceName, actionName string, body []byte) ([]byte, *Fault) {
	handler, ok := d.handlerFor(service, actionName)
	if !ok {
		handler, ok = d.genericHandler(service, actionName)
	}
	if !ok {
		log.Warn(ctx, "unknown action", "service", service, "action", actionName)
		return nil, NewFault(ErrInvalidAction, "")
	}

	resp, err := handler(ctx, body)
	if err != nil {
		if f, ok := err.(*Fault); ok {
			return nil, f
		}
		log.Error(ctx, "action failed", err, "service", service, "action", actionName)
		return nil, NewFault(ErrActionFailed, err.Error())
	}

	out, err := xml.Marshal(resp)
	if err != nil {
		return nil, NewFault(ErrActionFailed, "failed to marshal response")
	}
	return out, nil
}

type actionHandler func(ctx context.Context, body []byte) (interface{}, error)

// genericResponse marshals as <{Action}Response> with one child element per
// declared output argument, built dynamically from the parsed SCPD.
type genericResponse struct {
	XMLName xml.Name
	Args    []genericArg
}

type genericArg struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// genericHandler serves any action the SCPD declares but no bespoke Go
// function handles: named inputs are validated against their related state
// variable's constraints and committed, then the response is synthesized by
// reading each declared output argument's related state variable.
func (d *Device) genericHandler(service ServiceName, action string) (actionHandler, bool) {
	spec, ok := serviceSpecs[service].actions[action]
	if !ok {
		return nil, false
	}
	return func(ctx context.Context, body []byte) (interface{}, error) {
		inputs := parseArgValues(body)
		updates := make(map[string]string)
		for _, arg := range spec.In {
			value, present := inputs[arg.Name]
			if !present {
				continue
			}
			if err := validateInput(service, arg.RelatedStateVariable, value); err != nil {
				return nil, err
			}
			updates[arg.RelatedStateVariable] = value
		}
		d.commit(service, updates)

		table := d.table(service)
		resp := &genericResponse{XMLName: respName(action + "Response")}
		for _, arg := range spec.Out {
			resp.Args = append(resp.Args, genericArg{
				XMLName: xml.Name{Local: arg.Name},
				Value:   table.Get(arg.RelatedStateVariable),
			})
		}
		return resp, nil
	}, true
}

// parseArgValues flattens an action element's children into a name→value
// map, the generic counterpart of the typed arg structs bespoke handlers
// unmarshal into.
func parseArgValues(body []byte) map[string]string {
	var elem struct {
		XMLName  xml.Name
		Children []struct {
			XMLName xml.Name
			Value   string `xml:",chardata"`
		} `xml:",any"`
	}
	if len(body) == 0 || xml.Unmarshal(body, &elem) != nil {
		return nil
	}
	values := make(map[string]string, len(elem.Children))
	for _, c := range elem.Children {
		values[c.XMLName.Local] = c.Value
	}
	return values
}

func (d *Device) handlerFor(service ServiceName, action string) (actionHandler, bool) {
	switch service {
	case AVTransport:
		return d.avTransportHandler(action)
	case RenderingControl:
		return d.renderingControlHandler(action)
	case ConnectionManager:
		return d.connectionManagerHandler(action)
	default:
		return nil, false
	}
}

func fault(code int, format string, args ...interface{}) error {
	return NewFault(code, fmt.Sprintf(format, args...))
}

type noopPlayer struct{}

func (noopPlayer) SetAVTransportURI(context.Context, string, string) error     { return nil }
func (noopPlayer) SetNextAVTransportURI(context.Context, string, string) error { return nil }
func (noopPlayer) Play(context.Context, string) error                          { return nil }
func (noopPlayer) Pause(context.Context) error                                 { return nil }
func (noopPlayer) Stop(context.Context) error                                  { return nil }
func (noopPlayer) Seek(context.Context, string, string) error                  { return nil }
func (noopPlayer) Next(context.Context) error                                  { return nil }
func (noopPlayer) Previous(context.Context) error                              { return nil }
func (noopPlayer) SetVolume(context.Context, int) error                        { return nil }
func (noopPlayer) SetMute(context.Context, bool) error                         { return nil }
