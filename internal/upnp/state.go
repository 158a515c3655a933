// Package upnp implements the UPnP device/service model: the state-variable
// table each service exposes, the SOAP action dispatcher that mutates it,
// and the device/SCPD descriptions a control point fetches to learn the
// shape of both.
package upnp

import "sync"

// ServiceName identifies one of the three services renderd exposes.
type ServiceName string

const (
	AVTransport       ServiceName = "AVTransport"
	RenderingControl  ServiceName = "RenderingControl"
	ConnectionManager ServiceName = "ConnectionManager"
)

// ServiceType is the URN a control point uses in SOAPAction headers and
// SSDP search targets.
func (s ServiceName) Type() string {
	return "urn:schemas-upnp-org:service:" + string(s) + ":1"
}

func (s ServiceName) ID() string {
	return "urn:upnp-org:serviceId:" + string(s)
}

// StateTable holds the current value of every state variable for one
// service instance, guarded by a single RWMutex. Only variables listed as
// "evented" participate in the LastChange/property-set notification
// mechanism; the rest are polled via Get* actions instead.
type StateTable struct {
	mu       sync.RWMutex
	values   map[string]string
	observed map[string]bool
}

func NewStateTable(observed []string) *StateTable {
	t := &StateTable{
		values:   make(map[string]string),
		observed: make(map[string]bool, len(observed)),
	}
	for _, name := range observed {
		t.observed[name] = true
	}
	return t
}

func (t *StateTable) Get(name string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.values[name]
}

func (t *StateTable) GetAll() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}

// Set stores a new value and reports whether it actually changed, so
// callers only emit events on real transitions.
func (t *StateTable) Set(name, value string) (changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.values[name] == value {
		return false
	}
	t.values[name] = value
	return true
}

// SetMany applies a batch of updates atomically and returns the subset of
// evented variables that changed, in a stable order, for building a single
// LastChange notification covering all of them.
func (t *StateTable) SetMany(updates map[string]string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var changed []string
	for name, value := range updates {
		if t.values[name] == value {
			continue
		}
		t.values[name] = value
		if t.observed[name] {
			changed = append(changed, name)
		}
	}
	return changed
}

func (t *StateTable) IsObserved(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.observed[name]
}

// ObservedNames lists every evented variable, used to seed the initial
// event sent to a newly subscribed control point.
func (t *StateTable) ObservedNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.observed))
	for name := range t.observed {
		names = append(names, name)
	}
	return names
}

// defaultAVTransportState and friends seed a fresh StateTable with the
// values a renderer reports before anything has played.
func defaultAVTransportState() map[string]string {
	return map[string]string{
		"TransportState":               "STOPPED",
		"TransportStatus":              "OK",
		"CurrentPlayMode":              "NORMAL",
		"TransportPlaySpeed":           "1",
		"CurrentTrack":                 "0",
		"NumberOfTracks":               "0",
		"CurrentTrackURI":              "",
		"CurrentTrackMetaData":         "",
		"CurrentTrackTitle":            "",
		"CurrentTrackDuration":         "00:00:00",
		"CurrentMediaDuration":         "00:00:00",
		"AVTransportURI":               "",
		"AVTransportURIMetaData":       "",
		"RelativeTimePosition":         "00:00:00",
		"AbsoluteTimePosition":         "00:00:00",
		"RelativeCounterPosition":      "2147483647",
		"AbsoluteCounterPosition":      "2147483647",
		"PlaybackStorageMedium":        "NONE",
		"PossiblePlaybackStorageMedia": "NETWORK,HDD",
		"PossibleRecordStorageMedia":   "NOT_IMPLEMENTED",
		"PossibleRecordQualityModes":   "NOT_IMPLEMENTED",
		"CurrentRecordQualityMode":     "NOT_IMPLEMENTED",
		"NextAVTransportURI":           "NOT_IMPLEMENTED",
		"NextAVTransportURIMetaData":   "NOT_IMPLEMENTED",
	}
}

func defaultRenderingControlState() map[string]string {
	return map[string]string{
		"Volume": "50",
		"Mute":   "0",
	}
}

func defaultConnectionManagerState() map[string]string {
	return map[string]string{
		"A_ARG_TYPE_Direction": "Output",
		"SinkProtocolInfo":     defaultSinkProtocolInfo(),
		"SourceProtocolInfo":   "",
		"CurrentConnectionIDs": "0",
	}
}

// AVTransport and RenderingControl evented variables travel inside a
// <LastChange> envelope; ConnectionManager's are sent as flat properties.
var (
	AVTransportObserved = []string{
		"TransportState", "TransportStatus", "CurrentMediaDuration",
		"CurrentTrackDuration", "CurrentTrack", "NumberOfTracks",
		"AVTransportURI", "CurrentTrackURI", "CurrentTrackTitle",
		"RelativeTimePosition", "AbsoluteTimePosition",
	}
	RenderingControlObserved = []string{"Volume", "Mute"}
	ConnectionManagerObserved = []string{
		"A_ARG_TYPE_Direction", "SinkProtocolInfo", "CurrentConnectionIDs",
	}
)
