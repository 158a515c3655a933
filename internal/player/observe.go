// Package player supervises an external media-player child process (mpv by
// default) over its JSON IPC socket, translating SOAP-driven intent
// (SetAVTransportURI/Play/Pause/Seek/Stop/SetVolume/SetMute) into player
// commands and player-reported property/lifecycle events back into UPnP
// state-variable updates, built against github.com/dexterlb/mpvipc.
package player

// ObserveProperty enumerates the mpv properties renderd watches via
// observe_property, each tagged with the numeric id mpv echoes back on
// every property-change event so the event pump can tell them apart without
// string-comparing property names on the hot path.
type ObserveProperty int

const (
	ObserveVolume ObserveProperty = iota + 1
	ObserveTimePos
	ObservePause
	ObserveMute
	ObserveDuration
	ObserveTrackList
	ObserveSpeed
	ObserveSubVisibility
)

func (p ObserveProperty) mpvName() string {
	switch p {
	case ObserveVolume:
		return "volume"
	case ObserveTimePos:
		return "time-pos"
	case ObservePause:
		return "pause"
	case ObserveMute:
		return "mute"
	case ObserveDuration:
		return "duration"
	case ObserveTrackList:
		return "track-list"
	case ObserveSpeed:
		return "speed"
	case ObserveSubVisibility:
		return "sub-visibility"
	default:
		return ""
	}
}

var allObservedProperties = []ObserveProperty{
	ObserveVolume, ObserveTimePos, ObservePause, ObserveMute, ObserveDuration,
	ObserveTrackList, ObserveSpeed, ObserveSubVisibility,
}
