package upnp

import (
	"context"
	"strconv"
)

func (d *Device) renderingControlHandler(action string) (actionHandler, bool) {
	switch action {
	case "GetVolume":
		return d.getVolume, true
	case "SetVolume":
		return d.setVolume, true
	case "GetMute":
		return d.getMute, true
	case "SetMute":
		return d.setMute, true
	case "ListPresets", "SelectPreset":
		return d.renderingControlNoOp, true
	default:
		return nil, false
	}
}

func (d *Device) getVolume(ctx context.Context, body []byte) (interface{}, error) {
	vol, _ := parseIntOr(d.RenderingControl.Get("Volume"), 50)
	return &getVolumeResponse{XMLName: respName("GetVolumeResponse"), CurrentVolume: vol}, nil
}

// setVolume validates DesiredVolume against the Volume state variable's
// declared allowedValueRange (parsed from the SCPD, so the check always
// matches what control points were told), then commits and pushes the new
// level to the player.
func (d *Device) setVolume(ctx context.Context, body []byte) (interface{}, error) {
	var args setVolumeArgs
	if err := unmarshalArgs(body, &args); err != nil {
		return nil, fault(ErrInvalidArgs, "%v", err)
	}
	vol := args.DesiredVolume
	if err := validateRange(RenderingControl, "Volume", vol); err != nil {
		return nil, err
	}
	d.commit(RenderingControl, map[string]string{"Volume": strconv.Itoa(vol)})
	if err := d.player.SetVolume(ctx, vol); err != nil {
		return nil, fault(ErrActionFailed, "%v", err)
	}
	return &emptyResponse{XMLName: respName("SetVolumeResponse")}, nil
}

func (d *Device) getMute(ctx context.Context, body []byte) (interface{}, error) {
	mute := 0
	if muteBool(d.RenderingControl.Get("Mute")) {
		mute = 1
	}
	return &getMuteResponse{XMLName: respName("GetMuteResponse"), CurrentMute: mute}, nil
}

func (d *Device) setMute(ctx context.Context, body []byte) (interface{}, error) {
	var args setMuteArgs
	if err := unmarshalArgs(body, &args); err != nil {
		return nil, fault(ErrInvalidArgs, "%v", err)
	}
	mute := muteBool(args.DesiredMute)
	d.commit(RenderingControl, map[string]string{"Mute": boolToMute(mute)})
	if err := d.player.SetMute(ctx, mute); err != nil {
		return nil, fault(ErrActionFailed, "%v", err)
	}
	return &emptyResponse{XMLName: respName("SetMuteResponse")}, nil
}

func (d *Device) renderingControlNoOp(ctx context.Context, body []byte) (interface{}, error) {
	return &emptyResponse{XMLName: respName("Response")}, nil
}
