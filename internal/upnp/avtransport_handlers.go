package upnp

import "context"

func (d *Device) avTransportHandler(action string) (actionHandler, bool) {
	switch action {
	case "SetAVTransportURI":
		return d.setAVTransportURI, true
	case "SetNextAVTransportURI":
		return d.setNextAVTransportURI, true
	case "Play":
		return d.play, true
	case "Pause":
		return d.pause, true
	case "Stop":
		return d.stop, true
	case "Seek":
		return d.seek, true
	case "Next":
		return d.next, true
	case "Previous":
		return d.previous, true
	case "GetPositionInfo":
		return d.getPositionInfo, true
	case "GetMediaInfo":
		return d.getMediaInfo, true
	case "GetTransportInfo":
		return d.getTransportInfo, true
	case "SetPlayMode", "GetCurrentTransportActions":
		return d.avTransportNoOp, true
	default:
		// GetDeviceCapabilities, GetTransportSettings and any future
		// SCPD-declared action are served by the generic echo handler.
		return nil, false
	}
}

// setAVTransportURI resets position counters to zero, parses the title out
// of the DIDL-Lite metadata, commits the new URI into state, then hands
// the URI to the player to actually load.
func (d *Device) setAVTransportURI(ctx context.Context, body []byte) (interface{}, error) {
	var args setAVTransportURIArgs
	if err := unmarshalArgs(body, &args); err != nil {
		return nil, fault(ErrInvalidArgs, "%v", err)
	}
	if args.CurrentURI == "" {
		return nil, NewFault(ErrInvalidArgs, "CurrentURI is required")
	}

	meta := ParseDIDLMetadata(args.CurrentURIMetaData)
	d.commitForced(AVTransport, map[string]string{
		"AVTransportURI":         args.CurrentURI,
		"AVTransportURIMetaData": args.CurrentURIMetaData,
		"RelativeTimePosition":   "00:00:00",
		"AbsoluteTimePosition":   "00:00:00",
		"CurrentTrackURI":        args.CurrentURI,
		"CurrentTrackMetaData":   args.CurrentURIMetaData,
		"CurrentTrackTitle":      meta.Title,
		"TransportState":         "TRANSITIONING",
	})

	if err := d.player.SetAVTransportURI(ctx, args.CurrentURI, meta.Title); err != nil {
		return nil, fault(ErrActionFailed, "%v", err)
	}
	return &emptyResponse{XMLName: respName("SetAVTransportURIResponse")}, nil
}

func (d *Device) setNextAVTransportURI(ctx context.Context, body []byte) (interface{}, error) {
	var args setNextAVTransportURIArgs
	if err := unmarshalArgs(body, &args); err != nil {
		return nil, fault(ErrInvalidArgs, "%v", err)
	}
	d.commit(AVTransport, map[string]string{
		"NextAVTransportURI":         args.NextURI,
		"NextAVTransportURIMetaData": args.NextURIMetaData,
	})
	if err := d.player.SetNextAVTransportURI(ctx, args.NextURI, args.NextURIMetaData); err != nil {
		return nil, fault(ErrActionFailed, "%v", err)
	}
	return &emptyResponse{XMLName: respName("SetNextAVTransportURIResponse")}, nil
}

func (d *Device) play(ctx context.Context, body []byte) (interface{}, error) {
	var args playArgs
	if err := unmarshalArgs(body, &args); err != nil {
		return nil, fault(ErrInvalidArgs, "%v", err)
	}
	if args.Speed == "" {
		args.Speed = "1"
	}
	if err := d.player.Play(ctx, args.Speed); err != nil {
		return nil, fault(ErrActionFailed, "%v", err)
	}
	// The handler commits the new transport state immediately so the next
	// notifier pass carries it; the player's own playback-restart event will
	// re-assert the same value later, which is a no-op.
	d.commit(AVTransport, map[string]string{
		"TransportState":     "PLAYING",
		"TransportPlaySpeed": args.Speed,
	})
	return &emptyResponse{XMLName: respName("PlayResponse")}, nil
}

func (d *Device) pause(ctx context.Context, body []byte) (interface{}, error) {
	if err := d.player.Pause(ctx); err != nil {
		return nil, fault(ErrActionFailed, "%v", err)
	}
	d.commit(AVTransport, map[string]string{"TransportState": "PAUSED_PLAYBACK"})
	return &emptyResponse{XMLName: respName("PauseResponse")}, nil
}

func (d *Device) stop(ctx context.Context, body []byte) (interface{}, error) {
	if err := d.player.Stop(ctx); err != nil {
		return nil, fault(ErrActionFailed, "%v", err)
	}
	d.commit(AVTransport, map[string]string{"TransportState": "STOPPED"})
	return &emptyResponse{XMLName: respName("StopResponse")}, nil
}

// seek only forwards the target to the player; the TRANSITIONING
// transport-state side effect happens asynchronously when the player
// reports its own "seek" IPC event back, not here.
func (d *Device) seek(ctx context.Context, body []byte) (interface{}, error) {
	var args seekArgs
	if err := unmarshalArgs(body, &args); err != nil {
		return nil, fault(ErrInvalidArgs, "%v", err)
	}
	if err := validateAllowed(AVTransport, "A_ARG_TYPE_SeekMode", args.Unit); err != nil {
		return nil, NewFault(ErrIllegalSeekTarget, "unsupported seek unit "+args.Unit)
	}
	if err := d.player.Seek(ctx, args.Unit, args.Target); err != nil {
		return nil, fault(ErrActionFailed, "%v", err)
	}
	return &emptyResponse{XMLName: respName("SeekResponse")}, nil
}

func (d *Device) next(ctx context.Context, body []byte) (interface{}, error) {
	if err := d.player.Next(ctx); err != nil {
		return nil, fault(ErrActionFailed, "%v", err)
	}
	return &emptyResponse{XMLName: respName("NextResponse")}, nil
}

func (d *Device) previous(ctx context.Context, body []byte) (interface{}, error) {
	if err := d.player.Previous(ctx); err != nil {
		return nil, fault(ErrActionFailed, "%v", err)
	}
	return &emptyResponse{XMLName: respName("PreviousResponse")}, nil
}

// getPositionInfo, getMediaInfo, getTransportInfo echo straight out of the
// state table: the response just reflects whatever commit() last set.
func (d *Device) getPositionInfo(ctx context.Context, body []byte) (interface{}, error) {
	s := d.AVTransport.GetAll()
	track, _ := parseIntOr(s["CurrentTrack"], 0)
	return &getPositionInfoResponse{
		XMLName:       respName("GetPositionInfoResponse"),
		Track:         track,
		TrackDuration: orDefault(s["CurrentTrackDuration"], "00:00:00"),
		TrackMetaData: s["CurrentTrackMetaData"],
		TrackURI:      s["CurrentTrackURI"],
		RelTime:       orDefault(s["RelativeTimePosition"], "00:00:00"),
		AbsTime:       orDefault(s["AbsoluteTimePosition"], "00:00:00"),
		RelCount:      2147483647,
		AbsCount:      2147483647,
	}, nil
}

func (d *Device) getMediaInfo(ctx context.Context, body []byte) (interface{}, error) {
	s := d.AVTransport.GetAll()
	tracks, _ := parseIntOr(s["NumberOfTracks"], 0)
	return &getMediaInfoResponse{
		XMLName:            respName("GetMediaInfoResponse"),
		NrTracks:           tracks,
		MediaDuration:      orDefault(s["CurrentMediaDuration"], "00:00:00"),
		CurrentURI:         s["AVTransportURI"],
		CurrentURIMetaData: s["AVTransportURIMetaData"],
		NextURI:            orDefault(s["NextAVTransportURI"], "NOT_IMPLEMENTED"),
		NextURIMetaData:    orDefault(s["NextAVTransportURIMetaData"], "NOT_IMPLEMENTED"),
		PlayMedium:         orDefault(s["PlaybackStorageMedium"], "NONE"),
	}, nil
}

func (d *Device) getTransportInfo(ctx context.Context, body []byte) (interface{}, error) {
	s := d.AVTransport.GetAll()
	return &getTransportInfoResponse{
		XMLName:                respName("GetTransportInfoResponse"),
		CurrentTransportState:  orDefault(s["TransportState"], "STOPPED"),
		CurrentTransportStatus: orDefault(s["TransportStatus"], "OK"),
		CurrentSpeed:           orDefault(s["TransportPlaySpeed"], "1"),
	}, nil
}

func (d *Device) avTransportNoOp(ctx context.Context, body []byte) (interface{}, error) {
	return &emptyResponse{XMLName: respName("Response")}, nil
}
