package upnp

import (
	"context"
	"encoding/xml"
)

// protocolInfo lists the http-get sink formats renderd accepts, passed to
// the player unchanged; mpv decodes far more than this but advertising a
// narrower, explicit list keeps control points from offering formats mpv
// would have to transcode around.
var protocolInfo = []string{
	"http-get:*:audio/mpeg:*",
	"http-get:*:audio/mp4:*",
	"http-get:*:audio/flac:DLNA.ORG_PN=FLAC",
	"http-get:*:audio/x-flac:*",
	"http-get:*:audio/wav:*",
	"http-get:*:audio/x-wav:*",
	"http-get:*:audio/ogg:*",
	"http-get:*:audio/opus:*",
	"http-get:*:audio/aac:*",
	"http-get:*:audio/x-ms-wma:*",
	"http-get:*:application/octet-stream:*",
}

func joinProtocols(protocols []string) string {
	out := ""
	for i, p := range protocols {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

type getProtocolInfoResponse struct {
	XMLName xml.Name `xml:"GetProtocolInfoResponse"`
	Source  string   `xml:"Source"`
	Sink    string   `xml:"Sink"`
}

type getCurrentConnectionIDsResponse struct {
	XMLName       xml.Name `xml:"GetCurrentConnectionIDsResponse"`
	ConnectionIDs string   `xml:"ConnectionIDs"`
}

type getCurrentConnectionInfoResponse struct {
	XMLName               xml.Name `xml:"GetCurrentConnectionInfoResponse"`
	RcsID                 int      `xml:"RcsID"`
	AVTransportID         int      `xml:"AVTransportID"`
	ProtocolInfo          string   `xml:"ProtocolInfo"`
	PeerConnectionManager string   `xml:"PeerConnectionManager"`
	PeerConnectionID      int      `xml:"PeerConnectionID"`
	Direction             string   `xml:"Direction"`
	Status                string   `xml:"Status"`
}

func (d *Device) connectionManagerHandler(action string) (actionHandler, bool) {
	switch action {
	case "GetProtocolInfo":
		return d.getProtocolInfo, true
	case "GetCurrentConnectionIDs":
		return d.getCurrentConnectionIDs, true
	case "GetCurrentConnectionInfo":
		return d.getCurrentConnectionInfo, true
	default:
		return nil, false
	}
}

func (d *Device) getProtocolInfo(ctx context.Context, body []byte) (interface{}, error) {
	return &getProtocolInfoResponse{
		XMLName: respName("GetProtocolInfoResponse"),
		Source:  "",
		Sink:    joinProtocols(protocolInfo),
	}, nil
}

func (d *Device) getCurrentConnectionIDs(ctx context.Context, body []byte) (interface{}, error) {
	return &getCurrentConnectionIDsResponse{
		XMLName:       respName("GetCurrentConnectionIDsResponse"),
		ConnectionIDs: d.ConnectionManager.Get("CurrentConnectionIDs"),
	}, nil
}

func (d *Device) getCurrentConnectionInfo(ctx context.Context, body []byte) (interface{}, error) {
	var args getCurrentConnectionInfoArgs
	if err := unmarshalArgs(body, &args); err != nil {
		return nil, fault(ErrInvalidArgs, "%v", err)
	}
	if args.ConnectionID != 0 {
		return nil, NewFault(ErrInvalidArgs, "unknown ConnectionID")
	}
	return &getCurrentConnectionInfoResponse{
		XMLName:               respName("GetCurrentConnectionInfoResponse"),
		RcsID:                 0,
		AVTransportID:         0,
		ProtocolInfo:          "",
		PeerConnectionManager: "",
		PeerConnectionID:      -1,
		Direction:             d.ConnectionManager.Get("A_ARG_TYPE_Direction"),
		Status:                "OK",
	}, nil
}

func defaultSinkProtocolInfo() string {
	return joinProtocols(protocolInfo)
}
