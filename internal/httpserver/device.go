package httpserver

import (
	"encoding/xml"
	"net/http"

	"github.com/navidrome/renderd/internal/upnp"
)

func (s *Server) handleDeviceDescription(w http.ResponseWriter, r *http.Request) {
	desc := upnp.BuildDeviceDescription(s.device.UUID, s.device.FriendlyName)
	out, err := xml.MarshalIndent(desc, "", "  ")
	if err != nil {
		http.Error(w, "failed to render device description", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.Write([]byte(xml.Header))
	w.Write(out)
}

func (s *Server) handleSCPD(service upnp.ServiceName) http.HandlerFunc {
	body := []byte(service.SCPD())
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.Write(body)
	}
}
