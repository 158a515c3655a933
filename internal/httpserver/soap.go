package httpserver

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/navidrome/renderd/internal/metrics"
	"github.com/navidrome/renderd/internal/upnp"
	"github.com/navidrome/renderd/log"
)

// soapEnvelope captures the SOAP body as raw inner XML: the dispatcher
// needs the action name and its raw arguments before it knows which typed
// struct to unmarshal into.
type soapEnvelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    soapBody
}

type soapBody struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
	Content []byte   `xml:",innerxml"`
}

func (s *Server) handleControl(service upnp.ServiceName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			s.writeFault(w, upnp.NewFault(upnp.ErrActionFailed, "failed to read request"))
			return
		}

		var envelope soapEnvelope
		if err := xml.Unmarshal(body, &envelope); err != nil {
			log.Error(ctx, "failed to parse SOAP envelope", err)
			s.writeFault(w, upnp.NewFault(upnp.ErrActionFailed, "invalid SOAP envelope"))
			return
		}

		soapAction := strings.Trim(r.Header.Get("SOAPAction"), `"`)
		action := extractActionName(soapAction)
		log.Debug(ctx, "SOAP action", "service", service, "action", action)
		metrics.SOAPActionsTotal.WithLabelValues(string(service), action).Inc()

		resp, fault := s.device.Dispatch(ctx, service, action, envelope.Body.Content)
		if fault != nil {
			metrics.SOAPFaultsTotal.WithLabelValues(string(service), strconv.Itoa(fault.Code)).Inc()
			s.writeFault(w, fault)
			return
		}
		s.writeResponse(w, service, action, resp)
	}
}

func extractActionName(soapAction string) string {
	if idx := strings.LastIndex(soapAction, "#"); idx >= 0 {
		return soapAction[idx+1:]
	}
	return soapAction
}

func (s *Server) writeResponse(w http.ResponseWriter, service upnp.ServiceName, action string, inner []byte) {
	envelope := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<s:Body>%s</s:Body>
</s:Envelope>`, withActionNamespace(service, inner))

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.Header().Set("Ext", "")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(envelope))
}

// withActionNamespace puts the marshaled response element under the "u:"
// prefix and injects the service's xmlns:u attribute, since upnp's response
// structs only carry their bare element name (the dispatcher doesn't know
// its own service namespace at marshal time).
func withActionNamespace(service upnp.ServiceName, inner []byte) string {
	tag := string(inner)
	if nameEnd := strings.IndexAny(tag, " />"); strings.HasPrefix(tag, "<") && nameEnd > 1 {
		name := tag[1:nameEnd]
		if closing := "</" + name + ">"; strings.HasSuffix(tag, closing) {
			tag = strings.TrimSuffix(tag, closing) + "</u:" + name + ">"
		}
		tag = "<u:" + tag[1:]
	}
	firstGT := strings.Index(tag, ">")
	if firstGT == -1 {
		return tag
	}
	if strings.HasSuffix(tag[:firstGT], "/") {
		return tag[:firstGT-1] + ` xmlns:u="` + service.Type() + `"/>` + tag[firstGT+1:]
	}
	return tag[:firstGT] + ` xmlns:u="` + service.Type() + `">` + tag[firstGT+1:]
}

func (s *Server) writeFault(w http.ResponseWriter, f *upnp.Fault) {
	body := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<s:Body>
<s:Fault>
<faultcode>s:Client</faultcode>
<faultstring>UPnPError</faultstring>
<detail>
<UPnPError xmlns="urn:schemas-upnp-org:control-1-0">
<errorCode>%d</errorCode>
<errorDescription>%s</errorDescription>
</UPnPError>
</detail>
</s:Fault>
</s:Body>
</s:Envelope>`, f.Code, f.Description)

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(body))
}
