// Package events implements GENA-style eventing: SUBSCRIBE/UNSUBSCRIBE
// bookkeeping and the NOTIFY bodies pushed to subscribed control points.
package events

import (
	"fmt"
	"html"
	"strings"

	"github.com/navidrome/renderd/internal/upnp"
)

// buildLastChangeBody wraps AVTransport/RenderingControl state-variable
// changes in the <Event><InstanceID><VarName val=".."/></InstanceID></Event>
// shape those two services use, then wraps that in a single e:property
// named LastChange. One LastChange property per NOTIFY regardless of how
// many variables changed in the batch.
func buildLastChangeBody(service upnp.ServiceName, changed map[string]string) string {
	var vars strings.Builder
	for name, value := range changed {
		fmt.Fprintf(&vars, `<%s val="%s"/>`, name, html.EscapeString(value))
	}
	lastChange := fmt.Sprintf(
		`<Event xmlns="urn:schemas-upnp-org:metadata-1-0/%s/"><InstanceID val="0">%s</InstanceID></Event>`,
		eventNamespace(service), vars.String())

	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">
<e:property><LastChange>%s</LastChange></e:property>
</e:propertyset>`, html.EscapeString(lastChange))
}

// buildFlatPropertiesBody builds ConnectionManager's event shape: one
// e:property element per changed variable, no LastChange wrapper.
func buildFlatPropertiesBody(changed map[string]string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>
<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">
`)
	for name, value := range changed {
		fmt.Fprintf(&b, "<e:property><%s>%s</%s></e:property>\n", name, html.EscapeString(value), name)
	}
	b.WriteString(`</e:propertyset>`)
	return b.String()
}

func eventNamespace(service upnp.ServiceName) string {
	switch service {
	case upnp.AVTransport:
		return "AVT"
	case upnp.RenderingControl:
		return "RCS"
	default:
		return ""
	}
}

// usesLastChange reports whether a service batches changes into a single
// LastChange variable (AVTransport, RenderingControl) or sends flat
// properties (ConnectionManager).
func usesLastChange(service upnp.ServiceName) bool {
	return service == upnp.AVTransport || service == upnp.RenderingControl
}
