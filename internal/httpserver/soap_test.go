package httpserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/renderd/internal/events"
	"github.com/navidrome/renderd/internal/upnp"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	device := upnp.NewDevice("uuid:test", "renderd-test")
	mgr := events.NewManager(events.Config{})
	s := New(device, mgr)
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func soapRequest(t *testing.T, ts *httptest.Server, path, action, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", `"`+action+`"`)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(payload)
}

func envelope(inner string) string {
	return `<?xml version="1.0"?>` +
		`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` +
		`<s:Body>` + inner + `</s:Body></s:Envelope>`
}

func TestHandleControlGetVolumeRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)

	body := envelope(`<u:GetVolume xmlns:u="urn:schemas-upnp-org:service:RenderingControl:1"><InstanceID>0</InstanceID><Channel>Master</Channel></u:GetVolume>`)
	resp, got := soapRequest(t, ts, "/dlna/RenderingControl/control", "urn:schemas-upnp-org:service:RenderingControl:1#GetVolume", body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, got, "<CurrentVolume>50</CurrentVolume>")
	assert.Contains(t, got, `xmlns:u="urn:schemas-upnp-org:service:RenderingControl:1"`)
}

func TestHandleControlSetVolumeOutOfRangeReturnsFault(t *testing.T) {
	_, ts := newTestServer(t)

	body := envelope(`<u:SetVolume xmlns:u="urn:schemas-upnp-org:service:RenderingControl:1"><InstanceID>0</InstanceID><Channel>Master</Channel><DesiredVolume>200</DesiredVolume></u:SetVolume>`)
	resp, got := soapRequest(t, ts, "/dlna/RenderingControl/control", "urn:schemas-upnp-org:service:RenderingControl:1#SetVolume", body)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, got, "<errorCode>601</errorCode>")
}

func TestHandleControlUnknownActionReturnsFault(t *testing.T) {
	_, ts := newTestServer(t)

	body := envelope(`<u:NotARealAction xmlns:u="urn:schemas-upnp-org:service:RenderingControl:1"/>`)
	resp, got := soapRequest(t, ts, "/dlna/RenderingControl/control", "urn:schemas-upnp-org:service:RenderingControl:1#NotARealAction", body)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, got, "<errorCode>401</errorCode>")
}

func TestExtractActionNameFromSOAPAction(t *testing.T) {
	assert.Equal(t, "Play", extractActionName(`urn:schemas-upnp-org:service:AVTransport:1#Play`))
	assert.Equal(t, "Play", extractActionName("Play"))
}

func TestDeviceDescriptionIsServed(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := ts.Client().Get(ts.URL + "/description.xml")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<friendlyName>renderd-test</friendlyName>")
	assert.Contains(t, string(body), "urn:schemas-upnp-org:device:MediaRenderer:1")
}
