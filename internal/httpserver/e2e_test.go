package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/navidrome/renderd/internal/events"
	"github.com/navidrome/renderd/internal/upnp"
)

// notifyRecord is one NOTIFY received by the test callback server.
type notifyRecord struct {
	seq  string
	body string
}

// scriptedPlayer satisfies upnp.Player without any real mpv process.
type scriptedPlayer struct{}

func (scriptedPlayer) SetAVTransportURI(context.Context, string, string) error     { return nil }
func (scriptedPlayer) SetNextAVTransportURI(context.Context, string, string) error { return nil }
func (scriptedPlayer) Play(context.Context, string) error                          { return nil }
func (scriptedPlayer) Pause(context.Context) error                                 { return nil }
func (scriptedPlayer) Stop(context.Context) error                                  { return nil }
func (scriptedPlayer) Seek(context.Context, string, string) error                  { return nil }
func (scriptedPlayer) Next(context.Context) error                                  { return nil }
func (scriptedPlayer) Previous(context.Context) error                              { return nil }
func (scriptedPlayer) SetVolume(context.Context, int) error                        { return nil }
func (scriptedPlayer) SetMute(context.Context, bool) error                         { return nil }

var _ = Describe("control and eventing round trips", func() {
	var (
		ts       *httptest.Server
		callback *httptest.Server
		notifies chan notifyRecord
	)

	BeforeEach(func() {
		device := upnp.NewDevice("uuid:e2e-test", "renderd-e2e")
		device.SetPlayer(scriptedPlayer{})
		mgr := events.NewManager(events.Config{})
		device.SetEventPublisher(mgr)
		srv := New(device, mgr)
		ts = httptest.NewServer(srv.routes())
		DeferCleanup(ts.Close)

		notifies = make(chan notifyRecord, 16)
		callback = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			notifies <- notifyRecord{seq: r.Header.Get("SEQ"), body: string(body)}
			w.WriteHeader(http.StatusOK)
		}))
		DeferCleanup(callback.Close)
	})

	subscribe := func(service, sid, timeout string) *http.Response {
		req, err := http.NewRequest("SUBSCRIBE", ts.URL+"/dlna/"+service+"/event", nil)
		Expect(err).ToNot(HaveOccurred())
		if sid != "" {
			req.Header.Set("SID", sid)
		} else {
			req.Header.Set("CALLBACK", "<"+callback.URL+"/cb>")
			req.Header.Set("NT", "upnp:event")
		}
		if timeout != "" {
			req.Header.Set("TIMEOUT", timeout)
		}
		resp, err := ts.Client().Do(req)
		Expect(err).ToNot(HaveOccurred())
		resp.Body.Close()
		return resp
	}

	post := func(service, action, inner string) *http.Response {
		body := `<?xml version="1.0"?>` +
			`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` +
			`<s:Body>` + inner + `</s:Body></s:Envelope>`
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/dlna/"+service+"/control", strings.NewReader(body))
		Expect(err).ToNot(HaveOccurred())
		req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
		req.Header.Set("SOAPAction", `"urn:schemas-upnp-org:service:`+service+`:1#`+action+`"`)
		resp, err := ts.Client().Do(req)
		Expect(err).ToNot(HaveOccurred())
		resp.Body.Close()
		return resp
	}

	nextNotify := func() notifyRecord {
		var rec notifyRecord
		Eventually(notifies, 2*time.Second).Should(Receive(&rec))
		return rec
	}

	It("notifies AVTransport subscribers after SetAVTransportURI", func() {
		resp := subscribe("AVTransport", "", "Second-1800")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		initial := nextNotify()
		Expect(initial.seq).To(Equal("0"))

		inner := `<u:SetAVTransportURI xmlns:u="urn:schemas-upnp-org:service:AVTransport:1">` +
			`<InstanceID>0</InstanceID>` +
			`<CurrentURI>http://example.com/a.mp4</CurrentURI>` +
			`<CurrentURIMetaData>&lt;DIDL-Lite&gt;&lt;item&gt;&lt;dc:title&gt;Demo&lt;/dc:title&gt;&lt;/item&gt;&lt;/DIDL-Lite&gt;</CurrentURIMetaData>` +
			`</u:SetAVTransportURI>`
		Expect(post("AVTransport", "SetAVTransportURI", inner).StatusCode).To(Equal(http.StatusOK))

		change := nextNotify()
		Expect(change.seq).To(Equal("1"))
		Expect(change.body).To(ContainSubstring("LastChange"))
		Expect(change.body).To(ContainSubstring("CurrentTrackURI"))
		Expect(change.body).To(ContainSubstring("Demo"))
		Expect(change.body).To(ContainSubstring("RelativeTimePosition"))
		Expect(change.body).To(ContainSubstring("00:00:00"))
	})

	It("renews a subscription in place and keeps the SID", func() {
		first := subscribe("AVTransport", "", "Second-60")
		Expect(first.StatusCode).To(Equal(http.StatusOK))
		sid := first.Header.Get("SID")
		Expect(sid).To(HavePrefix("uuid:"))
		Expect(first.Header.Get("TIMEOUT")).To(Equal("Second-60"))
		nextNotify() // initial event

		renewed := subscribe("AVTransport", sid, "Second-1800")
		Expect(renewed.StatusCode).To(Equal(http.StatusOK))
		Expect(renewed.Header.Get("SID")).To(Equal(sid))
		Expect(renewed.Header.Get("TIMEOUT")).To(Equal("Second-1800"))
	})

	It("delivers PLAYING then PAUSED_PLAYBACK in order", func() {
		subscribe("AVTransport", "", "")
		nextNotify() // initial event

		Expect(post("AVTransport", "Play",
			`<u:Play xmlns:u="urn:schemas-upnp-org:service:AVTransport:1"><InstanceID>0</InstanceID><Speed>1</Speed></u:Play>`).
			StatusCode).To(Equal(http.StatusOK))
		Expect(post("AVTransport", "Pause",
			`<u:Pause xmlns:u="urn:schemas-upnp-org:service:AVTransport:1"><InstanceID>0</InstanceID></u:Pause>`).
			StatusCode).To(Equal(http.StatusOK))

		playing := nextNotify()
		Expect(playing.seq).To(Equal("1"))
		Expect(playing.body).To(ContainSubstring("PLAYING"))
		paused := nextNotify()
		Expect(paused.seq).To(Equal("2"))
		Expect(paused.body).To(ContainSubstring("PAUSED_PLAYBACK"))
	})

	It("rejects eventing requests without credentials", func() {
		req, err := http.NewRequest("SUBSCRIBE", ts.URL+"/dlna/AVTransport/event", nil)
		Expect(err).ToNot(HaveOccurred())
		resp, err := ts.Client().Do(req)
		Expect(err).ToNot(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusPreconditionFailed))

		req, err = http.NewRequest("UNSUBSCRIBE", ts.URL+"/dlna/AVTransport/event", nil)
		Expect(err).ToNot(HaveOccurred())
		req.Header.Set("SID", "uuid:never-issued")
		resp, err = ts.Client().Do(req)
		Expect(err).ToNot(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusPreconditionFailed))
	})

	It("serves each service's SCPD document", func() {
		for _, svc := range []string{"AVTransport", "RenderingControl", "ConnectionManager"} {
			resp, err := ts.Client().Get(ts.URL + "/dlna/" + svc + "/scpd.xml")
			Expect(err).ToNot(HaveOccurred())
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(body)).To(ContainSubstring("urn:schemas-upnp-org:service-1-0"))
		}
	})
})
