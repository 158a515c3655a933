package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/renderd/internal/upnp"
)

func newCapturingCallback(t *testing.T, seqs chan string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seqs <- r.Header.Get("SEQ")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitForSeq(t *testing.T, seqs chan string) string {
	t.Helper()
	select {
	case seq := <-seqs:
		return seq
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a NOTIFY")
		return ""
	}
}

func TestSubscribeSendsInitialEventWithSeqZero(t *testing.T) {
	seqs := make(chan string, 4)
	srv := newCapturingCallback(t, seqs)

	m := NewManager(Config{})
	sid, timeout, err := m.Subscribe(context.Background(), upnp.RenderingControl, srv.URL, 0, map[string]string{"Volume": "50"})
	require.NoError(t, err)
	assert.NotEmpty(t, sid)
	assert.Positive(t, timeout)

	assert.Equal(t, "0", waitForSeq(t, seqs))
}

func TestSubscribeTwiceSameCallbackRenewsInPlace(t *testing.T) {
	seqs := make(chan string, 4)
	srv := newCapturingCallback(t, seqs)

	m := NewManager(Config{})
	sid1, _, err := m.Subscribe(context.Background(), upnp.AVTransport, srv.URL, 0, map[string]string{"TransportState": "STOPPED"})
	require.NoError(t, err)
	waitForSeq(t, seqs) // drain the initial NOTIFY from the first Subscribe

	sid2, _, err := m.Subscribe(context.Background(), upnp.AVTransport, srv.URL, 0, map[string]string{"TransportState": "STOPPED"})
	require.NoError(t, err)
	assert.Equal(t, sid1, sid2, "re-SUBSCRIBE with the same callback must renew, not duplicate")
}

func TestPublishIncrementsSeqPastInitialEvent(t *testing.T) {
	seqs := make(chan string, 4)
	srv := newCapturingCallback(t, seqs)

	m := NewManager(Config{})
	_, _, err := m.Subscribe(context.Background(), upnp.RenderingControl, srv.URL, 0, map[string]string{"Volume": "50"})
	require.NoError(t, err)
	require.Equal(t, "0", waitForSeq(t, seqs))

	m.Publish(upnp.RenderingControl, map[string]string{"Volume": "60"}, map[string]string{"Volume": "60"})
	assert.Equal(t, "1", waitForSeq(t, seqs))
}

func TestSeqNotConsumedByFailedDelivery(t *testing.T) {
	var failures int32
	seqs := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reject the first two NOTIFYs, accept the rest.
		if atomic.AddInt32(&failures, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		seqs <- r.Header.Get("SEQ")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	m := NewManager(Config{})
	_, _, err := m.Subscribe(context.Background(), upnp.RenderingControl, srv.URL, 0, map[string]string{"Volume": "50"})
	require.NoError(t, err)

	m.Publish(upnp.RenderingControl, map[string]string{"Volume": "60"}, nil)
	m.Publish(upnp.RenderingControl, map[string]string{"Volume": "70"}, nil)

	// The initial event and the first publish both failed, so the first
	// NOTIFY to get through still carries SEQ 0: SEQ counts successful
	// sends, and a failed delivery must not burn a number.
	assert.Equal(t, "0", waitForSeq(t, seqs))
}

func TestUnsubscribeRemovesSubscriber(t *testing.T) {
	m := NewManager(Config{})
	sid, _, err := m.Subscribe(context.Background(), upnp.RenderingControl, "http://127.0.0.1:1/cb", 0, nil)
	require.NoError(t, err)

	require.NoError(t, m.Unsubscribe(sid))
	assert.ErrorIs(t, m.Unsubscribe(sid), ErrUnknownSubscription)
}

func TestRenewUnknownSidFails(t *testing.T) {
	m := NewManager(Config{})
	_, err := m.Renew("uuid:does-not-exist", time.Minute)
	assert.ErrorIs(t, err, ErrUnknownSubscription)
}

func TestResubscribeAfterUnsubscribeMintsFreshSidAndSeq(t *testing.T) {
	seqs := make(chan string, 4)
	srv := newCapturingCallback(t, seqs)

	m := NewManager(Config{})
	sid1, _, err := m.Subscribe(context.Background(), upnp.RenderingControl, srv.URL, 0, map[string]string{"Volume": "50"})
	require.NoError(t, err)
	require.Equal(t, "0", waitForSeq(t, seqs))

	m.Publish(upnp.RenderingControl, map[string]string{"Volume": "60"}, nil)
	require.Equal(t, "1", waitForSeq(t, seqs))

	require.NoError(t, m.Unsubscribe(sid1))

	sid2, _, err := m.Subscribe(context.Background(), upnp.RenderingControl, srv.URL, 0, map[string]string{"Volume": "60"})
	require.NoError(t, err)
	assert.NotEqual(t, sid1, sid2, "a subscription torn down and recreated must get a fresh SID")
	assert.Equal(t, "0", waitForSeq(t, seqs), "SEQ must reset with the fresh subscription")
}
