package events

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gohugoio/hashstructure"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"github.com/navidrome/renderd/internal/metrics"
	"github.com/navidrome/renderd/internal/upnp"
	"github.com/navidrome/renderd/log"
)

// notifyRateLimit caps the aggregate NOTIFY send rate across all
// subscribers, so a burst of player property changes (e.g. a fast seek
// dragging time-pos events) can't hammer a slow control point's callback
// faster than it can plausibly process them.
const notifyRateLimit = rate.Limit(50)
const notifyBurst = 100

// Manager is the subscription registry and NOTIFY dispatcher for all three
// services. It implements upnp.EventPublisher, so internal/upnp.Device can
// call Publish directly whenever a SOAP action or a player IPC event
// mutates state, without knowing anything about HTTP delivery.
type Manager struct {
	subs            *ttlcache.Cache[string, *subscriber]
	client          *http.Client
	defaultTimeout  time.Duration
	maxMissedEvents int32

	tailMu   sync.Mutex
	tailSubs map[chan Tail]struct{}

	limiter  *rate.Limiter
	recorder Recorder
}

// Recorder persists a state-change batch for later inspection (the `renderd
// history` CLI). internal/history.Store satisfies this directly.
type Recorder interface {
	Record(ctx context.Context, service, kind, name string, detail map[string]string) error
}

// SetRecorder wires in the event history store; Publish becomes a no-op
// recorder call until this is set, matching how EventPublisher itself
// defaults to a noopPublisher before the orchestrator assembles everything.
func (m *Manager) SetRecorder(r Recorder) {
	m.recorder = r
}

// Tail is one state-variable batch, published for every control-point
// NOTIFY as well as for debug websocket tails connected via
// internal/httpserver's /debug/events endpoint.
type Tail struct {
	Service string            `json:"service"`
	Changed map[string]string `json:"changed"`
	At      time.Time         `json:"at"`
}

type Config struct {
	DefaultTimeout  time.Duration
	MaxMissedEvents int
}

func NewManager(cfg Config) *Manager {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 1800 * time.Second
	}
	if cfg.MaxMissedEvents <= 0 {
		cfg.MaxMissedEvents = 10
	}
	cache := ttlcache.New[string, *subscriber](
		ttlcache.WithTTL[string, *subscriber](cfg.DefaultTimeout),
	)
	cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *subscriber]) {
		if reason == ttlcache.EvictionReasonExpired {
			metrics.SubscribersGauge.WithLabelValues(string(item.Value().service)).Dec()
		}
	})
	return &Manager{
		subs:            cache,
		client:          &http.Client{Timeout: 5 * time.Second},
		defaultTimeout:  cfg.DefaultTimeout,
		maxMissedEvents: int32(cfg.MaxMissedEvents),
		tailSubs:        make(map[chan Tail]struct{}),
		limiter:         rate.NewLimiter(notifyRateLimit, notifyBurst),
	}
}

// Tail registers a channel to receive every published state-variable batch,
// for internal/httpserver's debug websocket endpoint. Unregister removes it.
func (m *Manager) Tail() (ch chan Tail, unregister func()) {
	ch = make(chan Tail, 16)
	m.tailMu.Lock()
	m.tailSubs[ch] = struct{}{}
	m.tailMu.Unlock()
	return ch, func() {
		m.tailMu.Lock()
		delete(m.tailSubs, ch)
		m.tailMu.Unlock()
		close(ch)
	}
}

func (m *Manager) broadcastTail(service upnp.ServiceName, changed map[string]string) {
	m.tailMu.Lock()
	defer m.tailMu.Unlock()
	if len(m.tailSubs) == 0 {
		return
	}
	t := Tail{Service: string(service), Changed: changed, At: time.Now()}
	for ch := range m.tailSubs {
		select {
		case ch <- t:
		default: // a slow debug client must not stall real NOTIFY delivery
		}
	}
}

// Run starts the cache's background TTL-eviction goroutine. Blocks until
// ctx is canceled.
func (m *Manager) Run(ctx context.Context) error {
	go m.subs.Start()
	<-ctx.Done()
	m.subs.Stop()
	return nil
}

// Subscribe registers a new control point callback, sends it an initial
// event carrying every evented variable's current value, and returns the
// new SID plus the timeout granted. A
// repeated SUBSCRIBE for the same (service, callbackURL) pair with no
// intervening UNSUBSCRIBE renews the existing subscriber in place instead
// of creating a duplicate, preserving its SID and running SEQ counter.
func (m *Manager) Subscribe(ctx context.Context, service upnp.ServiceName, callbackURL string, requestedTimeout time.Duration, initial map[string]string) (sid string, timeout time.Duration, err error) {
	if callbackURL == "" {
		return "", 0, fmt.Errorf("missing CALLBACK")
	}
	timeout = m.defaultTimeout
	if requestedTimeout > 0 {
		timeout = requestedTimeout
	}

	if existing := m.findByServiceAndURL(service, callbackURL); existing != nil {
		m.subs.Set(existing.sid, existing, timeout)
		return existing.sid, timeout, nil
	}

	sid = "uuid:" + uuid.NewString()
	sub := newSubscriber(sid, service, callbackURL)
	m.subs.Set(sid, sub, timeout)
	metrics.SubscribersGauge.WithLabelValues(string(service)).Inc()

	// The initial event outlives the SUBSCRIBE request whose ctx we were
	// handed; delivery must not die with the handler's return.
	m.dispatch(context.WithoutCancel(ctx), sub, initial)
	return sid, timeout, nil
}

// dispatch hands one changed-variable batch to sub's FIFO turnstile and
// spawns the goroutine that will deliver it once its turn comes, so the
// HTTP POST order matches the order batches were discovered in even when
// several Publish calls race each other for the same subscriber.
func (m *Manager) dispatch(ctx context.Context, sub *subscriber, changed map[string]string) {
	ticket := sub.takeTicket()
	go func() {
		sub.awaitTurn(ticket)
		defer sub.doneTurn()
		m.deliver(ctx, sub, changed)
	}()
}

// findByServiceAndURL enforces the (service, callbackURL) uniqueness
// invariant: at most one subscriber may exist for a given pair at any time.
func (m *Manager) findByServiceAndURL(service upnp.ServiceName, callbackURL string) *subscriber {
	for _, item := range m.subs.Items() {
		sub := item.Value()
		if sub.service == service && sub.callbackURL == callbackURL {
			return sub
		}
	}
	return nil
}

// Renew extends a subscription's lifetime, per a SUBSCRIBE request that
// carries SID instead of CALLBACK.
func (m *Manager) Renew(sid string, requestedTimeout time.Duration) (time.Duration, error) {
	item := m.subs.Get(sid)
	if item == nil {
		return 0, ErrUnknownSubscription
	}
	timeout := m.defaultTimeout
	if requestedTimeout > 0 {
		timeout = requestedTimeout
	}
	m.subs.Set(sid, item.Value(), timeout)
	return timeout, nil
}

// Unsubscribe removes a subscription immediately.
func (m *Manager) Unsubscribe(sid string) error {
	item := m.subs.Get(sid)
	if item == nil {
		return ErrUnknownSubscription
	}
	m.subs.Delete(sid)
	metrics.SubscribersGauge.WithLabelValues(string(item.Value().service)).Dec()
	return nil
}

// ErrUnknownSubscription is returned for SID-bearing SUBSCRIBE/UNSUBSCRIBE
// requests referencing an SID renderd has never seen or has since expired;
// the HTTP layer maps it to 412 Precondition Failed.
var ErrUnknownSubscription = fmt.Errorf("unknown subscription")

// Publish implements upnp.EventPublisher: fan the change out to every
// subscriber of the affected service.
func (m *Manager) Publish(service upnp.ServiceName, changed map[string]string, snapshot map[string]string) {
	if len(changed) == 0 {
		return
	}
	ctx := context.Background()
	for _, item := range m.subs.Items() {
		sub := item.Value()
		if sub.service != service {
			continue
		}
		m.dispatch(ctx, sub, changed)
	}
	m.broadcastTail(service, changed)
	if m.recorder != nil {
		go func() {
			if err := m.recorder.Record(context.Background(), string(service), "state-change", string(service), changed); err != nil {
				log.Warn(context.Background(), "failed to record history event", err)
			}
		}()
	}
}

func (m *Manager) deliver(ctx context.Context, sub *subscriber, changed map[string]string) {
	if len(changed) == 0 {
		return
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return
	}
	hash, err := hashstructure.Hash(changed, nil)
	if err == nil && hash == sub.lastSentHash {
		return // identical to the last NOTIFY sent to this subscriber; skip.
	}

	var body string
	if usesLastChange(sub.service) {
		body = buildLastChangeBody(sub.service, changed)
	} else {
		body = buildFlatPropertiesBody(changed)
	}

	req, err := http.NewRequestWithContext(ctx, methodNotify, sub.callbackURL, strings.NewReader(body))
	if err != nil {
		log.Error(ctx, "failed to build NOTIFY request", err, "sid", sub.sid)
		return
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("NTS", "upnp:propchange")
	req.Header.Set("SID", sub.sid)
	req.Header.Set("SEQ", strconv.FormatUint(uint64(sub.currentSeq()), 10))

	resp, err := m.client.Do(req)
	if err != nil {
		metrics.EventsDeliveredTotal.WithLabelValues(string(sub.service), "error").Inc()
		m.handleFailure(ctx, sub, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		metrics.EventsDeliveredTotal.WithLabelValues(string(sub.service), "rejected").Inc()
		m.handleFailure(ctx, sub, fmt.Errorf("NOTIFY rejected with status %s", resp.Status))
		return
	}
	metrics.EventsDeliveredTotal.WithLabelValues(string(sub.service), "ok").Inc()
	sub.advanceSeq()
	sub.recordSuccess()
	if hash != 0 {
		sub.lastSentHash = hash
	}
}

// handleFailure evicts after too many consecutive delivery failures, so a
// dead control point doesn't stay on the NOTIFY fan-out list forever.
func (m *Manager) handleFailure(ctx context.Context, sub *subscriber, err error) {
	missed := sub.recordFailure()
	log.Warn(ctx, "NOTIFY delivery failed", err, "sid", sub.sid, "missed", missed)
	if missed >= m.maxMissedEvents {
		log.Warn(ctx, "evicting unresponsive subscriber", "sid", sub.sid)
		m.subs.Delete(sub.sid)
		metrics.SubscribersGauge.WithLabelValues(string(sub.service)).Dec()
	}
}

// GENA's NOTIFY is a custom HTTP method, not one of net/http's constants.
const methodNotify = "NOTIFY"
