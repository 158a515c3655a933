package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/navidrome/renderd/internal/upnp"
)

// subscriber is one SUBSCRIBE registration: where to deliver NOTIFYs, the
// running SEQ counter, and how many consecutive deliveries have failed.
//
// Delivery for a single subscriber can run from several short-lived
// goroutines (one per Publish call), but they must complete their HTTP
// POSTs in the same order their SEQ numbers were handed out: two
// concurrent Publish calls racing a bare "go m.deliver(...)" per call could
// assign SEQ=0/SEQ=1 in one order but complete the underlying sends in the
// other, breaking the strictly-increasing-no-gaps NOTIFY sequence a control
// point observes. ticket/turn below is a FIFO turnstile that fixes that
// without keeping a permanent per-subscriber goroutine alive (which would
// leak past the tests that never UNSUBSCRIBE or let a subscription expire).
type subscriber struct {
	sid          string
	service      upnp.ServiceName
	callbackURL  string
	seq          uint32
	missed       int32
	lastSentHash uint64
	createdAt    time.Time

	nextTicket uint64

	turnMu sync.Mutex
	turn   *sync.Cond
	served uint64
}

func newSubscriber(sid string, service upnp.ServiceName, callbackURL string) *subscriber {
	s := &subscriber{
		sid:         sid,
		service:     service,
		callbackURL: callbackURL,
		createdAt:   time.Now(),
	}
	s.turn = sync.NewCond(&s.turnMu)
	return s
}

// currentSeq is the SEQ the next NOTIFY must carry: the count of previous
// successful sends. advanceSeq commits it only after a send succeeds, so a
// failed delivery retries the same SEQ instead of leaving a gap.
func (s *subscriber) currentSeq() uint32 {
	return atomic.LoadUint32(&s.seq)
}

func (s *subscriber) advanceSeq() {
	atomic.AddUint32(&s.seq, 1)
}

// takeTicket reserves this caller's place in the delivery order. Call
// synchronously from the goroutine that discovered the state change, before
// spawning the goroutine that will actually deliver it.
func (s *subscriber) takeTicket() uint64 {
	return atomic.AddUint64(&s.nextTicket, 1) - 1
}

// awaitTurn blocks until every lower-numbered ticket has called doneTurn,
// so deliveries complete in ticket order regardless of scheduling or HTTP
// latency differences between goroutines.
func (s *subscriber) awaitTurn(ticket uint64) {
	s.turnMu.Lock()
	for s.served != ticket {
		s.turn.Wait()
	}
	s.turnMu.Unlock()
}

// doneTurn releases the next ticket in line.
func (s *subscriber) doneTurn() {
	s.turnMu.Lock()
	s.served++
	s.turn.Broadcast()
	s.turnMu.Unlock()
}

func (s *subscriber) recordSuccess() {
	atomic.StoreInt32(&s.missed, 0)
}

// recordFailure returns the new consecutive-failure count.
func (s *subscriber) recordFailure() int32 {
	return atomic.AddInt32(&s.missed, 1)
}
