// Package tracking implements the awaitable request tracker: single-peer
// and cluster requests, correlation by tracker key, expiration, and
// fulfillment aggregation.
package tracking

import (
	"sync"
	"time"

	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/google/uuid"
)

// Key is the 128-bit tracker key. It is produced with uuid.NewSHA1 over the originating request's wire pack, a
// deterministic digest rather than a random value, so re-derivation from
// the same bytes (e.g. a retried local computation) yields the same key.
type Key = uuid.UUID

// trackerNamespace seeds the UUIDv5 digest NewKey uses. Any fixed value
// works here -- it only needs to be stable across a process's lifetime so
// two calls with identical pack bytes produce identical keys.
var trackerNamespace = uuid.MustParse("f4b16f2e-9c3e-4b8a-9b7b-5f6a6f6e6b10")

// NewKey derives a tracker key from the exact bytes of the request that
// created the tracker.
func NewKey(pack []byte) Key {
	return uuid.NewSHA1(trackerNamespace, pack)
}

// Status is the outcome PushResponse reports for one incoming response.
type Status int

const (
	Success Status = iota
	Fulfilled
	Expired
	Unexpected
)

func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case Fulfilled:
		return "Fulfilled"
	case Expired:
		return "Expired"
	case Unexpected:
		return "Unexpected"
	default:
		return "Unexpected"
	}
}

// TrackerState is the entry's own lifecycle, distinct from the per-response
// Status PushResponse returns.
type TrackerState int

const (
	Unfulfilled TrackerState = iota
	trackerFulfilled
	Completed
)

const defaultDeadline = 1500 * time.Millisecond

// slot is one expected peer's response within a tracker.
type slot struct {
	received bool
	pack     []byte
}

// entry is one outstanding tracker.
type entry struct {
	key       Key
	requestor string // originating source identifier, for the aggregate reply
	expected  int
	received  int
	deadline  time.Time
	state     TrackerState
	slots     map[string]*slot // peer id -> response slot
	onError   func(error)
}

// Aggregate is one peer's response folded into a fulfilled tracker's reply.
type Aggregate struct {
	Identifier string
	Pack       []byte
}

// FulfilledRequest is a tracker ProcessFulfilledRequests has decided to
// close out: the original requestor to send the aggregate back to, plus
// the responses collected before the deadline.
type FulfilledRequest struct {
	Key        Key
	Requestor  string
	Aggregates []Aggregate
}

// Service holds every outstanding tracker. It notifies an injected
// scheduler hook only when a push or response transitions a tracker into
// a state ProcessFulfilledRequests cares about: fulfillment detection
// always waits for the tracker's own scheduler tick rather than running
// inline.
type Service struct {
	mu       sync.Mutex
	trackers map[Key]*entry
	onReady  func() // OnTaskAvailable hook toward the scheduler delegate
	now      func() time.Time
}

// NewService builds a tracking service. onReady may be nil in tests that
// drive ProcessFulfilledRequests directly instead of through a scheduler.
func NewService(onReady func()) *Service {
	return &Service{
		trackers: make(map[Key]*entry),
		onReady:  onReady,
		now:      time.Now,
	}
}

func (s *Service) signal() {
	if s.onReady != nil {
		s.onReady()
	}
}

// Push stages a tracker for one or more expected peers. Single-peer and
// cluster requests share this one path, differing only in expected count
// and the slots pre-seeded.
func (s *Service) Push(requestor string, pack []byte, peerIDs []string) (Key, error) {
	if len(peerIDs) == 0 {
		return Key{}, errs.New(errs.InvalidArgument, "tracking: Push requires at least one peer")
	}

	key := NewKey(pack)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trackers[key]; exists {
		return Key{}, errs.New(errs.Conflict, "tracking: tracker key collision")
	}

	slots := make(map[string]*slot, len(peerIDs))
	for _, id := range peerIDs {
		slots[id] = &slot{}
	}

	s.trackers[key] = &entry{
		key:       key,
		requestor: requestor,
		expected:  len(peerIDs),
		deadline:  s.now().Add(defaultDeadline),
		state:     Unfulfilled,
		slots:     slots,
	}
	s.signal()
	return key, nil
}

// Cancel drops a tracker outright -- used when a cluster request schedules
// zero sends and must not leave a tracker nothing will ever fulfill.
func (s *Service) Cancel(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trackers, key)
}

// PushResponse folds one peer's response pack into the tracker named by
// key, returning the outcome for that individual response.
func (s *Service) PushResponse(key Key, peerID string, pack []byte) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.trackers[key]
	if !ok {
		return Unexpected
	}
	if e.state == Completed {
		return Unexpected
	}
	if s.now().After(e.deadline) {
		return Expired
	}

	sl, ok := e.slots[peerID]
	if !ok {
		return Unexpected
	}
	if !sl.received {
		sl.received = true
		sl.pack = pack
		e.received++
	} else {
		sl.pack = pack // a later response for the same peer overwrites
	}

	if e.received >= e.expected {
		e.state = trackerFulfilled
		s.signal()
		return Fulfilled
	}
	return Success
}

// ProcessFulfilledRequests walks every tracker and returns the ones ready
// to close: either every expected response arrived, or the deadline
// passed. The aggregate always has one entry per expected peer, even a
// non-responder -- its Pack is simply empty, so a partial cluster
// fulfillment still tells the caller who stayed silent. Each returned
// tracker is removed from the service, so a second call never reports it
// again.
func (s *Service) ProcessFulfilledRequests() []FulfilledRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var done []FulfilledRequest
	for key, e := range s.trackers {
		expired := now.After(e.deadline)
		if e.state != trackerFulfilled && !expired {
			continue
		}

		aggregates := make([]Aggregate, 0, len(e.slots))
		for id, sl := range e.slots {
			aggregates = append(aggregates, Aggregate{Identifier: id, Pack: sl.pack})
		}
		done = append(done, FulfilledRequest{Key: key, Requestor: e.requestor, Aggregates: aggregates})
		delete(s.trackers, key)
	}
	return done
}

// Outstanding reports how many trackers are still open, for diagnostics.
func (s *Service) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trackers)
}
