package storyboard

import (
	"sync"
	"time"
)

// DefaultSampleThrottle matches a 60 Hz frame budget.
const DefaultSampleThrottle = 16 * time.Millisecond

// ScrollSource publishes the scroll offset of a viewport. Raw offsets are
// reported with Report; at most one sample per throttle interval is
// accepted and broadcast to subscribers. A report arriving inside the
// interval is not lost: it is kept as the pending sample and delivered by the
// next Report or Flush once the interval has elapsed, so bursts coalesce to
// their latest value.
//
// Subscribers are called synchronously, in subscription order, on the
// goroutine that calls Report or Flush.
type ScrollSource struct {
	throttle time.Duration
	now      func() time.Time

	mu          sync.Mutex
	offset      float64
	lastAccept  time.Time
	accepted    bool
	pending     float64
	havePending bool
	subs        []sourceSub
	nextID      uint64
}

type sourceSub struct {
	id uint64
	fn func(float64)
}

// NewScrollSource creates a source with the given sampling throttle. A zero
// throttle selects DefaultSampleThrottle; a negative throttle accepts every
// report.
func NewScrollSource(throttle time.Duration) *ScrollSource {
	if throttle == 0 {
		throttle = DefaultSampleThrottle
	}
	return &ScrollSource{throttle: throttle, now: time.Now}
}

// SetClock replaces the time source used for throttling. Intended for tests
// and scripted replays that advance time frame by frame.
func (s *ScrollSource) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Offset returns the most recently accepted offset.
func (s *ScrollSource) Offset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Throttle returns the sampling interval.
func (s *ScrollSource) Throttle() time.Duration {
	return s.throttle
}

// Report offers a raw offset. It returns true when the sample was accepted
// and broadcast, false when it was held back as the pending sample.
func (s *ScrollSource) Report(y float64) bool {
	s.mu.Lock()
	now := s.now()
	if s.accepted && s.throttle > 0 && now.Sub(s.lastAccept) < s.throttle {
		s.pending = y
		s.havePending = true
		s.mu.Unlock()
		return false
	}
	subs := s.acceptLocked(y, now)
	s.mu.Unlock()

	broadcast(subs, y)
	return true
}

// Flush delivers the pending sample if the throttle interval has elapsed.
// Call it once per frame so the last sample of a gesture is never dropped.
func (s *ScrollSource) Flush() bool {
	s.mu.Lock()
	if !s.havePending {
		s.mu.Unlock()
		return false
	}
	now := s.now()
	if s.throttle > 0 && now.Sub(s.lastAccept) < s.throttle {
		s.mu.Unlock()
		return false
	}
	y := s.pending
	subs := s.acceptLocked(y, now)
	s.mu.Unlock()

	broadcast(subs, y)
	return true
}

// Pending reports whether a coalesced sample is waiting for delivery.
func (s *ScrollSource) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.havePending
}

// acceptLocked records y as the current offset and returns a snapshot of the
// subscribers to notify outside the lock.
func (s *ScrollSource) acceptLocked(y float64, now time.Time) []sourceSub {
	s.offset = y
	s.lastAccept = now
	s.accepted = true
	s.havePending = false
	return append([]sourceSub(nil), s.subs...)
}

func broadcast(subs []sourceSub, y float64) {
	for _, sub := range subs {
		sub.fn(y)
	}
}

// Subscribe registers fn to receive every accepted sample.
// Panics if fn is nil.
func (s *ScrollSource) Subscribe(fn func(y float64)) Subscription {
	if fn == nil {
		panic("storyboard: nil scroll subscriber")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.subs = append(s.subs, sourceSub{id: s.nextID, fn: fn})
	return Subscription{id: s.nextID, src: s}
}

// Subscription is the handle returned by ScrollSource.Subscribe.
type Subscription struct {
	id  uint64
	src *ScrollSource
}

// Remove stops delivery to the subscriber. Safe to call more than once.
func (h Subscription) Remove() {
	if h.src == nil {
		return
	}
	s := h.src
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.subs {
		if s.subs[i].id == h.id {
			copy(s.subs[i:], s.subs[i+1:])
			s.subs[len(s.subs)-1] = sourceSub{}
			s.subs = s.subs[:len(s.subs)-1]
			return
		}
	}
}
