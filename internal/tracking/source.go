package tracking

import (
	"sync"

	"roam/internal/domain"
)

// PositionSource fans position fixes from the ingestion boundary into the
// session's single consumer loop, retaining a bounded history of raw fixes
// for path rendering. History is observational and never mutated.
type PositionSource struct {
	mu         sync.Mutex
	subscriber chan domain.Position
	history    []domain.Position
	historyCap int
	closed     bool
}

// NewPositionSource creates a source retaining up to historyCap fixes.
func NewPositionSource(historyCap int) *PositionSource {
	if historyCap <= 0 {
		historyCap = 1
	}
	return &PositionSource{historyCap: historyCap}
}

// Subscription is a cancellable handle on the position stream.
type Subscription struct {
	// C yields position fixes until the subscription is cancelled or the
	// source is closed.
	C <-chan domain.Position

	cancel func()
	once   sync.Once
}

// Cancel detaches the subscription. The channel is closed; no further
// fixes are delivered. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Subscribe attaches the single consumer. A new subscription replaces any
// previous one. Returns nil if the source has been closed.
func (s *PositionSource) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	if s.subscriber != nil {
		close(s.subscriber)
	}

	ch := make(chan domain.Position, 16)
	s.subscriber = ch

	return &Subscription{
		C: ch,
		cancel: func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.subscriber == ch {
				close(ch)
				s.subscriber = nil
			}
		},
	}
}

// Publish appends the fix to history and hands it to the subscriber.
// A slow consumer drops the fix rather than blocking the publisher;
// position streams are lossy by nature.
func (s *PositionSource) Publish(pos domain.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.history = append(s.history, pos)
	if len(s.history) > s.historyCap {
		s.history = s.history[len(s.history)-s.historyCap:]
	}

	if s.subscriber != nil {
		select {
		case s.subscriber <- pos:
		default:
		}
	}
}

// History returns a copy of the retained fixes, oldest first.
func (s *PositionSource) History() []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Position, len(s.history))
	copy(out, s.history)
	return out
}

// Close shuts the source down; the subscriber channel is closed and
// further publishes are ignored.
func (s *PositionSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.subscriber != nil {
		close(s.subscriber)
		s.subscriber = nil
	}
}
