// Package confirm is the gate between an authored broadcast draft and its
// dispatch. It holds at most one pending draft per operator chat; proposing a
// new draft silently replaces the old one, and confirming or cancelling clears
// the slot. The gate never dispatches anything itself: Confirm only releases
// the draft back to the caller.
package confirm

import (
	"errors"
	"sync"
	"time"

	"herald/internal/services/broadcast"
)

// ErrExpired is returned when there is nothing to confirm: no draft was
// proposed, it was already confirmed or cancelled, or it outlived the TTL.
var ErrExpired = errors.New("confirmation expired")

// Pending wraps a proposed broadcast awaiting the operator's YES/NO.
type Pending struct {
	Job       broadcast.Job
	Scheduled bool
	Delay     time.Duration
	CreatedAt time.Time
}

type Service struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[int64]Pending

	now func() time.Time
}

func New(ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		ttl:     ttl,
		pending: map[int64]Pending{},
		now:     time.Now,
	}
}

func (s *Service) Apply(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.ttl = ttl
	s.mu.Unlock()
}

// Propose stores p as the operator's pending confirmation, replacing any
// previous one (last draft wins).
func (s *Service) Propose(operator int64, p Pending) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.mu.Lock()
	s.pending[operator] = p
	s.mu.Unlock()
}

// Confirm releases the operator's pending draft. The caller decides whether
// it goes to immediate dispatch or into the job store.
func (s *Service) Confirm(operator int64) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[operator]
	if !ok {
		return Pending{}, ErrExpired
	}
	delete(s.pending, operator)
	if s.now().Sub(p.CreatedAt) > s.ttl {
		return Pending{}, ErrExpired
	}
	return p, nil
}

// Cancel discards the operator's pending draft without dispatching. It
// reports whether there was anything to cancel.
func (s *Service) Cancel(operator int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[operator]
	delete(s.pending, operator)
	return ok
}
