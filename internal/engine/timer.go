package engine

import (
	"context"
	"log"
	"sync"
	"time"
)

// TimerKind distinguishes the three deadline flavours the scheduler tracks.
// Grace and offer deadlines are persisted on the spot row; the away timer is
// in-process only, since a temp-away spot carries no persisted deadline.
type TimerKind string

const (
	TimerGrace TimerKind = "grace"
	TimerOffer TimerKind = "offer"
	TimerAway  TimerKind = "away"
)

// ExpiryHandler receives timer callbacks.	Every handler must re-read the
// spot's current persisted state before acting, because a stale callback can
// fire after the state already changed through another path.  Handler
// errors are logged by the scheduler, never fatal.
type ExpiryHandler interface {
	HandleGraceExpiry(ctx context.Context, spotID, userID string) error
	HandleOfferExpiry(ctx context.Context, spotID, userID string) error
	HandleAwayTimeout(ctx context.Context, spotID, userID string) error
}

// Scheduler is the in-process timer registry, keyed by spot id.  It holds
// only cancellation handles: the persisted deadline on the spot row is the
// source of truth, and the scheduled callback is an optimization to avoid
// polling.	 At most one timer exists per spot; starting a new one replaces
// the old.
type Scheduler struct {
	mu		sync.Mutex
	timers	map[string]*time.Timer
	handler ExpiryHandler
}

// NewScheduler returns an empty registry.	Bind must be called before any
// timer fires.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Bind attaches the expiry handler.  Separate from the constructor because
// the coordinator implements ExpiryHandler and owns the scheduler.
func (s *Scheduler) Bind(h ExpiryHandler) { s.handler = h }

// Start schedules a callback of the given kind for the spot after d,
// replacing any existing timer for that spot.
func (s *Scheduler) Start(kind TimerKind, spotID, userID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[spotID]; ok {
		t.Stop()
	}
	s.timers[spotID] = time.AfterFunc(d, func() { s.fire(kind, spotID, userID) })
}

// Cancel drops the in-process handle for the spot.	 It does not clear the
// persisted deadline; that belongs to the state transition that owns the
// timer.
func (s *Scheduler) Cancel(spotID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[spotID]; ok {
		t.Stop()
		delete(s.timers, spotID)
	}
}

// CancelAll drops every handle (daily reset).
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Active reports whether an in-process timer currently exists for the spot.
func (s *Scheduler) Active(spotID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[spotID]
	return ok
}

func (s *Scheduler) fire(kind TimerKind, spotID, userID string) {
	s.mu.Lock()
	delete(s.timers, spotID)
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		log.Printf("scheduler: %s timer fired for spot %s with no handler bound", kind, spotID)
		return
	}
	if err := Dispatch(context.Background(), h, kind, spotID, userID); err != nil {
		// A failed expiry is safe to leave behind: the persisted deadline
		// survives and the next recovery sweep re-attempts it.
		log.Printf("scheduler: %s expiry for spot %s failed: %v", kind, spotID, err)
	}
}

// Dispatch routes an expiry to the matching handler method.  Exported so the
// recovery sweep can run elapsed deadlines synchronously through the same
// path a live timer would take.
func Dispatch(ctx context.Context, h ExpiryHandler, kind TimerKind, spotID, userID string) error {
	switch kind {
	case TimerGrace:
		return h.HandleGraceExpiry(ctx, spotID, userID)
	case TimerOffer:
		return h.HandleOfferExpiry(ctx, spotID, userID)
	case TimerAway:
		return h.HandleAwayTimeout(ctx, spotID, userID)
	}
	return nil
}
