package engine

import (
	"context"
	"time"

	"github.com/parkiq/parkiq-server/internal/model"
)

// SpotStore is the persistence contract for the spot registry.	 Every
// mutating method issues a single conditional UPDATE guarded by the
// expected prior state (and by holder where ownership matters) and returns
// ErrConflict when zero rows matched.	Methods whose target transition is
// not in the static table fail with ErrState before touching the store.
type SpotStore interface {
	GetByID(ctx context.Context, id string) (*model.Spot, error)
	List(ctx context.Context) ([]model.Spot, error)
	// ListAvailable returns spots in state available ordered by Num.
	ListAvailable(ctx context.Context) ([]model.Spot, error)
	// FindByHolder returns the spot held by userID in one of the given
	// states, or ErrNotFound.
	FindByHolder(ctx context.Context, userID string, states ...model.SpotState) (*model.Spot, error)

	// Reserve performs available -> reserved and persists the grace deadline.
	Reserve(ctx context.Context, id, userID string, reservedAt, expiresAt time.Time) error
	// Offer performs available -> pending_offer and persists the offer deadline.
	Offer(ctx context.Context, id, userID string, reservedAt, expiresAt time.Time) error
	// AcceptOffer performs pending_offer -> reserved for the offer holder and
	// replaces the deadline with a fresh grace deadline.
	AcceptOffer(ctx context.Context, id, userID string, expiresAt time.Time) error
	// CheckIn performs reserved -> occupied for the holder and clears the deadline.
	CheckIn(ctx context.Context, id, userID string) error
	// Checkout performs occupied -> available through the transient completed
	// state, clearing holder and timestamps.
	Checkout(ctx context.Context, id, userID string) error
	// Release returns a spot to available from the given state, clearing
	// holder and timestamps.  Pass userID "" to release regardless of holder.
	Release(ctx context.Context, id string, from model.SpotState, userID string) error
	// BeginTempAway performs occupied -> temp_away, recording the advisory
	// return time.
	BeginTempAway(ctx context.Context, id, userID, returnTime string) error
	// EndTempAway performs temp_away -> occupied and clears the return time.
	EndTempAway(ctx context.Context, id, userID string) error
	// ExtendDeadline replaces the persisted deadline of a reserved spot.
	ExtendDeadline(ctx context.Context, id, userID string, expiresAt time.Time) error

	// PendingDeadlines returns spots in reserved or pending_offer with a
	// non-null deadline; the recovery sweep rebuilds timers from it.
	PendingDeadlines(ctx context.Context) ([]model.Spot, error)
	// ReleaseAll force-returns every spot to available (daily reset).
	ReleaseAll(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	// Resize grows or shrinks the registry to capacity spots and reassigns
	// classification flags: carpool lanes first, EV next, VIP at the top.
	Resize(ctx context.Context, capacity, carpool, ev, vip int) error
}

// BookingStore is the persistence contract for bookings and the derived
// waitlist view.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	List(ctx context.Context) ([]model.Booking, error)
	// ActiveForUserAndDate returns the user's non-cancelled booking for the
	// date, or nil when none exists.
	ActiveForUserAndDate(ctx context.Context, userID, date string) (*model.Booking, error)
	// SetStatusForSpot flips the booking bound to (spotID, userID, from) to
	// the new status, setting the no-show flag when asked.	 Matching zero
	// rows is not an error: booking updates that trail a spot transition are
	// best-effort follow-ups.
	SetStatusForSpot(ctx context.Context, spotID, userID string, from, to model.BookingStatus, noShow bool) error
	// TopOfWaitlist returns the highest-ranked waitlist booking by
	// (score DESC, created_at ASC), or nil when the waitlist is empty.
	TopOfWaitlist(ctx context.Context) (*model.Booking, error)
	// MarkOffered flips a waitlist booking to offered and binds it to the
	// spot; ErrConflict when the booking already left the waitlist.
	MarkOffered(ctx context.Context, bookingID, spotID string) error
	// Rank returns the 1-based waitlist position a booking with the given
	// score snapshot and creation time holds.
	Rank(ctx context.Context, score float64, createdAt time.Time) (int, error)
	// CancelOpen cancels every booking still in waitlist, offered or
	// reserved status (daily reset).
	CancelOpen(ctx context.Context) error
}

// UserStore is the persistence contract for requesters.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Create(ctx context.Context, u *model.User) error
	// IncrementNoShows bumps the violation counter and returns the new count.
	IncrementNoShows(ctx context.Context, id string) (int, error)
	SetBan(ctx context.Context, id string, until time.Time) error
	// LiftBan clears the ban flag and window without touching the counter
	// (lazy expiry on the next booking attempt).
	LiftBan(ctx context.Context, id string) error
	// ClearPenalty zeroes the violation counter and lifts any ban (admin).
	ClearPenalty(ctx context.Context, id string) error
	// ConsumeExtension increments both grace-extension usage counters.
	ConsumeExtension(ctx context.Context, id string) error
	ResetDailyGrace(ctx context.Context) error
	ResetWeeklyGrace(ctx context.Context) error
}

// SettingsStore is a key-value store for runtime-tunable rules.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error) // ErrNotFound when absent
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// AuditStore records privileged and state-mutating actions.
type AuditStore interface {
	Record(ctx context.Context, userID, action, details string) error
	Recent(ctx context.Context, limit int) ([]model.AuditEntry, error)
}

// Notifier receives the coarse state-changed signal after every successful
// mutation.  Implementations must never fail the mutation: delivery errors
// are logged and dropped.
type Notifier interface {
	StateChanged(ctx context.Context, action, spotID, userID string)
}
