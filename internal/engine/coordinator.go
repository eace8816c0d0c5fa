package engine

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/parkiq/parkiq-server/internal/model"
	"github.com/parkiq/parkiq-server/internal/utils"
)

// Settings keys understood by the engine.	Values are stored as strings in
// the settings table and parsed on read; Rules carries the boot defaults.
const (
	SettingGracePeriod	 = "gracePeriod"		  // minutes
	SettingOfferWindow	 = "offerWindow"		  // minutes
	SettingExtension	 = "trafficExtension"	  // minutes
	SettingMiddayMax	 = "middayMax"			  // hours
	SettingWeeklyQuota	 = "extensionWeeklyQuota" // extensions per week
	SettingCapacity		 = "capacity"
	SettingVIPSpots		 = "vipSpots"
	SettingCarpoolSpots	 = "carpoolSpots"
	SettingEVSpots		 = "evSpots"
)

// Rules holds the boot-time defaults for runtime-tunable values.  The
// settings table overrides each of them once seeded.
type Rules struct {
	GraceMinutes	 int
	OfferMinutes	 int
	ExtensionMinutes int
	MiddayMaxHours	 int
}

// ReserveResult reports the outcome of a reservation request: either a
// direct assignment (SpotID set) or a waitlist placement (Rank set).
type ReserveResult struct {
	SpotID string  `json:"spot_id,omitempty"`
	SpotNum int	   `json:"spot_num,omitempty"`
	Rank   int	   `json:"waitlist_rank,omitempty"`
	Score  float64 `json:"score"`
}

// GuestPassResult reports a created guest pass and, when a spot was free,
// the immediate assignment.
type GuestPassResult struct {
	GuestID string `json:"guest_id"`
	Code	string `json:"code"`
	SpotID	string `json:"spot_id,omitempty"`
	SpotNum int	   `json:"spot_num,omitempty"`
}

// Snapshot is the full authoritative state served to clients after a
// state-changed signal.
type Snapshot struct {
	Spots	 []model.Spot	   `json:"spots"`
	Users	 []model.User	   `json:"users"`
	Bookings []model.Booking   `json:"bookings"`
	Settings map[string]string `json:"settings"`
}

// Coordinator orchestrates the spot registry, waitlist, timers and penalty
// engine.	It is the only component with cross-cutting responsibility: all
// public operations go through it, and it implements ExpiryHandler so timer
// callbacks and the recovery sweep share one code path.
//
// Concurrency: the coordinator holds no lock around spot mutations.  Every
// transition is a conditional update scoped by the expected prior state, so
// the database's serialization of concurrent writers is the sole safety
// mechanism; losers observe ErrConflict.
type Coordinator struct {
	spots	 SpotStore
	bookings BookingStore
	users	 UserStore
	settings SettingsStore
	audit	 AuditStore
	notifier Notifier
	timers	 *Scheduler
	penalty	 *Penalizer
	rules	 Rules

	now func() time.Time
}

// NewCoordinator wires the engine together and binds the scheduler's expiry
// callbacks to it.
func NewCoordinator(spots SpotStore, bookings BookingStore, users UserStore,
	settings SettingsStore, audit AuditStore, notifier Notifier, rules Rules) *Coordinator {
	c := &Coordinator{
		spots:	  spots,
		bookings: bookings,
		users:	  users,
		settings: settings,
		audit:	  audit,
		notifier: notifier,
		timers:	  NewScheduler(),
		penalty:  NewPenalizer(users, audit),
		rules:	  rules,
		now:	  time.Now,
	}
	c.timers.Bind(c)
	return c
}

// Timers exposes the scheduler for inspection (tests, recovery checks).
func (c *Coordinator) Timers() *Scheduler { return c.timers }

// settingInt reads an integer setting, falling back to def when the key is
// absent or malformed.
func (c *Coordinator) settingInt(ctx context.Context, key string, def int) int {
	v, err := c.settings.Get(ctx, key)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (c *Coordinator) graceDuration(ctx context.Context) time.Duration {
	return time.Duration(c.settingInt(ctx, SettingGracePeriod, c.rules.GraceMinutes)) * time.Minute
}

func (c *Coordinator) offerDuration(ctx context.Context) time.Duration {
	return time.Duration(c.settingInt(ctx, SettingOfferWindow, c.rules.OfferMinutes)) * time.Minute
}

func (c *Coordinator) extensionDuration(ctx context.Context) time.Duration {
	return time.Duration(c.settingInt(ctx, SettingExtension, c.rules.ExtensionMinutes)) * time.Minute
}

func (c *Coordinator) middayMax(ctx context.Context) time.Duration {
	return time.Duration(c.settingInt(ctx, SettingMiddayMax, c.rules.MiddayMaxHours)) * time.Hour
}

// Reserve handles a reservation request for the given date.  Direct
// assignment prefers a carpool lane when co-riders are present, then the
// lowest-numbered regular spot, then any remaining non-VIP spot.  When
// nothing is free (or every candidate is lost to a race) the request joins
// the waitlist and the 1-based rank is returned.
func (c *Coordinator) Reserve(ctx context.Context, userID, date, timeOfDay string, coRiders []string) (*ReserveResult, error) {
	now := c.now()
	if date == "" {
		return nil, fmt.Errorf("%w: date is required", ErrValidation)
	}
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrValidation, date)
	}
	if timeOfDay == "" {
		timeOfDay = "09:00"
	}
	tod, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid time %q", ErrValidation, timeOfDay)
	}
	start := day.Add(time.Duration(tod.Hour())*time.Hour + time.Duration(tod.Minute())*time.Minute)
	if start.Before(now.UTC().Truncate(time.Minute)) {
		return nil, fmt.Errorf("%w: requested time already passed", ErrValidation)
	}

	user, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.BanActive(now) {
		hrs := int(user.BanEnds.Sub(now).Hours()) + 1
		return nil, fmt.Errorf("%w: banned for another %dh", ErrAuthorization, hrs)
	}
	if user.Banned {
		// Ban window elapsed; clear it lazily on this attempt.
		if err := c.users.LiftBan(ctx, userID); err != nil {
			return nil, err
		}
	}

	if existing, err := c.bookings.ActiveForUserAndDate(ctx, userID, date); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: booking already exists for %s", ErrValidation, date)
	}

	score := Score(user.Tier, len(coRiders), user.NoShows, user.WaitHistory)

	spot, err := c.assignSpot(ctx, userID, len(coRiders) > 0, now)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		ID:				 uuid.NewString(),
		UserID:			 userID,
		Date:			 date,
		Time:			 timeOfDay,
		Status:			 model.BookingWaitlist,
		CarpoolWith:	 coRiders,
		CarpoolVerified: len(coRiders) > 0,
		Score:			 score,
		CreatedAt:		 now,
	}
	if spot != nil {
		booking.Status = model.BookingReserved
		booking.SpotID = &spot.ID
	}
	if err := c.bookings.Create(ctx, booking); err != nil {
		if spot != nil {
			// Undo the hold; the booking row is the record of ownership.
			_ = c.spots.Release(ctx, spot.ID, model.SpotReserved, userID)
		}
		return nil, err
	}

	if spot != nil {
		c.timers.Start(TimerGrace, spot.ID, userID, c.graceDuration(ctx))
		_ = c.audit.Record(ctx, userID, "reserve_spot", fmt.Sprintf("reserved spot %s for %s", spot.ID, date))
		c.notifier.StateChanged(ctx, "reserve", spot.ID, userID)
		return &ReserveResult{SpotID: spot.ID, SpotNum: spot.Num, Score: score}, nil
	}

	rank, err := c.bookings.Rank(ctx, score, booking.CreatedAt)
	if err != nil {
		return nil, err
	}
	_ = c.audit.Record(ctx, userID, "join_waitlist", fmt.Sprintf("waitlisted for %s at rank %d", date, rank))
	c.notifier.StateChanged(ctx, "waitlist", "", userID)
	return &ReserveResult{Rank: rank, Score: score}, nil
}

// assignSpot picks and conditionally reserves a direct-assignment candidate.
// Returns (nil, nil) when no candidate could be secured.
func (c *Coordinator) assignSpot(ctx context.Context, userID string, carpool bool, now time.Time) (*model.Spot, error) {
	free, err := c.spots.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	var lanes, regular []model.Spot
	for _, s := range free {
		if s.IsVIP {
			continue // reserved tier never auto-assigns
		}
		if s.IsCarpool {
			lanes = append(lanes, s)
		} else {
			regular = append(regular, s)
		}
	}
	// ListAvailable orders by spot number, so each group is already
	// lowest-number-first; only the group preference differs.
	var candidates []model.Spot
	if carpool {
		candidates = append(lanes, regular...)
	} else {
		candidates = append(regular, lanes...)
	}
	deadline := now.Add(c.graceDuration(ctx))
	for _, s := range candidates {
		err := c.spots.Reserve(ctx, s.ID, userID, now, deadline)
		if errors.Is(err, ErrConflict) {
			continue // lost the race for this spot, try the next
		}
		if err != nil {
			return nil, err
		}
		spot := s
		return &spot, nil
	}
	return nil, nil
}

// CheckIn confirms occupation of the caller's reserved spot and cancels the
// grace timer.
func (c *Coordinator) CheckIn(ctx context.Context, userID string) (*model.Spot, error) {
	spot, err := c.spots.FindByHolder(ctx, userID, model.SpotReserved)
	if err != nil {
		return nil, err
	}
	if err := c.spots.CheckIn(ctx, spot.ID, userID); err != nil {
		return nil, err
	}
	c.timers.Cancel(spot.ID)
	if err := c.bookings.SetStatusForSpot(ctx, spot.ID, userID, model.BookingReserved, model.BookingFulfilled, false); err != nil {
		return nil, err
	}
	_ = c.audit.Record(ctx, userID, "check_in", fmt.Sprintf("checked into spot %s", spot.ID))
	c.notifier.StateChanged(ctx, "checkin", spot.ID, userID)
	return spot, nil
}

// QRCheckIn resolves a "QR-<requester>" guest code and checks the holder in.
// When the requester carries an access hash (guest passes do), the scanned
// access code must match it.
func (c *Coordinator) QRCheckIn(ctx context.Context, code, accessCode string) (*model.Spot, error) {
	const prefix = "QR-"
	if len(code) <= len(prefix) || code[:len(prefix)] != prefix {
		return nil, fmt.Errorf("%w: malformed QR code", ErrValidation)
	}
	id := code[len(prefix):]
	user, err := c.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.AccessHash != "" && !utils.VerifyAccessCode(user.AccessHash, accessCode) {
		return nil, fmt.Errorf("%w: invalid access code", ErrAuthorization)
	}
	return c.CheckIn(ctx, id)
}

// CheckOut releases the caller's occupied spot, completes the booking and
// promotes the waitlist for the freed spot.
func (c *Coordinator) CheckOut(ctx context.Context, userID string) (*model.Spot, error) {
	spot, err := c.spots.FindByHolder(ctx, userID, model.SpotOccupied)
	if err != nil {
		return nil, err
	}
	if err := c.spots.Checkout(ctx, spot.ID, userID); err != nil {
		return nil, err
	}
	if err := c.bookings.SetStatusForSpot(ctx, spot.ID, userID, model.BookingFulfilled, model.BookingCompleted, false); err != nil {
		return nil, err
	}
	_ = c.audit.Record(ctx, userID, "check_out", fmt.Sprintf("checked out of spot %s", spot.ID))
	c.notifier.StateChanged(ctx, "checkout", spot.ID, userID)
	if err := c.PromoteWaitlist(ctx, spot.ID); err != nil {
		log.Printf("engine: waitlist promotion after checkout of %s failed: %v", spot.ID, err)
	}
	return spot, nil
}

// Cancel drops the caller's reserved hold without penalty and promotes the
// waitlist.
func (c *Coordinator) Cancel(ctx context.Context, userID string) (*model.Spot, error) {
	spot, err := c.spots.FindByHolder(ctx, userID, model.SpotReserved)
	if err != nil {
		return nil, err
	}
	if err := c.spots.Release(ctx, spot.ID, model.SpotReserved, userID); err != nil {
		return nil, err
	}
	c.timers.Cancel(spot.ID)
	if err := c.bookings.SetStatusForSpot(ctx, spot.ID, userID, model.BookingReserved, model.BookingCancelled, false); err != nil {
		return nil, err
	}
	_ = c.audit.Record(ctx, userID, "cancel_booking", fmt.Sprintf("cancelled reservation for spot %s", spot.ID))
	c.notifier.StateChanged(ctx, "cancel", spot.ID, userID)
	if err := c.PromoteWaitlist(ctx, spot.ID); err != nil {
		log.Printf("engine: waitlist promotion after cancel of %s failed: %v", spot.ID, err)
	}
	return spot, nil
}

// AcceptOffer converts the caller's pending offer into a reserved hold with
// a fresh grace deadline.	Ownership is enforced by the conditional update.
func (c *Coordinator) AcceptOffer(ctx context.Context, userID string) (*model.Spot, error) {
	spot, err := c.spots.FindByHolder(ctx, userID, model.SpotPendingOffer)
	if err != nil {
		return nil, err
	}
	deadline := c.now().Add(c.graceDuration(ctx))
	if err := c.spots.AcceptOffer(ctx, spot.ID, userID, deadline); err != nil {
		return nil, err
	}
	c.timers.Start(TimerGrace, spot.ID, userID, c.graceDuration(ctx))
	if err := c.bookings.SetStatusForSpot(ctx, spot.ID, userID, model.BookingOffered, model.BookingReserved, false); err != nil {
		return nil, err
	}
	_ = c.audit.Record(ctx, userID, "accept_offer", fmt.Sprintf("accepted offer for spot %s", spot.ID))
	c.notifier.StateChanged(ctx, "offer_accept", spot.ID, userID)
	return spot, nil
}

// DeclineOffer releases the caller's pending offer and passes the spot to
// the next waitlist candidate.
func (c *Coordinator) DeclineOffer(ctx context.Context, userID string) (*model.Spot, error) {
	spot, err := c.spots.FindByHolder(ctx, userID, model.SpotPendingOffer)
	if err != nil {
		return nil, err
	}
	if err := c.spots.Release(ctx, spot.ID, model.SpotPendingOffer, userID); err != nil {
		return nil, err
	}
	c.timers.Cancel(spot.ID)
	if err := c.bookings.SetStatusForSpot(ctx, spot.ID, userID, model.BookingOffered, model.BookingCancelled, false); err != nil {
		return nil, err
	}
	_ = c.audit.Record(ctx, userID, "decline_offer", fmt.Sprintf("declined offer for spot %s", spot.ID))
	c.notifier.StateChanged(ctx, "offer_decline", spot.ID, userID)
	if err := c.PromoteWaitlist(ctx, spot.ID); err != nil {
		log.Printf("engine: waitlist promotion after decline of %s failed: %v", spot.ID, err)
	}
	return spot, nil
}

// ExitTemporarily suspends the caller's occupied spot for a midday exit.
// The away timer is in-process only; a restart forgets it, and the daily
// reset bounds the damage.
func (c *Coordinator) ExitTemporarily(ctx context.Context, userID, returnTime string) (*model.Spot, error) {
	spot, err := c.spots.FindByHolder(ctx, userID, model.SpotOccupied)
	if err != nil {
		return nil, err
	}
	if err := c.spots.BeginTempAway(ctx, spot.ID, userID, returnTime); err != nil {
		return nil, err
	}
	c.timers.Start(TimerAway, spot.ID, userID, c.middayMax(ctx))
	_ = c.audit.Record(ctx, userID, "midday_exit", fmt.Sprintf("temporarily left spot %s until %s", spot.ID, returnTime))
	c.notifier.StateChanged(ctx, "temp_away", spot.ID, userID)
	return spot, nil
}

// ReturnFromTemporary ends a midday exit and restores occupation.
func (c *Coordinator) ReturnFromTemporary(ctx context.Context, userID string) (*model.Spot, error) {
	spot, err := c.spots.FindByHolder(ctx, userID, model.SpotTempAway)
	if err != nil {
		return nil, err
	}
	if err := c.spots.EndTempAway(ctx, spot.ID, userID); err != nil {
		return nil, err
	}
	c.timers.Cancel(spot.ID)
	_ = c.audit.Record(ctx, userID, "midday_return", fmt.Sprintf("returned to spot %s", spot.ID))
	c.notifier.StateChanged(ctx, "temp_return", spot.ID, userID)
	return spot, nil
}

// RequestExtension replaces the caller's grace deadline with a fresh
// extension-length one, subject to the daily and weekly quotas.  Note the
// replacement semantics: remaining time is discarded, not added to.
func (c *Coordinator) RequestExtension(ctx context.Context, userID string) (time.Time, error) {
	user, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	if user.GraceUsedToday >= 1 {
		return time.Time{}, fmt.Errorf("%w: daily extension already used", ErrValidation)
	}
	weekly := c.settingInt(ctx, SettingWeeklyQuota, 1)
	if user.GraceUsedWeek >= weekly {
		return time.Time{}, fmt.Errorf("%w: weekly extension quota exhausted", ErrValidation)
	}
	spot, err := c.spots.FindByHolder(ctx, userID, model.SpotReserved)
	if err != nil {
		return time.Time{}, err
	}
	ext := c.extensionDuration(ctx)
	deadline := c.now().Add(ext)
	if err := c.spots.ExtendDeadline(ctx, spot.ID, userID, deadline); err != nil {
		return time.Time{}, err
	}
	c.timers.Start(TimerGrace, spot.ID, userID, ext)
	if err := c.users.ConsumeExtension(ctx, userID); err != nil {
		return time.Time{}, err
	}
	_ = c.audit.Record(ctx, userID, "grace_extension", fmt.Sprintf("extended hold on spot %s to %s", spot.ID, deadline.UTC().Format(time.RFC3339)))
	c.notifier.StateChanged(ctx, "extension", spot.ID, userID)
	return deadline, nil
}

// PromoteWaitlist offers a freed spot to the top-ranked waitlist entry.
// A no-op when the spot is not available or is reserved-tier.	The spot
// grab and the booking flip are both conditional: losing either race moves
// on to the next candidate instead of double-assigning.
func (c *Coordinator) PromoteWaitlist(ctx context.Context, spotID string) error {
	spot, err := c.spots.GetByID(ctx, spotID)
	if err != nil {
		return err
	}
	if spot.State != model.SpotAvailable || spot.IsVIP {
		return nil
	}
	offerD := c.offerDuration(ctx)
	for {
		top, err := c.bookings.TopOfWaitlist(ctx)
		if err != nil {
			return err
		}
		if top == nil {
			return nil
		}
		now := c.now()
		err = c.spots.Offer(ctx, spotID, top.UserID, now, now.Add(offerD))
		if errors.Is(err, ErrConflict) {
			return nil // spot no longer available: another path won, abandon
		}
		if err != nil {
			return err
		}
		err = c.bookings.MarkOffered(ctx, top.ID, spotID)
		if errors.Is(err, ErrConflict) {
			// The entry left the waitlist between the two statements
			// (offered a different spot in the same instant).	Give the
			// spot back and try the next candidate.
			if relErr := c.spots.Release(ctx, spotID, model.SpotPendingOffer, top.UserID); relErr != nil {
				return relErr
			}
			continue
		}
		if err != nil {
			return err
		}
		c.timers.Start(TimerOffer, spotID, top.UserID, offerD)
		_ = c.audit.Record(ctx, top.UserID, "waitlist_offer", fmt.Sprintf("spot %s offered from waitlist", spotID))
		c.notifier.StateChanged(ctx, "offer", spotID, top.UserID)
		return nil
	}
}

// HandleGraceExpiry is the grace-timer callback: release the spot, record
// the no-show, escalate, and promote the waitlist.	 The conditional release
// doubles as the staleness re-check; if the spot already left reserved (or
// changed holder) the callback is a no-op.
func (c *Coordinator) HandleGraceExpiry(ctx context.Context, spotID, userID string) error {
	err := c.spots.Release(ctx, spotID, model.SpotReserved, userID)
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		return nil // stale callback: state moved on through another path
	}
	if err != nil {
		return err
	}
	if err := c.bookings.SetStatusForSpot(ctx, spotID, userID, model.BookingReserved, model.BookingCancelled, true); err != nil {
		return err
	}
	if _, _, err := c.penalty.RecordNoShow(ctx, userID, c.now()); err != nil {
		return err
	}
	log.Printf("engine: grace period expired for spot %s, released", spotID)
	c.notifier.StateChanged(ctx, "grace_expired", spotID, userID)
	return c.PromoteWaitlist(ctx, spotID)
}

// HandleOfferExpiry is the offer-timer callback: pass the spot on without
// penalizing the unresponsive candidate.
func (c *Coordinator) HandleOfferExpiry(ctx context.Context, spotID, userID string) error {
	err := c.spots.Release(ctx, spotID, model.SpotPendingOffer, userID)
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := c.bookings.SetStatusForSpot(ctx, spotID, userID, model.BookingOffered, model.BookingCancelled, false); err != nil {
		return err
	}
	log.Printf("engine: offer window expired for spot %s, released", spotID)
	c.notifier.StateChanged(ctx, "offer_expired", spotID, userID)
	return c.PromoteWaitlist(ctx, spotID)
}

// HandleAwayTimeout is the midday-exit callback: identical to grace expiry
// except the violation counter is untouched.
func (c *Coordinator) HandleAwayTimeout(ctx context.Context, spotID, userID string) error {
	err := c.spots.Release(ctx, spotID, model.SpotTempAway, userID)
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := c.bookings.SetStatusForSpot(ctx, spotID, userID, model.BookingFulfilled, model.BookingCancelled, false); err != nil {
		return err
	}
	_ = c.audit.Record(ctx, userID, "midday_timeout", fmt.Sprintf("away too long, spot %s released", spotID))
	c.notifier.StateChanged(ctx, "midday_timeout", spotID, userID)
	return c.PromoteWaitlist(ctx, spotID)
}

// Recover rebuilds timer state from persisted deadlines.  Deadlines that
// elapsed while the process was down run synchronously through the same
// handlers a live timer would invoke; the rest are rescheduled for their
// remaining duration.	Must complete before the server accepts requests.
func (c *Coordinator) Recover(ctx context.Context) error {
	pending, err := c.spots.PendingDeadlines(ctx)
	if err != nil {
		return err
	}
	now := c.now()
	for _, s := range pending {
		if s.UserID == nil || s.ExpiresAt == nil {
			continue
		}
		kind := TimerGrace
		if s.State == model.SpotPendingOffer {
			kind = TimerOffer
		}
		remaining := s.ExpiresAt.Sub(now)
		if remaining <= 0 {
			if err := Dispatch(ctx, c, kind, s.ID, *s.UserID); err != nil {
				// Leave the persisted deadline in place; the next sweep
				// retries it.
				log.Printf("engine: recovery expiry for spot %s failed: %v", s.ID, err)
			}
			continue
		}
		c.timers.Start(kind, s.ID, *s.UserID, remaining)
	}
	log.Printf("engine: recovery sweep processed %d pending deadline(s)", len(pending))
	return nil
}

// DailyReset returns every spot to available, cancels leftover non-terminal
// bookings, clears daily extension usage, and on Sundays clears weekly
// usage.  Exposed for both the in-process midnight ticker and an external
// scheduler.
func (c *Coordinator) DailyReset(ctx context.Context) error {
	c.timers.CancelAll()
	if err := c.spots.ReleaseAll(ctx); err != nil {
		return err
	}
	if err := c.bookings.CancelOpen(ctx); err != nil {
		return err
	}
	if err := c.users.ResetDailyGrace(ctx); err != nil {
		return err
	}
	if c.now().Weekday() == time.Sunday {
		if err := c.users.ResetWeeklyGrace(ctx); err != nil {
			return err
		}
	}
	_ = c.audit.Record(ctx, "system", "daily_reset", "all spots released, open bookings cancelled")
	c.notifier.StateChanged(ctx, "daily_reset", "", "")
	log.Printf("engine: daily reset complete")
	return nil
}

// StateSnapshot returns the authoritative state for clients re-fetching
// after a state-changed signal.
func (c *Coordinator) StateSnapshot(ctx context.Context) (*Snapshot, error) {
	spots, err := c.spots.List(ctx)
	if err != nil {
		return nil, err
	}
	users, err := c.users.List(ctx)
	if err != nil {
		return nil, err
	}
	bookings, err := c.bookings.List(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := c.settings.All(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Spots: spots, Users: users, Bookings: bookings, Settings: settings}, nil
}

// guestID returns a short "G<nnnn>" identifier for guest passes.
func guestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "G" + uuid.NewString()[:4]
	}
	n := binary.BigEndian.Uint32(b[:4])%9000 + 1000
	return fmt.Sprintf("G%d", n)
}
