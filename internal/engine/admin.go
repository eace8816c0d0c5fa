package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"

	"github.com/parkiq/parkiq-server/internal/model"
)

// Admin operations.  All of them are privileged: the HTTP layer gates them
// behind the admin role, and every one is recorded as a privileged action
// in the audit log.

// ForceBook assigns the earliest available non-VIP spot to a requester,
// bypassing the waitlist entirely (explicit queue-jump).
func (c *Coordinator) ForceBook(ctx context.Context, adminID, userID string) (*model.Spot, error) {
	if _, err := c.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	free, err := c.spots.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	now := c.now()
	deadline := now.Add(c.graceDuration(ctx))
	for _, s := range free {
		if s.IsVIP {
			continue
		}
		err := c.spots.Reserve(ctx, s.ID, userID, now, deadline)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		booking := &model.Booking{
			ID:			 uuid.NewString(),
			UserID:		 userID,
			Date:		 now.UTC().Format("2006-01-02"),
			Time:		 "09:00",
			SpotID:		 &s.ID,
			Status:		 model.BookingReserved,
			CarpoolWith: []string{},
			Score:		 100, // queue-jump sentinel score, never ranked
			ForceBooked: true,
			CreatedAt:	 now,
		}
		if err := c.bookings.Create(ctx, booking); err != nil {
			_ = c.spots.Release(ctx, s.ID, model.SpotReserved, userID)
			return nil, err
		}
		c.timers.Start(TimerGrace, s.ID, userID, c.graceDuration(ctx))
		_ = c.audit.Record(ctx, adminID, "admin_force_book", fmt.Sprintf("assigned spot %d to %s", s.Num, userID))
		c.notifier.StateChanged(ctx, "force_book", s.ID, userID)
		spot := s
		return &spot, nil
	}
	return nil, fmt.Errorf("%w: no spot available for forced assignment", ErrValidation)
}

// ClearPenalty zeroes a requester's violation count and lifts any ban.
func (c *Coordinator) ClearPenalty(ctx context.Context, adminID, userID string) error {
	if err := c.users.ClearPenalty(ctx, userID); err != nil {
		return err
	}
	_ = c.audit.Record(ctx, adminID, "admin_clear_penalty", fmt.Sprintf("cleared all penalties for %s", userID))
	c.notifier.StateChanged(ctx, "clear_penalty", "", userID)
	return nil
}

// GuestPass creates a guest requester with the given bcrypt access hash and
// tries to reserve a VIP spot for them, falling back to any available spot.
// A pass is still issued when the lot is full.
func (c *Coordinator) GuestPass(ctx context.Context, adminID, name, accessHash string) (*GuestPassResult, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: guest name is required", ErrValidation)
	}
	id := guestID()
	guest := &model.User{
		ID:			id,
		Name:		name,
		Email:		fmt.Sprintf("guest-%s@parkiq.local", id),
		Role:		"guest",
		Tier:		5,
		AccessHash: accessHash,
	}
	if err := c.users.Create(ctx, guest); err != nil {
		return nil, err
	}
	result := &GuestPassResult{GuestID: id, Code: "QR-" + id}

	free, err := c.spots.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	// VIP spots first: guests are the one path allowed onto the reserved tier.
	ordered := make([]model.Spot, 0, len(free))
	for _, s := range free {
		if s.IsVIP {
			ordered = append(ordered, s)
		}
	}
	for _, s := range free {
		if !s.IsVIP {
			ordered = append(ordered, s)
		}
	}
	now := c.now()
	deadline := now.Add(c.graceDuration(ctx))
	for _, s := range ordered {
		err := c.spots.Reserve(ctx, s.ID, id, now, deadline)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		booking := &model.Booking{
			ID:			 uuid.NewString(),
			UserID:		 id,
			Date:		 now.UTC().Format("2006-01-02"),
			Time:		 "08:00",
			SpotID:		 &s.ID,
			Status:		 model.BookingReserved,
			CarpoolWith: []string{},
			Score:		 100,
			ForceBooked: true,
			CreatedAt:	 now,
		}
		if err := c.bookings.Create(ctx, booking); err != nil {
			_ = c.spots.Release(ctx, s.ID, model.SpotReserved, id)
			return nil, err
		}
		c.timers.Start(TimerGrace, s.ID, id, c.graceDuration(ctx))
		result.SpotID = s.ID
		result.SpotNum = s.Num
		break
	}
	_ = c.audit.Record(ctx, adminID, "admin_guest_pass", fmt.Sprintf("created guest pass %s (spot %d)", id, result.SpotNum))
	c.notifier.StateChanged(ctx, "guest_pass", result.SpotID, id)
	return result, nil
}

// UpdateRules writes runtime settings and, when capacity changed, resizes
// the spot registry and reassigns classification flags.
func (c *Coordinator) UpdateRules(ctx context.Context, adminID string, rules map[string]string) error {
	for k, v := range rules {
		if err := c.settings.Set(ctx, k, v); err != nil {
			return err
		}
	}
	if capStr, ok := rules[SettingCapacity]; ok {
		capacity, err := strconv.Atoi(capStr)
		if err != nil || capacity < 1 {
			return fmt.Errorf("%w: invalid capacity %q", ErrValidation, capStr)
		}
		carpool := c.settingInt(ctx, SettingCarpoolSpots, 0)
		ev := c.settingInt(ctx, SettingEVSpots, 0)
		vip := c.settingInt(ctx, SettingVIPSpots, 0)
		if err := c.spots.Resize(ctx, capacity, carpool, ev, vip); err != nil {
			return err
		}
	}
	_ = c.audit.Record(ctx, adminID, "admin_rules_update", "updated global settings")
	c.notifier.StateChanged(ctx, "rules_update", "", "")
	return nil
}

// RecentAudit returns the newest audit entries for the admin log view.
func (c *Coordinator) RecentAudit(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return c.audit.Recent(ctx, limit)
}

// Seed initializes the spot registry and settings on first boot: 30 spots
// split 5 carpool / 4 EV / 3 VIP unless the settings say otherwise.
func (c *Coordinator) Seed(ctx context.Context) error {
	n, err := c.spots.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	const (
		capacity = 30
		carpool	 = 5
		ev		 = 4
		vip		 = 3
	)
	if err := c.spots.Resize(ctx, capacity, carpool, ev, vip); err != nil {
		return err
	}
	defaults := map[string]string{
		SettingCapacity:	 strconv.Itoa(capacity),
		SettingCarpoolSpots: strconv.Itoa(carpool),
		SettingEVSpots:		 strconv.Itoa(ev),
		SettingVIPSpots:	 strconv.Itoa(vip),
		SettingGracePeriod:	 strconv.Itoa(c.rules.GraceMinutes),
		SettingOfferWindow:	 strconv.Itoa(c.rules.OfferMinutes),
		SettingExtension:	 strconv.Itoa(c.rules.ExtensionMinutes),
		SettingMiddayMax:	 strconv.Itoa(c.rules.MiddayMaxHours),
		SettingWeeklyQuota:	 "1",
	}
	for k, v := range defaults {
		if err := c.settings.Set(ctx, k, v); err != nil {
			return err
		}
	}
	log.Printf("engine: seeded %d spots (%d carpool, %d ev, %d vip)", capacity, carpool, ev, vip)
	return nil
}
