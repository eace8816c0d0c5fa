package engine

import (
	"context"
	"fmt"
	"time"
)

// BanDuration is how long booking privileges are suspended after the third
// no-show.
const BanDuration = 48 * time.Hour

// banThreshold is the violation count at which a ban is imposed.
const banThreshold = 3

// Penalizer escalates consequences for grace-period no-shows.	Offer expiry
// and temp-away timeouts never reach it.
type Penalizer struct {
	users UserStore
	audit AuditStore
}

// NewPenalizer wires the penalty engine to its stores.
func NewPenalizer(users UserStore, audit AuditStore) *Penalizer {
	return &Penalizer{users: users, audit: audit}
}

// RecordNoShow increments the requester's violation count and escalates.
// `at` is the grace-expiry instant; a ban imposed here ends exactly
// BanDuration after it.  Counts one and two only warn (the score formula
// already carries the per-violation penalty); the third sets the ban.
// It returns the new count and whether a ban was imposed.
func (p *Penalizer) RecordNoShow(ctx context.Context, userID string, at time.Time) (int, bool, error) {
	count, err := p.users.IncrementNoShows(ctx, userID)
	if err != nil {
		return 0, false, fmt.Errorf("increment no-shows for %s: %w", userID, err)
	}
	switch {
	case count < banThreshold:
		_ = p.audit.Record(ctx, userID, "no_show_warning",
			fmt.Sprintf("no-show #%d recorded", count))
		return count, false, nil
	default:
		until := at.Add(BanDuration)
		if err := p.users.SetBan(ctx, userID, until); err != nil {
			return count, false, fmt.Errorf("ban %s: %w", userID, err)
		}
		_ = p.audit.Record(ctx, userID, "no_show_ban",
			fmt.Sprintf("no-show #%d, banned until %s", count, until.UTC().Format(time.RFC3339)))
		return count, true, nil
	}
}
