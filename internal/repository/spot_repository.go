// Package repository provides MySQL-backed implementations of the engine's
// store interfaces.  All queries use UTC timestamps; all state transitions
// are single conditional UPDATEs guarded by the expected prior state, and a
// zero-row match surfaces as engine.ErrConflict.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parkiq/parkiq-server/internal/engine"
	"github.com/parkiq/parkiq-server/internal/model"
)

// SpotRepo provides data access to the spots table.
type SpotRepo struct {
	db *sql.DB
}

// NewSpotRepo returns a new SpotRepo bound to the provided database.
func NewSpotRepo(db *sql.DB) *SpotRepo { return &SpotRepo{db: db} }

const spotColumns = `id, num, state, user_id, reserved_at, expires_at, is_carpool, is_vip, is_ev, temp_return_time`

func scanSpot(row interface{ Scan(...any) error }) (*model.Spot, error) {
	var (
		s		model.Spot
		state	string
		userID	sql.NullString
		resAt	sql.NullTime
		expAt	sql.NullTime
		retTime sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Num, &state, &userID, &resAt, &expAt, &s.IsCarpool, &s.IsVIP, &s.IsEV, &retTime); err != nil {
		return nil, err
	}
	s.State = model.SpotState(state)
	if userID.Valid {
		s.UserID = &userID.String
	}
	if resAt.Valid {
		t := resAt.Time
		s.ReservedAt = &t
	}
	if expAt.Valid {
		t := expAt.Time
		s.ExpiresAt = &t
	}
	if retTime.Valid {
		s.TempReturnTime = &retTime.String
	}
	return &s, nil
}

// GetByID loads a single spot or engine.ErrNotFound.
func (r *SpotRepo) GetByID(ctx context.Context, id string) (*model.Spot, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+spotColumns+` FROM spots WHERE id = ?`, id)
	s, err := scanSpot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: spot %s", engine.ErrNotFound, id)
	}
	return s, err
}

// List returns every spot ordered by number.
func (r *SpotRepo) List(ctx context.Context) ([]model.Spot, error) {
	return r.query(ctx, `SELECT `+spotColumns+` FROM spots ORDER BY num ASC`)
}

// ListAvailable returns available spots ordered by number.
func (r *SpotRepo) ListAvailable(ctx context.Context) ([]model.Spot, error) {
	return r.query(ctx, `SELECT `+spotColumns+` FROM spots WHERE state = ? ORDER BY num ASC`, string(model.SpotAvailable))
}

// FindByHolder returns the spot held by userID in one of the given states.
func (r *SpotRepo) FindByHolder(ctx context.Context, userID string, states ...model.SpotState) (*model.Spot, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: no states given", engine.ErrNotFound)
	}
	q := `SELECT ` + spotColumns + ` FROM spots WHERE user_id = ? AND state IN (?` + strings.Repeat(",?", len(states)-1) + `) LIMIT 1`
	args := make([]any, 0, len(states)+1)
	args = append(args, userID)
	for _, st := range states {
		args = append(args, string(st))
	}
	row := r.db.QueryRowContext(ctx, q, args...)
	s, err := scanSpot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no spot held by %s", engine.ErrNotFound, userID)
	}
	return s, err
}

// PendingDeadlines returns spots whose persisted deadline drives a timer:
// reserved or pending_offer with a non-null expires_at.
func (r *SpotRepo) PendingDeadlines(ctx context.Context) ([]model.Spot, error) {
	return r.query(ctx,
		`SELECT `+spotColumns+` FROM spots WHERE state IN (?, ?) AND expires_at IS NOT NULL ORDER BY num ASC`,
		string(model.SpotReserved), string(model.SpotPendingOffer))
}

func (r *SpotRepo) query(ctx context.Context, q string, args ...any) ([]model.Spot, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var spots []model.Spot
	for rows.Next() {
		s, err := scanSpot(rows)
		if err != nil {
			return nil, err
		}
		spots = append(spots, *s)
	}
	return spots, rows.Err()
}

// guard rejects transitions the static table forbids, before any SQL runs.
func guard(from, to model.SpotState) error {
	if !model.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", engine.ErrState, from, to)
	}
	return nil
}

// exec runs a conditional UPDATE and converts a zero-row match into
// engine.ErrConflict.
func (r *SpotRepo) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: spot state changed concurrently", engine.ErrConflict)
	}
	return nil
}

// Reserve performs available -> reserved, persisting the grace deadline in
// the same statement that claims the spot.
func (r *SpotRepo) Reserve(ctx context.Context, id, userID string, reservedAt, expiresAt time.Time) error {
	if err := guard(model.SpotAvailable, model.SpotReserved); err != nil {
		return err
	}
	return r.exec(ctx,
		`UPDATE spots SET state = ?, user_id = ?, reserved_at = ?, expires_at = ? WHERE id = ? AND state = ?`,
		string(model.SpotReserved), userID, reservedAt.UTC(), expiresAt.UTC(), id, string(model.SpotAvailable))
}

// Offer performs available -> pending_offer for a waitlist promotion.
func (r *SpotRepo) Offer(ctx context.Context, id, userID string, reservedAt, expiresAt time.Time) error {
	if err := guard(model.SpotAvailable, model.SpotPendingOffer); err != nil {
		return err
	}
	return r.exec(ctx,
		`UPDATE spots SET state = ?, user_id = ?, reserved_at = ?, expires_at = ? WHERE id = ? AND state = ? AND is_vip = 0`,
		string(model.SpotPendingOffer), userID, reservedAt.UTC(), expiresAt.UTC(), id, string(model.SpotAvailable))
}

// AcceptOffer performs pending_offer -> reserved for the offer holder,
// replacing the offer deadline with the fresh grace deadline.
func (r *SpotRepo) AcceptOffer(ctx context.Context, id, userID string, expiresAt time.Time) error {
	if err := guard(model.SpotPendingOffer, model.SpotReserved); err != nil {
		return err
	}
	return r.exec(ctx,
		`UPDATE spots SET state = ?, expires_at = ? WHERE id = ? AND user_id = ? AND state = ?`,
		string(model.SpotReserved), expiresAt.UTC(), id, userID, string(model.SpotPendingOffer))
}

// CheckIn performs reserved -> occupied for the holder.  The persisted
// deadline is cleared here, with the durable state write that leaves
// reserved, never earlier.
func (r *SpotRepo) CheckIn(ctx context.Context, id, userID string) error {
	if err := guard(model.SpotReserved, model.SpotOccupied); err != nil {
		return err
	}
	return r.exec(ctx,
		`UPDATE spots SET state = ?, expires_at = NULL WHERE id = ? AND user_id = ? AND state = ?`,
		string(model.SpotOccupied), id, userID, string(model.SpotReserved))
}

// Checkout performs occupied -> available.	 The completed state is
// transient: it exists in the transition table but resolves inside this one
// statement, so it is never observable in storage.
func (r *SpotRepo) Checkout(ctx context.Context, id, userID string) error {
	if err := guard(model.SpotOccupied, model.SpotCompleted); err != nil {
		return err
	}
	if err := guard(model.SpotCompleted, model.SpotAvailable); err != nil {
		return err
	}
	return r.exec(ctx,
		`UPDATE spots SET state = ?, user_id = NULL, reserved_at = NULL, expires_at = NULL, temp_return_time = NULL WHERE id = ? AND user_id = ? AND state = ?`,
		string(model.SpotAvailable), id, userID, string(model.SpotOccupied))
}

// Release returns a spot to available from the given state.  userID ""
// releases regardless of holder (admin/reset paths); otherwise the holder
// guard participates in the conditional update.
func (r *SpotRepo) Release(ctx context.Context, id string, from model.SpotState, userID string) error {
	if err := guard(from, model.SpotAvailable); err != nil {
		return err
	}
	q := `UPDATE spots SET state = ?, user_id = NULL, reserved_at = NULL, expires_at = NULL, temp_return_time = NULL WHERE id = ? AND state = ?`
	args := []any{string(model.SpotAvailable), id, string(from)}
	if userID != "" {
		q += ` AND user_id = ?`
		args = append(args, userID)
	}
	return r.exec(ctx, q, args...)
}

// BeginTempAway performs occupied -> temp_away, recording the advisory
// return time.	 No persisted deadline: the away timer is in-process only.
func (r *SpotRepo) BeginTempAway(ctx context.Context, id, userID, returnTime string) error {
	if err := guard(model.SpotOccupied, model.SpotTempAway); err != nil {
		return err
	}
	return r.exec(ctx,
		`UPDATE spots SET state = ?, temp_return_time = ? WHERE id = ? AND user_id = ? AND state = ?`,
		string(model.SpotTempAway), returnTime, id, userID, string(model.SpotOccupied))
}

// EndTempAway performs temp_away -> occupied.
func (r *SpotRepo) EndTempAway(ctx context.Context, id, userID string) error {
	if err := guard(model.SpotTempAway, model.SpotOccupied); err != nil {
		return err
	}
	return r.exec(ctx,
		`UPDATE spots SET state = ?, temp_return_time = NULL WHERE id = ? AND user_id = ? AND state = ?`,
		string(model.SpotOccupied), id, userID, string(model.SpotTempAway))
}

// ExtendDeadline replaces the grace deadline of a reserved spot without
// leaving the state.
func (r *SpotRepo) ExtendDeadline(ctx context.Context, id, userID string, expiresAt time.Time) error {
	return r.exec(ctx,
		`UPDATE spots SET expires_at = ? WHERE id = ? AND user_id = ? AND state = ?`,
		expiresAt.UTC(), id, userID, string(model.SpotReserved))
}

// ReleaseAll force-returns every spot to available.  Used only by the daily
// reset; it intentionally bypasses per-spot guards.
func (r *SpotRepo) ReleaseAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE spots SET state = ?, user_id = NULL, reserved_at = NULL, expires_at = NULL, temp_return_time = NULL`,
		string(model.SpotAvailable))
	return err
}

// Count returns the number of configured spots.
func (r *SpotRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spots`).Scan(&n)
	return n, err
}

// Resize grows or shrinks the registry to capacity spots, then reassigns
// classification flags: carpool lanes occupy the lowest numbers, EV the
// next block, VIP the top of the range.
func (r *SpotRepo) Resize(ctx context.Context, capacity, carpool, ev, vip int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM spots WHERE num > ?`, capacity); err != nil {
		return err
	}
	var maxNum sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(num) FROM spots`).Scan(&maxNum); err != nil {
		return err
	}
	current := int(maxNum.Int64)
	for i := current + 1; i <= capacity; i++ {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO spots (id, num, state, is_carpool, is_vip, is_ev) VALUES (?, ?, ?, 0, 0, 0)`,
			fmt.Sprintf("S%d", i), i, string(model.SpotAvailable))
		if err != nil {
			return err
		}
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE spots SET is_carpool = 0, is_ev = 0, is_vip = 0`); err != nil {
		return err
	}
	if carpool > 0 {
		if _, err := r.db.ExecContext(ctx, `UPDATE spots SET is_carpool = 1 WHERE num <= ?`, carpool); err != nil {
			return err
		}
	}
	if ev > 0 {
		if _, err := r.db.ExecContext(ctx, `UPDATE spots SET is_ev = 1 WHERE num > ? AND num <= ?`, carpool, carpool+ev); err != nil {
			return err
		}
	}
	if vip > 0 {
		if _, err := r.db.ExecContext(ctx, `UPDATE spots SET is_vip = 1 WHERE num > ?`, capacity-vip); err != nil {
			return err
		}
	}
	return nil
}
