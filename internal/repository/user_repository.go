package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/parkiq/parkiq-server/internal/engine"
	"github.com/parkiq/parkiq-server/internal/model"
)

// UserRepo provides data access to the users table.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a new UserRepo bound to the provided database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, name, email, role, tier, no_shows, wait_history, grace_used_today, grace_used_week, banned, ban_ends, access_hash`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u		model.User
		banEnds sql.NullTime
		hash	sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Tier, &u.NoShows, &u.WaitHistory,
		&u.GraceUsedToday, &u.GraceUsedWeek, &u.Banned, &banEnds, &hash); err != nil {
		return nil, err
	}
	if banEnds.Valid {
		t := banEnds.Time
		u.BanEnds = &t
	}
	u.AccessHash = hash.String
	return &u, nil
}

// GetByID loads a single requester or engine.ErrNotFound.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", engine.ErrNotFound, id)
	}
	return u, err
}

// List returns every requester.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Create inserts a new requester (guest passes, admin-added users).
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, role, tier, access_hash) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Role, u.Tier, u.AccessHash)
	return err
}

// IncrementNoShows bumps the violation counter and returns the new count.
func (r *UserRepo) IncrementNoShows(ctx context.Context, id string) (int, error) {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET no_shows = no_shows + 1 WHERE id = ?`, id); err != nil {
		return 0, err
	}
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT no_shows FROM users WHERE id = ?`, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: user %s", engine.ErrNotFound, id)
	}
	return count, err
}

// SetBan suspends booking privileges until the given time.
func (r *UserRepo) SetBan(ctx context.Context, id string, until time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET banned = TRUE, ban_ends = ? WHERE id = ?`, until.UTC(), id)
	return err
}

// LiftBan clears an elapsed ban without touching the violation counter.
func (r *UserRepo) LiftBan(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET banned = FALSE, ban_ends = NULL WHERE id = ?`, id)
	return err
}

// ClearPenalty zeroes the violation counter and lifts any ban.  Reports
// engine.ErrNotFound when the user does not exist.  The existence check is
// separate because RowsAffected is zero for an already-clean user.
func (r *UserRepo) ClearPenalty(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: user %s", engine.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE users SET no_shows = 0, banned = FALSE, ban_ends = NULL WHERE id = ?`, id)
	return err
}

// ConsumeExtension increments both grace-extension usage counters.
func (r *UserRepo) ConsumeExtension(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET grace_used_today = grace_used_today + 1, grace_used_week = grace_used_week + 1 WHERE id = ?`, id)
	return err
}

// ResetDailyGrace clears every requester's daily extension usage.
func (r *UserRepo) ResetDailyGrace(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET grace_used_today = 0`)
	return err
}

// ResetWeeklyGrace clears every requester's weekly extension usage.
func (r *UserRepo) ResetWeeklyGrace(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET grace_used_week = 0`)
	return err
}
