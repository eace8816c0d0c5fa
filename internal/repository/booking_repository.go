package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/parkiq/parkiq-server/internal/engine"
	"github.com/parkiq/parkiq-server/internal/model"
)

// BookingRepo provides data access to the bookings table.	The waitlist is
// not a table of its own: it is the set of bookings in waitlist status,
// re-sorted by (score DESC, created_at ASC) on every promotion so the
// ranking can never go stale.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, date, time, spot_id, status, carpool_with, carpool_verified, score, no_show, force_booked, created_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var (
		b		model.Booking
		spotID	sql.NullString
		status	string
		riders	string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Date, &b.Time, &spotID, &status, &riders, &b.CarpoolVerified, &b.Score, &b.NoShow, &b.ForceBooked, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	if spotID.Valid {
		b.SpotID = &spotID.String
	}
	if riders != "" {
		if err := json.Unmarshal([]byte(riders), &b.CarpoolWith); err != nil {
			return nil, fmt.Errorf("decode carpool list for booking %s: %w", b.ID, err)
		}
	}
	return &b, nil
}

// Create inserts a new booking.  The co-rider list is stored as a JSON
// array string.  The uq_bookings_active key keeps at most one
// non-cancelled booking per (user, date) even when two requests race
// past the coordinator's existence check; the duplicate-key error is
// surfaced as a validation failure so the caller gets the same answer
// either way.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	riders := b.CarpoolWith
	if riders == nil {
		riders = []string{}
	}
	encoded, err := json.Marshal(riders)
	if err != nil {
		return err
	}
	var spotID any
	if b.SpotID != nil {
		spotID = *b.SpotID
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Date, b.Time, spotID, string(b.Status), string(encoded),
		b.CarpoolVerified, b.Score, b.NoShow, b.ForceBooked, b.CreatedAt.UTC())
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return fmt.Errorf("%w: active booking already exists for %s", engine.ErrValidation, b.Date)
	}
	return err
}

// List returns every booking, newest first.
func (r *BookingRepo) List(ctx context.Context) ([]model.Booking, error) {
	return r.query(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC`)
}

// ActiveForUserAndDate returns the user's non-cancelled booking for the
// date, or nil when none exists.  At most one such booking can exist.
func (r *BookingRepo) ActiveForUserAndDate(ctx context.Context, userID, date string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? AND date = ? AND status != ? LIMIT 1`,
		userID, date, string(model.BookingCancelled))
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// SetStatusForSpot flips the booking bound to (spotID, userID) out of the
// expected status.	 Zero matched rows is not an error: the booking update
// trails the spot transition and the row may already have moved on.
func (r *BookingRepo) SetStatusForSpot(ctx context.Context, spotID, userID string, from, to model.BookingStatus, noShow bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, no_show = IF(?, TRUE, no_show) WHERE spot_id = ? AND user_id = ? AND status = ?`,
		string(to), noShow, spotID, userID, string(from))
	return err
}

// TopOfWaitlist returns the highest-ranked pending entry, or nil when the
// waitlist is empty.  Higher score wins; earlier request wins ties.
func (r *BookingRepo) TopOfWaitlist(ctx context.Context) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE status = ? ORDER BY score DESC, created_at ASC LIMIT 1`,
		string(model.BookingWaitlist))
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// MarkOffered flips a waitlist booking to offered and binds it to the spot.
// The status guard makes the flip conditional: if the entry already left
// the waitlist (offered another spot in the same instant), this reports
// engine.ErrConflict and the caller moves to the next candidate.
func (r *BookingRepo) MarkOffered(ctx context.Context, bookingID, spotID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, spot_id = ? WHERE id = ? AND status = ?`,
		string(model.BookingOffered), spotID, bookingID, string(model.BookingWaitlist))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: booking %s left the waitlist", engine.ErrConflict, bookingID)
	}
	return nil
}

// Rank returns the 1-based waitlist position of an entry with the given
// score snapshot and creation time.
func (r *BookingRepo) Rank(ctx context.Context, score float64, createdAt time.Time) (int, error) {
	var ahead int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE status = ? AND (score > ? OR (score = ? AND created_at < ?))`,
		string(model.BookingWaitlist), score, score, createdAt.UTC()).Scan(&ahead)
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

// CancelOpen cancels every booking still in a non-terminal pre-occupation
// status.	Used by the daily reset.
func (r *BookingRepo) CancelOpen(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE status IN (?, ?, ?)`,
		string(model.BookingCancelled),
		string(model.BookingReserved), string(model.BookingWaitlist), string(model.BookingOffered))
	return err
}

func (r *BookingRepo) query(ctx context.Context, q string, args ...any) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}
