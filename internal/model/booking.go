package model

import "time"

// BookingStatus enumerates the lifecycle states of a booking.	Terminal
// states (completed, cancelled) are never left once entered.
type BookingStatus string

const (
	BookingWaitlist	 BookingStatus = "waitlist"	 // queued, no spot assigned yet
	BookingOffered	 BookingStatus = "offered"	 // promoted; holder must accept within the offer window
	BookingReserved	 BookingStatus = "reserved"	 // spot held under a grace deadline
	BookingFulfilled BookingStatus = "fulfilled" // holder checked in
	BookingCompleted BookingStatus = "completed" // checked out normally
	BookingCancelled BookingStatus = "cancelled" // cancelled, declined, expired or no-show
)

// Terminal reports whether the status ends the booking's lifecycle.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// Booking records a requester's parking request for a date.  At most one
// non-cancelled booking may exist per (requester, date).  Score is a
// snapshot computed at creation time and is never re-derived afterwards.
//
// Fields:
//	ID			 – uuid primary key.
//	UserID		 – requester who made the booking.
//	Date		 – target date, "YYYY-MM-DD".
//	Time		 – requested arrival time, "HH:MM".
//	SpotID		 – assigned spot, nil while waitlisted.
//	Status		 – current BookingStatus.
//	CarpoolWith	 – co-rider requester ids (JSON array in storage).
//	CarpoolVerified – whether the co-rider list was verified at creation.
//	Score		 – priority score snapshot at creation time.
//	NoShow		 – set when the booking was cancelled by grace expiry.
//	ForceBooked	 – set when an admin queue-jumped this booking.
//	CreatedAt	 – creation timestamp; tie-breaker for waitlist ordering.
type Booking struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Date            string        `json:"date"`
	Time            string        `json:"time"`
	SpotID          *string       `json:"spot_id,omitempty"`
	Status          BookingStatus `json:"status"`
	CarpoolWith     []string      `json:"carpool_with"`
	CarpoolVerified bool          `json:"carpool_verified"`
	Score           float64       `json:"score"`
	NoShow          bool          `json:"no_show"`
	ForceBooked     bool          `json:"force_booked"`
	CreatedAt       time.Time     `json:"created_at"`
}
