package model

import "time"

// User represents a requester as stored in the `users` table.	Tier,
// violation count and wait history feed the priority score; the grace
// counters enforce the extension quotas; the ban fields gate new bookings.
//
// Fields:
//	ID			   – short requester id, e.g. "u4" or a guest id.
//	Name		   – display name.
//	Email		   – contact address.
//	Role		   – "user", "admin" or "guest"; admin gates privileged routes.
//	Tier		   – seniority tier 1–5.
//	NoShows		   – violation count, incremented on grace expiry.
//	WaitHistory	   – historical-wait credit applied to the score.
//	GraceUsedToday – extensions used today.
//	GraceUsedWeek  – extensions used this week.
//	Banned		   – whether booking privileges are suspended.
//	BanEnds		   – when the ban lapses; cleared lazily on the next attempt.
//	AccessHash	   – bcrypt hash of a guest access code (empty for staff users).
type User struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	Tier           int        `json:"tier"`
	NoShows        int        `json:"no_shows"`
	WaitHistory    int        `json:"wait_history"`
	GraceUsedToday int        `json:"grace_used_today"`
	GraceUsedWeek  int        `json:"grace_used_week"`
	Banned         bool       `json:"banned"`
	BanEnds        *time.Time `json:"ban_ends,omitempty"`
	AccessHash     string     `json:"-"`
}

// BanActive reports whether the user is still inside an active ban window.
// A banned flag whose BanEnds has elapsed counts as inactive; callers are
// expected to clear it lazily on the next booking attempt.
func (u *User) BanActive(now time.Time) bool {
	return u.Banned && u.BanEnds != nil && now.Before(*u.BanEnds)
}
