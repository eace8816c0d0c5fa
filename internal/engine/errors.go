// Package engine implements the allocation and timer engine: the spot state
// machine, the priority waitlist, grace/offer deadlines with crash recovery,
// and the penalty escalation they drive.  Storage, transport and
// notification are collaborators reached through the interfaces in
// stores.go.
package engine

import "errors"

// Sentinel errors forming the engine's failure taxonomy.  Repositories and
// the coordinator wrap these with fmt.Errorf("%w: ...") so callers can both
// classify failures with errors.Is and read a human message.  None of them
// is retried internally; retry is the caller's responsibility.
var (
	// ErrValidation covers malformed or semantically invalid input:
	// missing date, duplicate booking for a date, a requested time in the
	// past, exhausted extension quota.
	ErrValidation = errors.New("validation failed")

	// ErrConflict signals a lost race: a conditional update guarded by the
	// expected prior state matched zero rows.
	ErrConflict = errors.New("conflict")

	// ErrState signals a transition request that the static transition
	// table forbids outright, regardless of who wins any race.
	ErrState = errors.New("invalid state transition")

	// ErrAuthorization covers privileged operations attempted by
	// non-privileged callers and booking attempts during an active ban.
	ErrAuthorization = errors.New("not authorized")

	// ErrNotFound means no spot or booking matched the caller.
	ErrNotFound = errors.New("not found")
)
