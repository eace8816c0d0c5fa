package model

import "time"

// SpotState enumerates the lifecycle states of a parking spot.	 The set is
// closed: any state string read from storage that is not one of these values
// is treated as corrupt data, and any transition not listed in the
// transitions table below is rejected before a single row is touched.
type SpotState string

const (
	SpotAvailable	 SpotState = "available"	 // free for direct reservation or promotion
	SpotReserved	 SpotState = "reserved"		 // held under a grace deadline, awaiting check-in
	SpotPendingOffer SpotState = "pending_offer" // offered to a waitlisted requester, awaiting accept/decline
	SpotOccupied	 SpotState = "occupied"		 // holder has checked in
	SpotTempAway	 SpotState = "temp_away"	 // holder exited midday; spot retained until return or timeout
	SpotCompleted	 SpotState = "completed"	 // transient checkout state, resolves immediately to available
)

// transitions is the static table of legal spot state changes.	 Entering
// reserved or pending_offer always carries a fresh deadline; leaving either
// cancels the in-process timer for the spot.
var transitions = map[SpotState][]SpotState{
	SpotAvailable:	  {SpotReserved, SpotPendingOffer},
	SpotReserved:	  {SpotOccupied, SpotAvailable},
	SpotPendingOffer: {SpotReserved, SpotAvailable},
	SpotOccupied:	  {SpotCompleted, SpotTempAway},
	SpotTempAway:	  {SpotOccupied, SpotAvailable},
	SpotCompleted:	  {SpotAvailable},
}

// CanTransition reports whether moving a spot from one state to another is
// legal according to the static transition table.
func CanTransition(from, to SpotState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Spot describes one allocatable parking spot as stored in the `spots`
// table.  Classification flags are fixed at capacity-configuration time;
// the remaining fields cycle with the allocation lifecycle.
//
// Fields:
//	ID			   – primary key, e.g. "S7".
//	Num			   – 1-based sequence number used for lowest-number-first assignment.
//	State		   – current SpotState.
//	UserID		   – holder of the current hold/occupation (nil when available).
//	ReservedAt	   – when the current hold began (nil when available).
//	ExpiresAt	   – absolute deadline of the active grace/offer timer; non-nil
//					 exactly when State is reserved or pending_offer.
//	IsCarpool	   – priority lane preferred for shared-ride groups.
//	IsVIP		   – reserved-tier spot, excluded from waitlist promotion.
//	IsEV		   – reserved for electric vehicles (advisory classification).
//	TempReturnTime – advisory return time string, meaningful only in temp_away.
type Spot struct {
	ID             string     `json:"id"`
	Num            int        `json:"num"`
	State          SpotState  `json:"state"`
	UserID         *string    `json:"user_id,omitempty"`
	ReservedAt     *time.Time `json:"reserved_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsCarpool      bool       `json:"is_carpool"`
	IsVIP          bool       `json:"is_vip"`
	IsEV           bool       `json:"is_ev"`
	TempReturnTime *string    `json:"temp_return_time,omitempty"`
}

// Held reports whether the spot currently belongs to a requester.	The
// engine's core invariant: UserID != nil exactly when Held() is true.
func (s *Spot) Held() bool {
	switch s.State {
	case SpotReserved, SpotPendingOffer, SpotOccupied, SpotTempAway:
		return true
	}
	return false
}
