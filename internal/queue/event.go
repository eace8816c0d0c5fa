// Package queue defines message payloads exchanged over the message broker.
package queue

// StateChangedQueue is the durable queue carrying the coarse state-changed
// signal.	Observers do not receive diffs; they re-fetch the full snapshot.
const StateChangedQueue = "state.changed"

// StateChangedEvent is published after every successful engine mutation.
// Action is a short machine tag ("reserve", "grace_expired", ...); SpotID
// and UserID are optional context for log lines and may be empty for
// system-wide actions such as the daily reset.
type StateChangedEvent struct {
	Action	  string `json:"action"`
	SpotID	  string `json:"spot_id,omitempty"`
	UserID	  string `json:"user_id,omitempty"`
	ChangedAt string `json:"changed_at"`
}
