package model

import "time"

// AuditEntry is one row of the `audit_logs` table.	 Every privileged admin
// action and every state-mutating engine operation appends an entry.
//
// Fields:
//	ID		  – auto-increment primary key.
//	Timestamp – when the action happened.
//	UserID	  – acting requester (or admin) id.
//	UserName  – joined display name, populated on read only.
//	Action	  – short machine tag, e.g. "reserve_spot", "admin_force_book".
//	Details	  – free-form human description.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}
