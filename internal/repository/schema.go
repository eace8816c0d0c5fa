package repository

import (
	"context"
	"database/sql"
)

// schema holds the CREATE TABLE statements for the engine's tables.  The
// service applies them on boot so a fresh database is usable without an
// external migration step.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id				 VARCHAR(64) PRIMARY KEY,
		name			 VARCHAR(255) NOT NULL,
		email			 VARCHAR(255) NOT NULL DEFAULT '',
		role			 VARCHAR(16)  NOT NULL DEFAULT 'user',
		tier			 INT		  NOT NULL DEFAULT 3,
		no_shows		 INT		  NOT NULL DEFAULT 0,
		wait_history	 INT		  NOT NULL DEFAULT 0,
		grace_used_today INT		  NOT NULL DEFAULT 0,
		grace_used_week	 INT		  NOT NULL DEFAULT 0,
		banned			 BOOLEAN	  NOT NULL DEFAULT FALSE,
		ban_ends		 DATETIME	  NULL,
		access_hash		 VARCHAR(255) NULL
	)`,
	`CREATE TABLE IF NOT EXISTS spots (
		id				 VARCHAR(16) PRIMARY KEY,
		num				 INT		 NOT NULL,
		state			 VARCHAR(16) NOT NULL DEFAULT 'available',
		user_id			 VARCHAR(64) NULL,
		reserved_at		 DATETIME	 NULL,
		expires_at		 DATETIME	 NULL,
		is_carpool		 BOOLEAN	 NOT NULL DEFAULT FALSE,
		is_vip			 BOOLEAN	 NOT NULL DEFAULT FALSE,
		is_ev			 BOOLEAN	 NOT NULL DEFAULT FALSE,
		temp_return_time VARCHAR(8)	 NULL,
		INDEX idx_spots_state (state),
		INDEX idx_spots_holder (user_id, state)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id				 VARCHAR(36) PRIMARY KEY,
		user_id			 VARCHAR(64) NOT NULL,
		date			 VARCHAR(10) NOT NULL,
		time			 VARCHAR(5)	 NOT NULL DEFAULT '09:00',
		spot_id			 VARCHAR(16) NULL,
		status			 VARCHAR(16) NOT NULL,
		carpool_with	 TEXT		 NOT NULL,
		carpool_verified BOOLEAN	 NOT NULL DEFAULT FALSE,
		score			 DOUBLE		 NOT NULL DEFAULT 0,
		no_show			 BOOLEAN	 NOT NULL DEFAULT FALSE,
		force_booked	 BOOLEAN	 NOT NULL DEFAULT FALSE,
		created_at		 DATETIME	 NOT NULL,
		active_date		 VARCHAR(10) GENERATED ALWAYS AS (IF(status = 'cancelled', NULL, date)) STORED,
		INDEX idx_bookings_waitlist (status, score, created_at),
		INDEX idx_bookings_user_date (user_id, date),
		UNIQUE KEY uq_bookings_active (user_id, active_date)
	)`,
	"CREATE TABLE IF NOT EXISTS settings (" +
		"`key` VARCHAR(64) PRIMARY KEY, `value` VARCHAR(255) NOT NULL)",
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id		  BIGINT AUTO_INCREMENT PRIMARY KEY,
		timestamp DATETIME	   NOT NULL,
		user_id	  VARCHAR(64)  NOT NULL,
		action	  VARCHAR(64)  NOT NULL,
		details	  VARCHAR(512) NOT NULL DEFAULT ''
	)`,
}

// EnsureSchema creates any missing tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
