// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// Google Sign-In is the identity provider, so the primary external
// identifier is the Google subject ID (an opaque string). The internal
// integer ID is the database primary key and is what every other table
// references.
//
// SmartAccountAddress is computed exactly once, at first login, from the
// user's Google ID and the wallet master secret. Because the derivation is
// deterministic, the stored address must always equal the address the
// provisioner would recompute for the same identity. The Google ID itself is
// only ever used as derivation input — the signing key is never persisted.
type User struct {
	ID                  int64     `json:"id"                  db:"id"`
	GoogleID            string    `json:"-"                   db:"google_id"` // opaque subject ID, not exposed over the API
	Email               string    `json:"email"               db:"email"`
	Name                string    `json:"name"                db:"name"`    // display name (may be empty)
	Picture             string    `json:"picture"             db:"picture"` // profile picture URL
	SmartAccountAddress string    `json:"smartAccountAddress" db:"smart_account_address"`
	CreatedAt           time.Time `json:"createdAt"           db:"created_at"`
}
