package models

import "time"

// User is the local identity record, created lazily on first sighting from
// the roster source. Matched by idnumber first, then username, to tolerate
// username drift.
type User struct {
	ID        string    `db:"id" json:"id"`
	IDNumber  string    `db:"idnumber" json:"idnumber"`
	Username  string    `db:"username" json:"username"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
	City      string    `db:"city" json:"city"`
	Country   string    `db:"country" json:"country"`
	Auth      string    `db:"auth" json:"auth"`
	Confirmed bool      `db:"confirmed" json:"confirmed"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Meta Metadata `db:"-" json:"meta,omitempty"`
}
