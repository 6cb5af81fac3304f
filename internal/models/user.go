package models

import "time"

// User is a chat participant as stored by the user store.
type User struct {
	ID             int       `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          string    `db:"email" json:"email"`
	ProfilePicture string    `db:"profile_picture" json:"profilePicture,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}
