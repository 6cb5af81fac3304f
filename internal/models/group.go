package models

import "time"

// Group represents a chat group. Membership determines who receives
// group message fanout.
type Group struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedBy int       `db:"created_by" json:"createdBy"`
	MemberIDs []int     `json:"members"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
