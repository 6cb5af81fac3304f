package models

import "time"

// Reaction is a single emoji reaction left on a message. A user holds at
// most one reaction per message; re-reacting replaces the previous emoji.
type Reaction struct {
	UserID int    `db:"user_id" json:"userId"`
	Emoji  string `db:"emoji" json:"emoji"`
}

// Message is a chat message, either direct (ReceiverID set) or group
// (GroupID set). Exactly one of the two is non-nil.
type Message struct {
	ID         int        `db:"id" json:"id"`
	SenderID   int        `db:"sender_id" json:"senderId"`
	ReceiverID *int       `db:"receiver_id" json:"receiverId,omitempty"`
	GroupID    *int       `db:"group_id" json:"groupId,omitempty"`
	Text       string     `db:"text" json:"text,omitempty"`
	Image      string     `db:"image" json:"image,omitempty"`
	Reactions  []Reaction `json:"reactions"`
	IsEdited   bool       `db:"is_edited" json:"isEdited"`
	EditedAt   *time.Time `db:"edited_at" json:"editedAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// IsDirect reports whether the message belongs to a one-to-one thread.
func (m Message) IsDirect() bool {
	return m.ReceiverID != nil
}

// Counterpart returns the other party of a direct message from the given
// user's point of view. Returns 0 for group messages.
func (m Message) Counterpart(userID int) int {
	if m.ReceiverID == nil {
		return 0
	}
	if m.SenderID == userID {
		return *m.ReceiverID
	}
	return m.SenderID
}
