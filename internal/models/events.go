package models

import "encoding/json"

// Socket event names. These are part of the wire contract and must not
// be renamed.
const (
	EventOnlineUsers     = "getOnlineUsers"
	EventTyping          = "typing"
	EventStopTyping      = "stopTyping"
	EventUserTyping      = "userTyping"
	EventUserStopTyping  = "userStopTyping"
	EventNewMessage      = "newMessage"
	EventNewGroupMessage = "newGroupMessage"
	EventMessageReaction = "messageReaction"
	EventMessageEdited   = "messageEdited"
	EventMessageDeleted  = "messageDeleted"
)

// SocketEvent is the envelope carried over the websocket in both
// directions.
type SocketEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewSocketEvent marshals data into an envelope for the given event.
func NewSocketEvent(event string, data any) (SocketEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return SocketEvent{}, err
	}
	return SocketEvent{Event: event, Data: raw}, nil
}

// TypingPayload is sent by a client when it starts or stops typing to a
// direct peer.
type TypingPayload struct {
	ReceiverID int  `json:"receiverId"`
	IsTyping   bool `json:"isTyping"`
}

// StopTypingPayload is sent by a client to clear its typing indicator.
type StopTypingPayload struct {
	ReceiverID int `json:"receiverId"`
}

// UserTypingPayload is relayed to the receiving user's sessions.
type UserTypingPayload struct {
	UserID   int  `json:"userId"`
	IsTyping bool `json:"isTyping"`
}

// UserStopTypingPayload is relayed to the receiving user's sessions.
type UserStopTypingPayload struct {
	UserID int `json:"userId"`
}

// MessageDeletedPayload identifies a message removed for everyone.
type MessageDeletedPayload struct {
	MessageID int `json:"messageId"`
}
