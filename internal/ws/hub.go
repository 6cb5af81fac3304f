package ws

import (
	"encoding/json"
	"log"

	"presence-chat/internal/models"
	"presence-chat/internal/observability"
)

// Hub routes presence, typing, and message events between the registry
// and connected sessions. Delivery is at-most-once and best-effort: a
// recipient without a live session is skipped silently, and no push is
// ever retried or acknowledged.
type Hub struct {
	registry *Registry
}

// NewHub creates a hub with an empty registry.
func NewHub() *Hub {
	return &Hub{registry: NewRegistry()}
}

// Registry exposes the connection registry for presence queries.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Attach registers the session and re-broadcasts presence to every
// connected session.
func (h *Hub) Attach(s *Session) error {
	if _, err := h.registry.Register(s); err != nil {
		return err
	}
	h.BroadcastPresence()
	return nil
}

// Detach removes the session and re-broadcasts presence. Detaching an
// unknown session is a no-op.
func (h *Hub) Detach(sessionID string) {
	userID, _ := h.registry.Unregister(sessionID)
	if userID == 0 {
		return
	}
	h.BroadcastPresence()
}

// BroadcastPresence pushes the authoritative online user set to every
// connected session. Consumers replace their known set wholesale, so no
// diffing is done here.
func (h *Hub) BroadcastPresence() {
	ev, err := models.NewSocketEvent(models.EventOnlineUsers, h.registry.OnlineUserIDs())
	if err != nil {
		return
	}
	for _, s := range h.registry.Sessions() {
		h.push(s, ev)
	}
}

// RelayTyping forwards a typing indicator to the receiver's sessions.
// Typing state is never persisted.
func (h *Hub) RelayTyping(actorID, receiverID int, isTyping bool) {
	ev, err := models.NewSocketEvent(models.EventUserTyping, models.UserTypingPayload{UserID: actorID, IsTyping: isTyping})
	if err != nil {
		return
	}
	h.pushToUser(receiverID, ev)
}

// RelayStopTyping clears the actor's typing indicator on the receiver's
// sessions.
func (h *Hub) RelayStopTyping(actorID, receiverID int) {
	ev, err := models.NewSocketEvent(models.EventUserStopTyping, models.UserStopTypingPayload{UserID: actorID})
	if err != nil {
		return
	}
	h.pushToUser(receiverID, ev)
}

// PushDirectMessage delivers a committed direct message to the
// receiver's sessions only. The sender's sessions are never targets;
// the sender relies on its own request's response.
func (h *Hub) PushDirectMessage(msg models.Message) {
	if msg.ReceiverID == nil {
		return
	}
	ev, err := models.NewSocketEvent(models.EventNewMessage, msg)
	if err != nil {
		return
	}
	h.pushToUser(*msg.ReceiverID, ev)
}

// PushGroupMessage delivers a committed group message to every member
// except the sender. Members with no live session are skipped.
func (h *Hub) PushGroupMessage(msg models.Message, memberIDs []int) {
	ev, err := models.NewSocketEvent(models.EventNewGroupMessage, msg)
	if err != nil {
		return
	}
	for _, id := range memberIDs {
		if id == msg.SenderID {
			continue
		}
		h.pushToUser(id, ev)
	}
}

// PushReaction delivers the updated message to both parties of a
// one-to-one thread so the acting client and the counterpart converge.
func (h *Hub) PushReaction(msg models.Message) {
	if msg.ReceiverID == nil {
		return
	}
	ev, err := models.NewSocketEvent(models.EventMessageReaction, msg)
	if err != nil {
		return
	}
	h.pushToUser(msg.SenderID, ev)
	h.pushToUser(*msg.ReceiverID, ev)
}

// PushEdit delivers the edited message to the receiver. Only the sender
// may edit, and it already holds the update from its own response.
func (h *Hub) PushEdit(msg models.Message) {
	if msg.ReceiverID == nil {
		return
	}
	ev, err := models.NewSocketEvent(models.EventMessageEdited, msg)
	if err != nil {
		return
	}
	h.pushToUser(*msg.ReceiverID, ev)
}

// PushDelete notifies the receiver that a message was removed.
func (h *Hub) PushDelete(receiverID, messageID int) {
	ev, err := models.NewSocketEvent(models.EventMessageDeleted, models.MessageDeletedPayload{MessageID: messageID})
	if err != nil {
		return
	}
	h.pushToUser(receiverID, ev)
}

// handleInbound dispatches a client-sent event. Malformed payloads are
// dropped; the push channel carries no acknowledgements.
func (h *Hub) handleInbound(s *Session, ev models.SocketEvent) {
	switch ev.Event {
	case models.EventTyping:
		var p models.TypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.ReceiverID == 0 {
			return
		}
		h.RelayTyping(s.UserID, p.ReceiverID, p.IsTyping)
	case models.EventStopTyping:
		var p models.StopTypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.ReceiverID == 0 {
			return
		}
		h.RelayStopTyping(s.UserID, p.ReceiverID)
	default:
		log.Printf("unknown inbound event %q from session %s", ev.Event, s.ID)
	}
}

func (h *Hub) pushToUser(userID int, ev models.SocketEvent) {
	for _, s := range h.registry.SessionsFor(userID) {
		h.push(s, ev)
	}
}

func (h *Hub) push(s *Session, ev models.SocketEvent) {
	if s.enqueue(ev) {
		observability.IncFanout(ev.Event)
		return
	}
	observability.IncFanoutDropped(ev.Event)
	log.Printf("session %s buffer full, dropping %s", s.ID, ev.Event)
}
