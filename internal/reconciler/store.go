package reconciler

import (
	"context"
	"encoding/json"
	"sync"

	"presence-chat/internal/models"
)

// Loader issues the REST calls that load conversation state from the
// store. Pushed events are merged on top of what the loader returned.
type Loader interface {
	DirectMessages(ctx context.Context, peerID int) ([]models.Message, error)
	GroupMessages(ctx context.Context, groupID int) ([]models.Message, error)
}

// Notifier raises a local notification for a message that arrived while
// the surrounding UI is not visible.
type Notifier interface {
	Notify(msg models.Message)
}

// Conversation identifies a thread: exactly one of PeerID/GroupID is
// non-zero.
type Conversation struct {
	PeerID  int
	GroupID int
}

// DirectConversation keys the one-to-one thread with the given peer.
func DirectConversation(peerID int) Conversation {
	return Conversation{PeerID: peerID}
}

// GroupConversation keys the thread of the given group.
func GroupConversation(groupID int) Conversation {
	return Conversation{GroupID: groupID}
}

// Store is the client-local state for one client context: the open
// thread, the typing set, the online set, and per-conversation unread
// counters. There is exactly one Store per client, so an event is never
// applied twice even when the user runs several tabs elsewhere.
//
// The server does not filter self-echo: the store may receive events
// describing its own committed actions and must absorb them without
// duplicate effects, which every merge rule below guarantees.
type Store struct {
	mu       sync.Mutex
	selfID   int
	loader   Loader
	notifier Notifier

	connected bool
	visible   bool

	open   *Conversation
	thread []models.Message
	typing map[int]struct{}
	online map[int]struct{}
	unread map[Conversation]int
}

// New creates a disconnected store for the given local user. notifier
// may be nil.
func New(selfID int, loader Loader, notifier Notifier) *Store {
	return &Store{
		selfID:   selfID,
		loader:   loader,
		notifier: notifier,
		visible:  true,
		typing:   make(map[int]struct{}),
		online:   make(map[int]struct{}),
		unread:   make(map[Conversation]int),
	}
}

// Connect enters the subscribed state. Calling it again while already
// connected is a no-op, so a double subscribe never duplicates applied
// effects.
func (s *Store) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
}

// Disconnect leaves the subscribed state and resets transient indicator
// state. Events broadcast while disconnected are permanently missed;
// the caller must re-open its conversation to re-fetch from the store
// rather than assume gap-free delivery.
func (s *Store) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.typing = make(map[int]struct{})
	s.online = make(map[int]struct{})
}

// Open selects a conversation: its unread counter is cleared and the
// thread is replaced with a fresh load from the store, discarding any
// transient events buffered while it was closed.
func (s *Store) Open(ctx context.Context, conv Conversation) error {
	var (
		msgs []models.Message
		err  error
	)
	if conv.GroupID != 0 {
		msgs, err = s.loader.GroupMessages(ctx, conv.GroupID)
	} else {
		msgs, err = s.loader.DirectMessages(ctx, conv.PeerID)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = &conv
	s.thread = msgs
	delete(s.unread, conv)
	return nil
}

// CloseConversation deselects the open conversation.
func (s *Store) CloseConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = nil
	s.thread = nil
}

// SetVisible records whether the surrounding UI is visible; invisible
// clients get a notification for inbound messages.
func (s *Store) SetVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = visible
}

// Apply merges one pushed event into local state. Events received while
// disconnected are dropped.
func (s *Store) Apply(ev models.SocketEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return
	}

	switch ev.Event {
	case models.EventOnlineUsers:
		var ids []int
		if err := json.Unmarshal(ev.Data, &ids); err != nil {
			return
		}
		// Authoritative full replacement of the known online set.
		s.online = make(map[int]struct{}, len(ids))
		for _, id := range ids {
			s.online[id] = struct{}{}
		}

	case models.EventUserTyping:
		var p models.UserTypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		if p.IsTyping {
			s.typing[p.UserID] = struct{}{}
		} else {
			delete(s.typing, p.UserID)
		}

	case models.EventUserStopTyping:
		var p models.UserStopTypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		delete(s.typing, p.UserID)

	case models.EventNewMessage, models.EventNewGroupMessage:
		var msg models.Message
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return
		}
		s.applyNewMessage(msg)

	case models.EventMessageReaction, models.EventMessageEdited:
		var msg models.Message
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return
		}
		s.applyMutation(msg)

	case models.EventMessageDeleted:
		var p models.MessageDeletedPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		// Deletion is not a new unread event; counters stay untouched.
		s.removeMessage(p.MessageID)
	}
}

func (s *Store) applyNewMessage(msg models.Message) {
	conv := s.conversationOf(msg)

	if s.open != nil && *s.open == conv {
		// Never append the same message twice; a self-echo of the
		// sender's own commit lands here as a no-op since the REST
		// response already placed it.
		for _, existing := range s.thread {
			if existing.ID == msg.ID {
				return
			}
		}
		s.thread = append(s.thread, msg)
		return
	}

	if msg.SenderID == s.selfID {
		return
	}
	s.unread[conv]++
	if !s.visible && s.notifier != nil {
		s.notifier.Notify(msg)
	}
}

func (s *Store) applyMutation(msg models.Message) {
	for i := range s.thread {
		if s.thread[i].ID == msg.ID {
			// Replace in place; mutations never move a message.
			s.thread[i] = msg
			return
		}
	}
	// Conversation not open: the event only bumps the unread counter,
	// it does not retroactively materialize the message.
	s.unread[s.conversationOf(msg)]++
}

func (s *Store) removeMessage(messageID int) {
	for i := range s.thread {
		if s.thread[i].ID == messageID {
			s.thread = append(s.thread[:i], s.thread[i+1:]...)
			return
		}
	}
}

// conversationOf derives the conversation an event belongs to from the
// local user's point of view.
func (s *Store) conversationOf(msg models.Message) Conversation {
	if msg.GroupID != nil {
		return GroupConversation(*msg.GroupID)
	}
	return DirectConversation(msg.Counterpart(s.selfID))
}

// Messages returns a copy of the open thread.
func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.thread))
	copy(out, s.thread)
	return out
}

// Unread returns the unread counter for a conversation.
func (s *Store) Unread(conv Conversation) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[conv]
}

// IsTyping reports whether the user is currently believed to be typing
// to the local user.
func (s *Store) IsTyping(userID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.typing[userID]
	return ok
}

// IsOnline reports whether the user appears in the last presence
// snapshot.
func (s *Store) IsOnline(userID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[userID]
	return ok
}
