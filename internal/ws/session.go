package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"presence-chat/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBufferSize = 256
)

// Session is one live websocket connection owned by exactly one user.
// The owning user id is immutable for the session's lifetime. Outbound
// events pass through a FIFO buffer drained by a single write pump, so
// per-session delivery order matches push order.
type Session struct {
	ID          string
	UserID      int
	ConnectedAt time.Time

	conn      *websocket.Conn
	send      chan models.SocketEvent
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wraps a websocket connection for the given user. conn may
// be nil in tests that never start the pumps.
func NewSession(userID int, conn *websocket.Conn) *Session {
	return &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan models.SocketEvent, sendBufferSize),
		done:        make(chan struct{}),
	}
}

// enqueue hands the event to the write pump without blocking. A full
// buffer means the peer is too slow to drain it; the event is dropped
// and never retried.
func (s *Session) enqueue(ev models.SocketEvent) bool {
	select {
	case s.send <- ev:
		return true
	default:
		return false
	}
}

// Events exposes the outbound stream. Used by the write pump and by
// tests observing delivery.
func (s *Session) Events() <-chan models.SocketEvent {
	return s.send
}

// close shuts the session down at most once and closes the underlying
// connection. Safe to call from either pump or the handler.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// writePump drains the outbound buffer to the connection and keeps the
// peer alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
			return
		case ev := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames and dispatches them to the hub until
// the connection drops. It returns the close reason ("" for a normal
// close).
func (s *Session) readPump(hub *Hub) string {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev models.SocketEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ""
			}
			return err.Error()
		}
		hub.handleInbound(s, ev)
	}
}
