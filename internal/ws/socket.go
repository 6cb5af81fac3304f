package ws

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"presence-chat/internal/middleware"
	"presence-chat/internal/observability"
)

// SocketHandler owns the websocket endpoint: it upgrades the request,
// registers a session with the hub, and runs the pumps until the
// connection drops.
type SocketHandler struct {
	hub  *Hub
	auth middleware.TokenValidator
}

// NewSocketHandler constructs a SocketHandler. auth may be nil when
// socket authentication is disabled.
func NewSocketHandler(hub *Hub, auth middleware.TokenValidator) *SocketHandler {
	return &SocketHandler{hub: hub, auth: auth}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the session.
func (h *SocketHandler) Handle(c *gin.Context) {
	userID, err := strconv.Atoi(c.Query("userId"))
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	ctx, span := otel.Tracer("presence-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	if h.auth != nil {
		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("token")
			if token != "" {
				token = "Bearer " + token
			}
		}
		authID, err := h.validateToken(ctx, token)
		if err != nil || authID != userID {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	sess := NewSession(userID, conn)
	if err := h.hub.Attach(sess); err != nil {
		conn.Close()
		return
	}

	info := ConnInfo{
		ConnID:      sess.ID,
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: sess.ConnectedAt,
	}

	observability.IncWSActive()
	publishSocketEvent(ctx, info, "ws_connect", "")

	go sess.writePump()
	go func() {
		reason := sess.readPump(h.hub)
		h.hub.Detach(sess.ID)
		sess.close()
		observability.DecWSActive()
		if reason != "" {
			publishSocketEvent(ctx, info, "ws_error", reason)
		}
		publishSocketEvent(ctx, info, "ws_disconnect", reason)
	}()
}

func (h *SocketHandler) validateToken(ctx context.Context, header string) (int, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return h.auth.ValidateToken(ctx, parts[1])
	}
	return 0, fmt.Errorf("invalid token")
}

func publishSocketEvent(ctx context.Context, info ConnInfo, event, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(event)
}
