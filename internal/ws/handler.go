package ws

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"chat-app/internal/observability"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (int, error)
}

// Handler upgrades realtime connections and keeps the presence registry in
// sync with their lifecycle.
type Handler struct {
	registry *Registry
	tokens   TokenVerifier
	logger   *zap.SugaredLogger
}

// NewHandler constructs a Handler.
func NewHandler(registry *Registry, tokens TokenVerifier, logger *zap.SugaredLogger) *Handler {
	return &Handler{registry: registry, tokens: tokens, logger: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the handshake, upgrades the connection and registers
// the user as online until the socket closes.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-app/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing token"})
		return
	}

	userID, err := h.tokens.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
		return
	}

	// The client may announce its identity in the query string; it must match
	// the token it presented.
	if claimed := c.Query("userId"); claimed != "" {
		id, err := strconv.Atoi(claimed)
		if err != nil || id != userID {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "identity mismatch"})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.registry.Register(userID, conn, info)
	h.logger.Infow("user connected", "userId", userID, "connId", info.ConnID)

	observability.IncWSActive("dm")
	observability.IncWSEvent("dm", "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.dm", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   connEventPayload(info, "ws_connect", ""),
	}, observability.BuildHeaders(requestID, traceID))

	// Drain the connection; inbound frames carry nothing, the read loop only
	// detects closure.
	go func() {
		var closeReason string
		defer func() {
			h.registry.Unregister(userID, conn)
			conn.Close()
			h.logger.Infow("user disconnected", "userId", userID, "connId", info.ConnID)
			observability.DecWSActive("dm")
			observability.IncWSEvent("dm", "ws_disconnect")
			_ = observability.PublishEvent(ctx, "ws_events.dm", observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Payload:   connEventPayload(info, "ws_disconnect", closeReason),
			}, observability.BuildHeaders(requestID, traceID))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("dm", "ws_error")
				}
				return
			}
		}
	}()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return c.Query("token")
}

func connEventPayload(info ConnInfo, event, reason string) map[string]interface{} {
	durationMS := int64(0)
	if event != "ws_connect" {
		durationMS = time.Since(info.ConnectedAt).Milliseconds()
	}
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "dm",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
