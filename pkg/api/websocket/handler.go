package websocket

import (
	"context"
	"net/http"

	"github.com/aescanero/livepoll/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// sendBuffer is the number of updates queued per client before dropping
const sendBuffer = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		logger:   logger,
	}
}

// HandleChatStream streams chat updates to a WebSocket client
func (h *Handler) HandleChatStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("client", c.ClientIP()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventChan := make(chan ports.Event, sendBuffer)
	sub, err := h.eventBus.Subscribe(ctx, ports.EventChat, func(ctx context.Context, event ports.Event) error {
		// never stall the bus on a slow client
		select {
		case eventChan <- event:
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("event", event.Name))
		}
		return nil
	})
	if err != nil {
		h.logger.Error("failed to subscribe to events", zap.Error(err))
		return
	}
	defer sub.Close()

	// the read loop notices the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket connection closed",
				zap.String("client", c.ClientIP()))
			return
		case event := <-eventChan:
			if err := conn.WriteMessage(websocket.TextMessage, event.Data); err != nil {
				h.logger.Error("failed to write message", zap.Error(err))
				return
			}
		}
	}
}
