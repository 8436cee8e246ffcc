package handler

import (
	"context"
	"log"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"waka/internal/hub"
)

// WSHandler streams live trip progress over a websocket.
type WSHandler struct {
	progressHub *hub.Hub
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(progressHub *hub.Hub) *WSHandler {
	return &WSHandler{progressHub: progressHub}
}

// StreamTrip handles GET /v1/trips/:id/stream. Each accepted update
// for the trip is pushed to the socket as JSON.
func (h *WSHandler) StreamTrip(c *gin.Context) {
	tripID := c.Param("id")

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("websocket accept failed: %v", err)
		return
	}

	client := hub.NewClient(uuid.New().String(), tripID, 64)
	h.progressHub.Register(client)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client)
}

// readLoop drains the socket so pings and close frames are handled;
// subscribers don't send application messages.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.progressHub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
