package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/requestdata"
	"github.com/veridia/veridia-backend/internal/sse"
)

type SSEHandler struct {
	log *logger.Logger
	hub *sse.Hub

	mu      sync.Mutex
	clients map[uuid.UUID]*sse.Client
}

func NewSSEHandler(log *logger.Logger, hub *sse.Hub) *SSEHandler {
	return &SSEHandler{
		log:     log.With("handler", "SSEHandler"),
		hub:     hub,
		clients: make(map[uuid.UUID]*sse.Client),
	}
}

// GET /api/sse/stream?channels=node-1,node-2
// Blocks for the life of the connection.
func (h *SSEHandler) Stream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	client := h.hub.NewClient(rd.ActorID)
	for _, ch := range c.QueryArray("channels") {
		h.hub.AddChannel(client, ch)
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client.ID)
		h.mu.Unlock()
		h.hub.CloseClient(client)
	}()

	c.Writer.Header().Set("X-SSE-Client-ID", client.ID.String())
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}

type sseSubscribeRequest struct {
	ClientID uuid.UUID `json:"client_id"`
	Channel  string    `json:"channel"`
}

// POST /api/sse/subscribe
func (h *SSEHandler) Subscribe(c *gin.Context) {
	h.mutateSubscription(c, h.hub.AddChannel)
}

// POST /api/sse/unsubscribe
func (h *SSEHandler) Unsubscribe(c *gin.Context) {
	h.mutateSubscription(c, h.hub.RemoveChannel)
}

func (h *SSEHandler) mutateSubscription(c *gin.Context, apply func(*sse.Client, string)) {
	var req sseSubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.mu.Lock()
	client, ok := h.clients[req.ClientID]
	h.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown client"})
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	if client.ActorID != rd.ActorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	apply(client, req.Channel)
	RespondOK(c, gin.H{"ok": true})
}
