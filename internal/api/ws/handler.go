package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/embedder"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

const (
	writeWait    = 5 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the API carries no credentials
	},
}

// clientMessage is what a client may send on the stream
type clientMessage struct {
	Type string `json:"type"`
}

// Handler streams embedder events over WebSocket connections
type Handler struct {
	bus          *embedder.Bus
	metrics      *monitoring.Metrics
	logger       *zap.Logger
	pingInterval time.Duration
}

// NewHandler creates a new WebSocket handler
func NewHandler(bus *embedder.Bus, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		bus:          bus,
		metrics:      metrics,
		logger:       logger,
		pingInterval: pingInterval,
	}
}

// HandleConnection upgrades the request and forwards events until the client
// goes away or the bus closes. ?top_level=<id> restricts the stream to one tab.
func (h *Handler) HandleConnection(c *gin.Context) {
	var filter string
	if raw := c.Query("top_level"); raw != "" {
		top, err := id.ParseTopLevelID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter = top.String()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	subID, events := h.bus.Subscribe()
	defer h.bus.Unsubscribe(subID)

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	logger := h.logger.With(zap.String("subscriber", subID))
	logger.Debug("Event stream opened", zap.String("top_level", filter))

	pongs := make(chan struct{}, 1)
	gone := make(chan struct{})
	go h.readLoop(conn, pongs, gone, logger)

	if err := h.send(conn, gin.H{"type": "system", "message": "connected", "subscriber": subID}); err != nil {
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			logger.Debug("Event stream closed by client")
			return
		case e, ok := <-events:
			if !ok {
				h.close(conn, "shutting down")
				return
			}
			if filter != "" && e.TopLevel != filter {
				continue
			}
			if err := h.send(conn, e); err != nil {
				logger.Debug("Event write failed", zap.Error(err))
				return
			}
		case <-pongs:
			if err := h.send(conn, gin.H{"type": "pong"}); err != nil {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// readLoop consumes client frames so control messages are processed. Only
// the writer goroutine writes to conn.
func (h *Handler) readLoop(conn *websocket.Conn, pongs chan<- struct{}, gone chan<- struct{}, logger *zap.Logger) {
	defer close(gone)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			logger.Debug("Ignoring malformed client message", zap.Error(err))
			continue
		}
		if msg.Type == "ping" {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, v any) error {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func (h *Handler) close(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
