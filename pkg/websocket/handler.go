package websocket

import (
	"context"
	"net/http"
	"time"

	"poolmate/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Options struct {
	ReadBufferSize  int
	WriteBufferSize int
	PingInterval    time.Duration
	PongTimeout     time.Duration
	AllowedOrigins  []string
}

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	options  Options
	logger   *logger.Logger
}

// NewHandler starts a hub that lives until ctx is cancelled.
func NewHandler(ctx context.Context, opts Options, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 60 * time.Second
	}
	if opts.PingInterval <= 0 || opts.PingInterval >= opts.PongTimeout {
		opts.PingInterval = (opts.PongTimeout * 9) / 10
	}

	hub := NewHub(log)
	go hub.Run(ctx)

	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		options: opts,
		logger:  log.WithField("component", "websocket"),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// RideRoom is the room name for a ride's event feed.
func RideRoom(rideID primitive.ObjectID) string {
	return "ride_" + rideID.Hex()
}

// ServeRide upgrades the request and subscribes the caller to the ride's
// room. Authentication and the ride lookup happen before this call.
func (h *Handler) ServeRide(c *gin.Context, rideID, userID primitive.ObjectID) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, userID, RideRoom(rideID), h.options.PingInterval, h.options.PongTimeout)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Handler) SendRideUpdate(rideID primitive.ObjectID, updateType string, data map[string]interface{}) {
	h.hub.Publish(RideRoom(rideID), Message{
		Type:      updateType,
		Timestamp: getCurrentTimestamp(),
		Data:      data,
	})
}
