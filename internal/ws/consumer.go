package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/courtsideapp/courtside/internal/auth"
	"github.com/courtsideapp/courtside/internal/booking"
	"github.com/courtsideapp/courtside/internal/broadcast"
	"github.com/courtsideapp/courtside/internal/model"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

// BookingAPI is the slice of the booking service the socket needs;
// *booking.Service implements it.
type BookingAPI interface {
	Book(ctx context.Context, accountID, courtID uuid.UUID, start time.Time, durationHours int) (model.Booking, error)
	Cancel(ctx context.Context, accountID, bookingID uuid.UUID) error
}

// Handler upgrades authenticated requests to a WebSocket speaking the court
// subscription protocol: clients sub/unsub to court groups for live updates
// and may book or cancel over the same socket.
type Handler struct {
	api         BookingAPI
	broadcaster broadcast.Broadcaster
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

func NewHandler(api BookingAPI, broadcaster broadcast.Broadcaster, logger *slog.Logger) *Handler {
	return &Handler{
		api:         api,
		broadcaster: broadcaster,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	accountID, err := uuid.Parse(claims.Sub)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &conn{
		ws:          ws,
		send:        make(chan []byte, sendBufferSize),
		subs:        make(map[string]struct{}),
		accountID:   accountID,
		api:         h.api,
		broadcaster: h.broadcaster,
		logger:      h.logger,
	}
	go c.writeLoop()
	c.readLoop(r.Context())
}

type conn struct {
	ws          *websocket.Conn
	send        chan []byte
	subs        map[string]struct{}
	accountID   uuid.UUID
	api         BookingAPI
	broadcaster broadcast.Broadcaster
	logger      *slog.Logger

	closeOnce sync.Once
}

// Deliver implements broadcast.Subscriber. A client that cannot keep up has
// its messages dropped rather than stalling the fan-out.
func (c *conn) Deliver(payload []byte) {
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("dropping broadcast for slow websocket client", "account_id", c.accountID)
	}
}

func (c *conn) writeLoop() {
	for payload := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *conn) readLoop(ctx context.Context) {
	defer c.shutdown()
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(ctx, raw)
	}
}

// Subscriptions live only as long as the socket.
func (c *conn) shutdown() {
	c.closeOnce.Do(func() {
		for group := range c.subs {
			c.broadcaster.Leave(group, c)
		}
		close(c.send)
		_ = c.ws.Close()
	})
}

type clientMessage struct {
	Type      string `json:"type"`
	CourtID   string `json:"court_id"`
	BookingID string `json:"booking_id"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
}

func (c *conn) handleMessage(ctx context.Context, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.replyError("malformed message")
		return
	}

	switch msg.Type {
	case "sub":
		c.handleSub(msg)
	case "unsub":
		c.handleUnsub(msg)
	case "book":
		c.handleBook(ctx, msg)
	case "cancel":
		c.handleCancel(ctx, msg)
	default:
		c.replyError("unknown message type")
	}
}

func (c *conn) handleSub(msg clientMessage) {
	courtID, err := uuid.Parse(msg.CourtID)
	if err != nil {
		c.replyError("invalid court_id")
		return
	}
	group := "court_" + courtID.String()
	if _, ok := c.subs[group]; !ok {
		c.subs[group] = struct{}{}
		c.broadcaster.Join(group, c)
	}
	c.replySuccess()
}

// Unsubscribing from a court never subscribed to is a no-op.
func (c *conn) handleUnsub(msg clientMessage) {
	courtID, err := uuid.Parse(msg.CourtID)
	if err != nil {
		c.replyError("invalid court_id")
		return
	}
	group := "court_" + courtID.String()
	if _, ok := c.subs[group]; ok {
		delete(c.subs, group)
		c.broadcaster.Leave(group, c)
	}
	c.replySuccess()
}

func (c *conn) handleBook(ctx context.Context, msg clientMessage) {
	courtID, err := uuid.Parse(msg.CourtID)
	if err != nil {
		c.replyError("invalid court_id")
		return
	}
	start, err := time.Parse(time.RFC3339, msg.StartTime)
	if err != nil {
		c.replyError("invalid start_time")
		return
	}
	if _, err := c.api.Book(ctx, c.accountID, courtID, start, msg.Duration); err != nil {
		c.replyServiceError("book", err)
		return
	}
	c.replySuccess()
}

func (c *conn) handleCancel(ctx context.Context, msg clientMessage) {
	bookingID, err := uuid.Parse(msg.BookingID)
	if err != nil {
		c.replyError("invalid booking_id")
		return
	}
	if err := c.api.Cancel(ctx, c.accountID, bookingID); err != nil {
		c.replyServiceError("cancel", err)
		return
	}
	c.replySuccess()
}

// replyServiceError maps the booking sentinels to client-facing details.
// Anything else is logged and surfaced as a generic failure.
func (c *conn) replyServiceError(op string, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotTaken),
		errors.Is(err, booking.ErrOutsideHours),
		errors.Is(err, booking.ErrInPast),
		errors.Is(err, booking.ErrNotFound),
		errors.Is(err, booking.ErrInvalid):
		c.replyError(err.Error())
	default:
		c.logger.Error("websocket "+op+" failed", "account_id", c.accountID, "err", err)
		c.replyError("internal error")
	}
}

func (c *conn) replySuccess() {
	c.reply(map[string]any{"status": "success"})
}

func (c *conn) replyError(details string) {
	c.reply(map[string]any{"status": "error", "details": details})
}

func (c *conn) reply(v map[string]any) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("encoding websocket reply failed", "err", err)
		return
	}
	c.Deliver(payload)
}
