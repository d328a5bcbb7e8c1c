package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sarvangi2609/criczz/internal/apperr"
	"github.com/sarvangi2609/criczz/internal/pkg/jwt"
	"github.com/sarvangi2609/criczz/internal/pkg/response"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientFrame is what a connected client may send.
type ClientFrame struct {
	Type       string `json:"type"`
	Topic      string `json:"topic"`
	Text       string `json:"text,omitempty"`
	IsTyping   bool   `json:"is_typing,omitempty"`
	LastReadID string `json:"last_read_id,omitempty"`
}

// client is the websocket Handle. Frames go through a buffered channel so
// Send never blocks the caller; a full buffer drops the frame.
type client struct {
	payerID string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
}

func newClient(payerID string, conn *websocket.Conn) *client {
	return &client{
		payerID: payerID,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

func (c *client) Send(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *client) Close() {
	c.once.Do(func() { close(c.done) })
}

// Conversations stores chat traffic arriving over the socket and fans
// the stored result out itself.
type Conversations interface {
	PostToTopic(ctx context.Context, topic, payerID, text string) error
	ReadTopic(ctx context.Context, topic, payerID, lastReadID string) error
}

type WSHandler struct {
	hub    *Hub
	tokens *jwt.Service
	authz  TopicAuthorizer
	chat   Conversations
	log    *zap.Logger
}

func NewWSHandler(hub *Hub, tokens *jwt.Service, authz TopicAuthorizer, chat Conversations, log *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, tokens: tokens, authz: authz, chat: chat, log: log}
}

// HandleWebSocket serves GET /ws?token=JWT.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Token is required. Use ?token=YOUR_JWT_TOKEN")
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := newClient(claims.UserID, conn)
	h.hub.Register(cl.payerID, cl)

	// own owner topic is implicit
	h.hub.JoinTopic(OwnerTopic(cl.payerID), cl.payerID)

	go h.writePump(cl)
	h.readPump(c.Request.Context(), cl)
}

func (h *WSHandler) readPump(ctx context.Context, cl *client) {
	defer func() {
		h.hub.Release(cl.payerID, cl)
		cl.Close()
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read failed", zap.String("payer_id", cl.payerID), zap.Error(err))
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.reply(cl, NewErrorEvent("INVALID_JSON", "Failed to parse message"))
			continue
		}
		h.handleFrame(ctx, cl, frame)
	}
}

func (h *WSHandler) handleFrame(ctx context.Context, cl *client, frame ClientFrame) {
	switch frame.Type {
	case "subscribe":
		if !h.authz.CanJoin(ctx, cl.payerID, frame.Topic) {
			h.reply(cl, NewErrorEvent("FORBIDDEN", "Not allowed to join "+frame.Topic))
			return
		}
		h.hub.JoinTopic(frame.Topic, cl.payerID)
	case "unsubscribe":
		h.hub.LeaveTopic(frame.Topic, cl.payerID)
	case "message":
		if h.requireMember(cl, frame.Topic) && frame.Text != "" {
			h.replyErr(cl, h.chat.PostToTopic(ctx, frame.Topic, cl.payerID, frame.Text))
		}
	case "typing":
		if h.requireMember(cl, frame.Topic) {
			h.hub.Broadcast(frame.Topic, NewTypingEvent(frame.Topic, cl.payerID, frame.IsTyping), cl.payerID)
		}
	case "read":
		if h.requireMember(cl, frame.Topic) {
			h.replyErr(cl, h.chat.ReadTopic(ctx, frame.Topic, cl.payerID, frame.LastReadID))
		}
	case "ping":
		h.reply(cl, Event{Event: EventPong, Data: map[string]int64{"ts": time.Now().Unix()}})
	default:
		h.reply(cl, NewErrorEvent("UNKNOWN_TYPE", "Unknown message type: "+frame.Type))
	}
}

func (h *WSHandler) requireMember(cl *client, topic string) bool {
	if h.hub.IsMember(topic, cl.payerID) {
		return true
	}
	h.reply(cl, NewErrorEvent("NOT_SUBSCRIBED", "Subscribe to "+topic+" first"))
	return false
}

// replyErr reports a failed frame back to its sender.
func (h *WSHandler) replyErr(cl *client, err error) {
	if err == nil {
		return
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		h.reply(cl, NewErrorEvent(ae.Code, ae.Message))
		return
	}
	h.log.Error("chat frame failed", zap.String("payer_id", cl.payerID), zap.Error(err))
	h.reply(cl, NewErrorEvent("INTERNAL_ERROR", "Something went wrong"))
}

func (h *WSHandler) reply(cl *client, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	cl.Send(payload)
}

func (h *WSHandler) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cl.done:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (h *WSHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.HandleWebSocket)
}
