// Package websocket serves the conversation API over a single socket per
// client, using the protocol package's JSON envelopes.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"echo/core"
	"echo/protocol"
	"echo/transports"

	"github.com/gorilla/websocket"
)

const (
	defaultPingInterval = 30 * time.Second
	writeTimeout        = 10 * time.Second
	defaultReadLimit    = 36 << 20 // base64 of a 25 MiB upload plus envelope
)

type Config struct {
	Users        transports.UserResolver
	PingInterval time.Duration
	ReadLimit    int64
	// CheckOrigin defaults to allowing every origin.
	CheckOrigin func(r *http.Request) bool
	Logger      *core.Logger
}

// Handler upgrades requests and runs one conversation loop per connection.
type Handler struct {
	conversations transports.Conversations
	config        Config
	upgrader      websocket.Upgrader
	logger        *core.Logger
}

func NewHandler(conversations transports.Conversations, config Config) *Handler {
	if config.Users == nil {
		config.Users = transports.HeaderUserResolver(transports.DefaultUserID)
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaultPingInterval
	}
	if config.ReadLimit <= 0 {
		config.ReadLimit = defaultReadLimit
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = func(*http.Request) bool { return true }
	}
	if config.Logger == nil {
		config.Logger = core.GetLogger()
	}
	return &Handler{
		conversations: conversations,
		config:        config,
		upgrader:      websocket.Upgrader{CheckOrigin: config.CheckOrigin},
		logger:        config.Logger.With(map[string]any{"component": "websocket"}),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := h.config.Users(r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.With(map[string]any{"error": err}).Warn("websocket upgrade failed")
		return
	}
	c := &connection{
		conn:   conn,
		userID: userID,
		logger: h.logger.With(map[string]any{"user_id": userID}),
	}
	defer c.close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(h.config.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(2 * h.config.PingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.config.PingInterval))
	})
	go c.pingLoop(ctx, h.config.PingInterval)

	c.logger.Debug("websocket connected")
	h.readLoop(ctx, c)
}

func (h *Handler) readLoop(ctx context.Context, c *connection) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.With(map[string]any{"error": err}).Debug("websocket closed")
			}
			return
		}

		msgType, payload, err := protocol.Unmarshal(data)
		if err != nil {
			c.sendError("", core.NewValidationError("envelope", err.Error()))
			continue
		}
		h.dispatch(ctx, c, msgType, payload)
	}
}

func (h *Handler) dispatch(ctx context.Context, c *connection, msgType protocol.MessageType, payload json.RawMessage) {
	switch msgType {
	case protocol.MsgStart:
		res, err := h.conversations.Start(ctx, c.userID)
		if err != nil {
			c.sendError(msgType, err)
			return
		}
		c.send(protocol.MsgStarted, protocol.StartedPayload{Message: res.Message, Audio: res.Audio, Timestamp: res.Timestamp})

	case protocol.MsgMessage:
		p, err := protocol.UnmarshalPayload[protocol.MessagePayload](payload)
		if err != nil {
			c.sendError(msgType, core.NewValidationError("payload", err.Error()))
			return
		}
		res, err := h.conversations.Message(ctx, c.userID, core.AudioInput{Data: p.Audio, MimeType: p.MimeType, FileName: p.FileName})
		if err != nil {
			c.sendError(msgType, err)
			return
		}
		c.send(protocol.MsgReply, protocol.ReplyPayload{
			UserMessage: res.UserMessage,
			AIResponse:  res.AIResponse,
			Audio:       res.Audio,
			Timestamp:   res.Timestamp,
		})

	case protocol.MsgEnd:
		res, err := h.conversations.End(ctx, c.userID)
		if err != nil {
			c.sendError(msgType, err)
			return
		}
		c.send(protocol.MsgEnded, protocol.EndedPayload{EndedAt: res.EndedAt})

	default:
		c.sendError(msgType, core.NewValidationError("type", "unknown message type "+string(msgType)))
	}
}

// connection serializes writes; gorilla allows one concurrent writer.
type connection struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	userID string
	logger *core.Logger
}

func (c *connection) send(msgType protocol.MessageType, payload any) {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		c.logger.With(map[string]any{"error": err, "type": string(msgType)}).Error("failed to marshal message")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.With(map[string]any{"error": err, "type": string(msgType)}).Warn("websocket write failed")
	}
}

func (c *connection) sendError(request protocol.MessageType, err error) {
	kind := core.KindOf(err)
	if kind == core.KindInternal || kind == core.KindConfigurationMissing {
		c.logger.With(map[string]any{"error": err, "request": string(request)}).Error("websocket request failed")
	}
	c.send(protocol.MsgError, protocol.ErrorPayload{
		Kind:    string(kind),
		Message: transports.PublicMessage(err),
		Request: request,
	})
}

func (c *connection) pingLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.conn.Close()
}
