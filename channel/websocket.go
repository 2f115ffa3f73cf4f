package channel

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	autherrors "github.com/infodancer/shellauth/errors"
)

// TransportConfig tunes the websocket transport.
type TransportConfig struct {
	// ReadLimit caps the size of one message. Default 64 KiB.
	ReadLimit int64

	// PingInterval is how often the connection is pinged. Default 30s.
	PingInterval time.Duration

	// PongWait is how long to wait for any frame before giving up. Default 60s.
	PongWait time.Duration
}

func (c *TransportConfig) withDefaults() TransportConfig {
	out := TransportConfig{
		ReadLimit:    64 << 10,
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
	}
	if c == nil {
		return out
	}
	if c.ReadLimit > 0 {
		out.ReadLimit = c.ReadLimit
	}
	if c.PingInterval > 0 {
		out.PingInterval = c.PingInterval
	}
	if c.PongWait > 0 {
		out.PongWait = c.PongWait
	}
	return out
}

// Transport carries messages from the embedded frame into a Channel over a
// websocket. The frame's bridge script sends each posted value as one text
// frame; the Origin header of the upgrade request is the message origin.
//
// Connections from other origins are refused at upgrade. Every message is
// still delivered through Channel.Deliver, which repeats the check.
type Transport struct {
	channel  *Channel
	config   TransportConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewTransport creates a transport feeding ch.
func NewTransport(ch *Channel, cfg *TransportConfig, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		channel: ch,
		config:  cfg.withDefaults(),
		logger:  logger,
	}
	t.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return r.Header.Get("Origin") == ch.TrustedOrigin()
		},
	}
	return t
}

// ServeHTTP upgrades the request and reads messages until the peer goes away.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != t.channel.TrustedOrigin() {
		t.logger.Debug("refusing frame connection", slog.String("origin", origin))
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		t.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	connID := uuid.NewString()
	logger := t.logger.With(slog.String("conn", connID))
	logger.Debug("frame connected", slog.String("origin", origin))

	done := make(chan struct{})
	defer close(done)
	go t.ping(conn, done, logger)

	t.readPump(r, conn, origin, logger)
}

// readPump delivers every text frame to the channel until the connection fails.
func (t *Transport) readPump(r *http.Request, conn *websocket.Conn, origin string, logger *slog.Logger) {
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(t.config.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(t.config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.config.PongWait))
	})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("frame connection closed", slog.String("error", err.Error()))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(t.config.PongWait))

		if kind != websocket.TextMessage {
			continue
		}

		err = t.channel.Deliver(r.Context(), Message{
			Origin: origin,
			Data:   PayloadFromFrame(data),
		})
		if err != nil && !errors.Is(err, autherrors.ErrMalformedMessage) {
			logger.Warn("message rejected", slog.String("error", err.Error()))
		}
	}
}

// ping keeps the connection alive until done is closed.
func (t *Transport) ping(conn *websocket.Conn, done <-chan struct{}, logger *slog.Logger) {
	ticker := time.NewTicker(t.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Debug("ping failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}
