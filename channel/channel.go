// Package channel receives messages posted by the embedded frame, keeps only
// those from the trusted origin that carry a session payload, and dispatches
// them to subscribers as typed server events.
//
// The origin check is exact string equality against one configured origin.
// There is no wildcard and no way to disable it.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/infodancer/shellauth"
	autherrors "github.com/infodancer/shellauth/errors"
)

// ServerEvent is a session payload received from the remote peer.
type ServerEvent = shellauth.Session

// Handler receives server events. Handlers run synchronously on the
// delivering goroutine.
type Handler func(ctx context.Context, ev ServerEvent)

// Message is one inbound cross-context message.
type Message struct {
	// Origin is the sender's origin as reported by the transport.
	Origin string

	// Data is the posted value.
	Data Payload
}

type subscription struct {
	id      uint64
	handler Handler
}

// Channel is the single point of contact with the frame's outbound messages.
// It is safe for concurrent use.
type Channel struct {
	trustedOrigin string
	logger        *slog.Logger

	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
}

// New creates a channel that accepts messages from trustedOrigin only.
// Returns errors.ErrInvalidOrigin if the origin is not an exact
// scheme://host origin.
func New(trustedOrigin string, logger *slog.Logger) (*Channel, error) {
	if err := shellauth.ValidateOrigin(trustedOrigin); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		trustedOrigin: trustedOrigin,
		logger:        logger,
	}, nil
}

// TrustedOrigin returns the only origin messages are accepted from.
func (c *Channel) TrustedOrigin() string {
	return c.trustedOrigin
}

// OnServerEvent subscribes h to future events and returns a function that
// removes the subscription. Events delivered before subscription are never
// replayed.
func (c *Channel) OnServerEvent(h Handler) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { c.remove(id) })
	}
}

func (c *Channel) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (c *Channel) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// Deliver processes one inbound message. Messages from any origin other than
// the trusted one are dropped without inspecting the payload; payloads that
// are not session records are logged and dropped. Accepted events are
// dispatched to every current subscriber in subscription order before
// Deliver returns.
//
// The returned error says why a message was dropped
// (errors.ErrUntrustedOrigin or errors.ErrMalformedMessage). It is
// informational; transports must not surface it to the user.
func (c *Channel) Deliver(ctx context.Context, msg Message) error {
	if msg.Origin != c.trustedOrigin {
		return fmt.Errorf("%w: %q", autherrors.ErrUntrustedOrigin, msg.Origin)
	}

	ev, err := ParsePayload(msg.Data)
	if err != nil {
		c.logger.Debug("dropping message",
			slog.String("origin", msg.Origin),
			slog.String("error", err.Error()))
		return err
	}

	c.mu.RLock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.RUnlock()

	c.logger.Debug("server event received",
		slog.Any("event", ev),
		slog.Int("subscribers", len(subs)))

	for _, s := range subs {
		s.handler(ctx, ev)
	}
	return nil
}
