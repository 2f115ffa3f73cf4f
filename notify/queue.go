// Package notify keeps transient notifications until the user dismisses
// them. Nothing in the queue blocks navigation.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/infodancer/shellauth"
)

// DefaultCapacity is the queue size used when none is given.
const DefaultCapacity = 16

// Item is a queued notification.
type Item struct {
	ID        string    `json:"id"`
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Queue is a bounded notification queue. When full, the oldest item is
// dropped. It implements shellauth.Notifier.
type Queue struct {
	capacity int
	logger   *slog.Logger

	mu    sync.Mutex
	items []Item
}

var _ shellauth.Notifier = (*Queue)(nil)

// NewQueue creates a queue holding at most capacity items. A capacity below
// one uses DefaultCapacity.
func NewQueue(capacity int, logger *slog.Logger) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{capacity: capacity, logger: logger}
}

// Notify enqueues n.
func (q *Queue) Notify(n shellauth.Notification) {
	item := Item{
		ID:        uuid.NewString(),
		Severity:  n.Severity.String(),
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	if len(q.items) >= q.capacity {
		dropped := q.items[0]
		q.items = append(q.items[:0:0], q.items[1:]...)
		q.logger.Debug("notification dropped", slog.String("id", dropped.ID))
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.logger.Info("notification",
		slog.String("severity", item.Severity),
		slog.String("title", item.Title),
		slog.String("message", item.Message))
}

// Pending returns queued items, oldest first.
func (q *Queue) Pending() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// Dismiss removes the item with id and reports whether it was queued.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.ID == id {
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}
