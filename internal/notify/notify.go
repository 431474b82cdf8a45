// Package notify keeps the recent user-facing notifications.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/nano-editor/internal/export"
	"github.com/aliskhannn/nano-editor/internal/model"
)

// DefaultCapacity is how many notifications are kept.
const DefaultCapacity = 50

// Levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notification is one message shown to the user.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Level     string    `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Center is a bounded, newest-last ring of notifications.
type Center struct {
	mu    sync.RWMutex
	items []Notification
	limit int
	clock model.Clock
}

// New creates a Center keeping at most capacity notifications.
func New(capacity int, clock model.Clock) *Center {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clock == nil {
		clock = model.RealClock{}
	}
	return &Center{limit: capacity, clock: clock}
}

// Push records a notification and logs it.
func (c *Center) Push(level, title, message string) Notification {
	n := Notification{
		ID:        uuid.New(),
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: c.clock.Now(),
	}

	c.mu.Lock()
	c.items = append(c.items, n)
	if over := len(c.items) - c.limit; over > 0 {
		c.items = append(c.items[:0:0], c.items[over:]...)
	}
	c.mu.Unlock()

	ev := zlog.Logger.Info()
	switch level {
	case LevelWarning:
		ev = zlog.Logger.Warn()
	case LevelError:
		ev = zlog.Logger.Error()
	}
	ev.Str("level", level).Str("title", title).Msg(message)

	return n
}

// Notify turns an export batch summary into a single notification.
func (c *Center) Notify(_ context.Context, s export.Summary) {
	level := LevelSuccess
	switch {
	case s.Succeeded == 0 && s.Failed > 0:
		level = LevelError
	case s.Failed > 0:
		level = LevelWarning
	}
	c.Push(level, "Export", s.Message())
}

// List returns notifications newest first.
func (c *Center) List() []Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Notification, len(c.items))
	for i, n := range c.items {
		out[len(c.items)-1-i] = n
	}
	return out
}

// Dismiss removes one notification. It reports whether it existed.
func (c *Center) Dismiss(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every notification.
func (c *Center) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}
