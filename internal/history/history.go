// Package history provides linear undo/redo over reversible operations.
package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/nano-editor/internal/model"
)

const (
	// DefaultMaxDepth is the number of entries kept before the oldest is evicted.
	DefaultMaxDepth = 500
	// DefaultMinInterval is the throttle window between two recorded pushes.
	DefaultMinInterval = 150 * time.Millisecond
)

// Operation is a reversible command. Apply and Undo must be inverses.
type Operation interface {
	Apply() error
	Undo() error
}

// Func adapts a pair of closures to Operation.
type Func struct {
	ApplyFn func() error
	UndoFn  func() error
}

// Apply calls ApplyFn.
func (f Func) Apply() error {
	if f.ApplyFn == nil {
		return nil
	}
	return f.ApplyFn()
}

// Undo calls UndoFn.
func (f Func) Undo() error {
	if f.UndoFn == nil {
		return nil
	}
	return f.UndoFn()
}

func (e Entry) apply() error {
	if e.Op == nil {
		return nil
	}
	return e.Op.Apply()
}

func (e Entry) undo() error {
	if e.Op == nil {
		return nil
	}
	return e.Op.Undo()
}

// Metadata is free-form information about an entry.
type Metadata struct {
	Action  string            `json:"action"`
	Tags    []string          `json:"tags,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
}

// Entry is one recorded operation.
type Entry struct {
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
	Op        Operation `json:"-"`
	Meta      Metadata  `json:"meta"`
}

// Options configure a Stack. Zero values select the defaults.
type Options struct {
	MaxDepth    int
	MinInterval time.Duration
	Clock       model.Clock
}

// Stack is a linear undo/redo history. It is safe for concurrent use;
// all calls are serialized.
type Stack struct {
	mu          sync.Mutex
	past        []Entry
	future      []Entry
	maxDepth    int
	minInterval time.Duration
	clock       model.Clock
	lastPush    time.Time
}

// New creates a Stack. A negative MinInterval disables throttling.
func New(opts Options) *Stack {
	s := &Stack{
		maxDepth:    opts.MaxDepth,
		minInterval: opts.MinInterval,
		clock:       opts.Clock,
	}

	if s.maxDepth <= 0 {
		s.maxDepth = DefaultMaxDepth
	}
	if s.minInterval == 0 {
		s.minInterval = DefaultMinInterval
	}
	if s.clock == nil {
		s.clock = model.RealClock{}
	}

	return s
}

// Push records an already applied entry and reports whether it was kept.
//
// A push arriving within the throttle window of the previous recorded push is
// dropped entirely, not merged: during a continuous slider drag only the values
// settled at window boundaries are recorded. Every recorded push clears the
// redo stack. Beyond the maximum depth the oldest entry is evicted silently.
func (s *Stack) Push(e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if !s.lastPush.IsZero() && s.minInterval > 0 && now.Sub(s.lastPush) < s.minInterval {
		zlog.Logger.Debug().Str("label", e.Label).Msg("history push throttled")
		return false
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}

	s.past = append(s.past, e)
	if len(s.past) > s.maxDepth {
		s.past = s.past[len(s.past)-s.maxDepth:]
	}
	s.future = nil
	s.lastPush = now

	return true
}

// Undo reverts the most recent entry and moves it to the redo stack.
// A failing Undo is logged and swallowed; the stacks still advance.
func (s *Stack) Undo() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.past) == 0 {
		return Entry{}, false
	}

	e := s.past[len(s.past)-1]
	s.past = s.past[:len(s.past)-1]

	if err := run(e.undo); err != nil {
		zlog.Logger.Error().Err(err).Str("label", e.Label).Msg("undo failed")
	}

	s.future = append(s.future, e)

	return e, true
}

// Redo reapplies the most recently undone entry and moves it back to the past.
// A failing Apply is logged and swallowed; the stacks still advance.
func (s *Stack) Redo() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.future) == 0 {
		return Entry{}, false
	}

	e := s.future[len(s.future)-1]
	s.future = s.future[:len(s.future)-1]

	if err := run(e.apply); err != nil {
		zlog.Logger.Error().Err(err).Str("label", e.Label).Msg("redo failed")
	}

	s.past = append(s.past, e)

	return e, true
}

// Clear drops both stacks and resets the throttle window.
func (s *Stack) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.past = nil
	s.future = nil
	s.lastPush = time.Time{}
}

// CanUndo reports whether Undo has an entry to revert.
func (s *Stack) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.past) > 0
}

// CanRedo reports whether Redo has an entry to reapply.
func (s *Stack) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.future) > 0
}

// Len returns the number of entries on the undo stack.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.past)
}

// Past returns the undo stack, oldest first.
func (s *Stack) Past() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.past...)
}

// Future returns the redo stack, next redo last.
func (s *Stack) Future() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.future...)
}

// run calls fn, turning a panic into an error so the stacks still advance.
func run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return fn()
}
