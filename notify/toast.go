// Package notify implements the single transient notification ("toast")
// shown for connection changes, command outcomes and wallet updates.
package notify

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type Severity string

const (
	Error   Severity = "error"
	Info    Severity = "info"
	Success Severity = "success"
)

// DisplayDuration is how long a toast stays visible.
const DisplayDuration = 4 * time.Second

type Toast struct {
	ID       uint64
	Message  string
	Severity Severity
	ShownAt  time.Time
}

// Toaster shows at most one toast. A new toast replaces the visible one;
// each toast's dismissal timer only clears that toast, so a timer that
// outlives its toast does nothing.
type Toaster struct {
	clock    clockwork.Clock
	duration time.Duration

	mu        sync.Mutex
	current   *Toast
	seq       uint64
	listeners []func(*Toast)
}

type Option func(*Toaster)

func WithClock(c clockwork.Clock) Option {
	return func(t *Toaster) { t.clock = c }
}

func WithDuration(d time.Duration) Option {
	return func(t *Toaster) { t.duration = d }
}

func New(opts ...Option) *Toaster {
	t := &Toaster{
		clock:    clockwork.NewRealClock(),
		duration: DisplayDuration,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Show replaces the visible toast and schedules its dismissal.
func (t *Toaster) Show(message string, severity Severity) Toast {
	t.mu.Lock()
	t.seq++
	toast := Toast{
		ID:       t.seq,
		Message:  message,
		Severity: severity,
		ShownAt:  t.clock.Now(),
	}
	t.current = &toast
	listeners := append([]func(*Toast){}, t.listeners...)
	t.mu.Unlock()

	id := toast.ID
	t.clock.AfterFunc(t.duration, func() { t.dismiss(id) })

	for _, l := range listeners {
		shown := toast
		l(&shown)
	}
	return toast
}

func (t *Toaster) dismiss(id uint64) {
	t.mu.Lock()
	if t.current == nil || t.current.ID != id {
		t.mu.Unlock()
		return
	}
	t.current = nil
	listeners := append([]func(*Toast){}, t.listeners...)
	t.mu.Unlock()

	for _, l := range listeners {
		l(nil)
	}
}

// Current returns the visible toast, if any.
func (t *Toaster) Current() (Toast, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Toast{}, false
	}
	return *t.current, true
}

// OnChange registers fn to run whenever a toast is shown (non-nil) or
// dismissed (nil).
func (t *Toaster) OnChange(fn func(*Toast)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}
