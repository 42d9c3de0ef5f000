// Package autosave coalesces rapid title/content edits into single
// persisted writes. It models the editing session as an explicit state
// machine (idle → unsaved → saving → saved/error) instead of bare timer
// callbacks, so logical time can be driven deterministically in tests.
package autosave

import (
	"sync"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateUnsaved
	StateSaving
	StateSaved
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUnsaved:
		return "unsaved"
	case StateSaving:
		return "saving"
	case StateSaved:
		return "saved"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// DefaultDelay matches the editor's debounce window.
const DefaultDelay = 800 * time.Millisecond

// Patch is the sparse set of fields touched since the last successful save.
type Patch struct {
	Title   *string
	Content *string
}

func (p Patch) IsZero() bool {
	return p.Title == nil && p.Content == nil
}

// merge lays other on top of p; later edits win per field.
func (p *Patch) merge(other Patch) {
	if other.Title != nil {
		p.Title = other.Title
	}
	if other.Content != nil {
		p.Content = other.Content
	}
}

// mergeUnder keeps p's values and fills only fields p has not touched.
// Used to restore a failed patch without clobbering newer edits.
func (p *Patch) mergeUnder(older Patch) {
	if p.Title == nil {
		p.Title = older.Title
	}
	if p.Content == nil {
		p.Content = older.Content
	}
}

// SaveFunc persists one coalesced patch. It must not retry internally.
type SaveFunc func(patch Patch) error

type timer interface {
	Stop() bool
}

type Option func(*Coordinator)

// WithDelay overrides the debounce window.
func WithDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.delay = d }
}

// WithNotify registers a callback invoked after every state transition.
// It runs outside the coordinator's lock.
func WithNotify(fn func(State)) Option {
	return func(c *Coordinator) { c.notify = fn }
}

// Coordinator debounces edits for a single page. Only one save request is
// in flight at a time; edits arriving mid-flight are held and the timer is
// re-armed once the request settles, preserving write ordering.
type Coordinator struct {
	save   SaveFunc
	delay  time.Duration
	notify func(State)

	// afterFunc is swapped out in tests to drive time by hand.
	afterFunc func(time.Duration, func()) timer

	mu       sync.Mutex
	state    State
	pending  Patch
	t        timer
	inFlight bool
	closed   bool
}

func New(save SaveFunc, opts ...Option) *Coordinator {
	c := &Coordinator{
		save:  save,
		delay: DefaultDelay,
		state: StateIdle,
		afterFunc: func(d time.Duration, fn func()) timer {
			return time.AfterFunc(d, fn)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Edit records a keystroke-level change and (re)starts the debounce timer.
// While a save is in flight the edit is held; the timer re-arms on settle.
func (c *Coordinator) Edit(patch Patch) {
	if patch.IsZero() {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending.merge(patch)
	notify := c.transition(StateUnsaved)
	if !c.inFlight {
		c.arm()
	}
	c.mu.Unlock()

	notify()
}

// Flush persists any pending patch immediately, cancelling the timer. It
// is a no-op while a request is in flight or when nothing is pending.
func (c *Coordinator) Flush() error {
	c.mu.Lock()
	c.stopTimer()
	if c.inFlight || c.pending.IsZero() {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.fire()
}

// Close cancels a pending (not yet fired) timer without persisting. An
// in-flight request is left to settle on its own.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimer()
	c.pending = Patch{}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) arm() {
	c.stopTimer()
	c.t = c.afterFunc(c.delay, func() { _ = c.fire() })
}

func (c *Coordinator) stopTimer() {
	if c.t != nil {
		c.t.Stop()
		c.t = nil
	}
}

// fire takes the coalesced patch and issues exactly one save request.
func (c *Coordinator) fire() error {
	c.mu.Lock()
	if c.closed || c.inFlight || c.pending.IsZero() {
		c.mu.Unlock()
		return nil
	}
	patch := c.pending
	c.pending = Patch{}
	c.inFlight = true
	notify := c.transition(StateSaving)
	c.mu.Unlock()

	notify()
	err := c.save(patch)

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		// Keep the edit: park the failed values under anything newer.
		// Retrying is the caller's decision, not ours.
		c.pending.mergeUnder(patch)
		notify = c.transition(StateError)
	} else if !c.pending.IsZero() {
		notify = c.transition(StateUnsaved)
		if !c.closed {
			c.arm()
		}
	} else {
		notify = c.transition(StateSaved)
	}
	c.mu.Unlock()

	notify()
	return err
}

// transition must be called with the lock held; the returned func delivers
// the notification once the lock is released.
func (c *Coordinator) transition(s State) func() {
	c.state = s
	if c.notify == nil {
		return func() {}
	}
	fn := c.notify
	return func() { fn(s) }
}
