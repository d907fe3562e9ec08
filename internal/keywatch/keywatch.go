// Package keywatch turns "is this key held" polling into one callback per
// press.
//
// Each registered key runs a small state machine on every Tick:
//
//	Idle             --press-->          fire, CoolingDown
//	CoolingDown      --cooldown spent--> HeldPastCooldown (key not polled)
//	HeldPastCooldown --release-->        Idle
//
// The key is not polled while cooling down, so a release and re-press that
// both fall inside the cooldown go unseen. A key held continuously never
// fires twice, however long it is held.
package keywatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/vedantwpatil/keypilot/internal/backend"
	"github.com/vedantwpatil/keypilot/internal/clock"
)

// DefaultCooldown is used when a watch is registered without WithCooldown.
const DefaultCooldown = 150 * time.Millisecond

// ErrInvalidInterval is returned by Run for a non-positive interval.
var ErrInvalidInterval = errors.New("tick interval must be positive")

// Handler is invoked when a watched key goes down.
type Handler interface {
	OnKeyDown(key backend.Keycode) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(key backend.Keycode) error

// OnKeyDown calls f.
func (f HandlerFunc) OnKeyDown(key backend.Keycode) error {
	return f(key)
}

// Func adapts a function that takes no arguments and cannot fail.
func Func(fn func()) Handler {
	return HandlerFunc(func(backend.Keycode) error {
		fn()
		return nil
	})
}

// State is the observable phase of a watch.
type State int

const (
	// Idle watches fire on the next observed press.
	Idle State = iota
	// CoolingDown watches have fired and are not polling the key.
	CoolingDown
	// HeldPastCooldown watches have fired and wait for the key to be released.
	HeldPastCooldown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CoolingDown:
		return "cooling_down"
	case HeldPastCooldown:
		return "held_past_cooldown"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type watch struct {
	key       backend.Keycode
	cooldown  time.Duration
	handler   Handler
	remaining time.Duration
	active    bool
	removed   bool // unregistered or replaced, possibly mid-Tick
}

func (w *watch) state() State {
	switch {
	case !w.active:
		return Idle
	case w.remaining > 0:
		return CoolingDown
	default:
		return HeldPastCooldown
	}
}

// WatchOption configures a single watch.
type WatchOption func(*watch)

// WithCooldown sets how long a watch ignores its key after firing. Negative
// values are treated as zero.
func WithCooldown(d time.Duration) WatchOption {
	return func(w *watch) {
		w.cooldown = max(d, 0)
	}
}

// Dispatcher polls key state and fires handlers. It is driven from a single
// loop and is not safe for concurrent use.
type Dispatcher struct {
	keys    backend.KeyState
	watches []*watch
	index   map[backend.Keycode]int
	clock   *clock.Clock
	log     *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used to report handler and key-state failures.
func WithLogger(log *zap.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithTimeSource sets the time source used by Step and Run.
func WithTimeSource(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.clock = clock.New(now)
	}
}

// NewDispatcher returns a Dispatcher polling keys.
func NewDispatcher(keys backend.KeyState, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		keys:  keys,
		index: make(map[backend.Keycode]int),
		clock: clock.New(nil),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register watches key, replacing any earlier watch for it. A replaced watch
// keeps its place in the polling order and starts again from Idle.
func (d *Dispatcher) Register(key backend.Keycode, h Handler, opts ...WatchOption) {
	w := &watch{
		key:      key,
		cooldown: DefaultCooldown,
		handler:  h,
	}
	for _, opt := range opts {
		opt(w)
	}

	if i, ok := d.index[key]; ok {
		d.watches[i].removed = true
		d.watches[i] = w
		return
	}
	d.index[key] = len(d.watches)
	d.watches = append(d.watches, w)
}

// Unregister stops watching key. It reports whether key was watched.
func (d *Dispatcher) Unregister(key backend.Keycode) bool {
	i, ok := d.index[key]
	if !ok {
		return false
	}
	d.watches[i].removed = true
	last := len(d.watches) - 1
	copy(d.watches[i:], d.watches[i+1:])
	d.watches[last] = nil
	d.watches = d.watches[:last]
	delete(d.index, key)
	for j := i; j < len(d.watches); j++ {
		d.index[d.watches[j].key] = j
	}
	return true
}

// Len returns the number of watched keys.
func (d *Dispatcher) Len() int {
	return len(d.watches)
}

// Keys returns the watched keys in polling order.
func (d *Dispatcher) Keys() []backend.Keycode {
	keys := make([]backend.Keycode, len(d.watches))
	for i, w := range d.watches {
		keys[i] = w.key
	}
	return keys
}

// State returns the phase of the watch for key.
func (d *Dispatcher) State(key backend.Keycode) (State, bool) {
	i, ok := d.index[key]
	if !ok {
		return Idle, false
	}
	return d.watches[i].state(), true
}

// Tick advances every watch by elapsed, in registration order. Handlers may
// Register or Unregister keys; a watch removed during the Tick is not visited
// and a watch added during it is first visited on the next Tick.
func (d *Dispatcher) Tick(elapsed time.Duration) {
	for _, w := range slices.Clone(d.watches) {
		if w.removed {
			continue
		}
		d.tick(w, elapsed)
	}
}

func (d *Dispatcher) tick(w *watch, elapsed time.Duration) {
	if w.remaining > 0 {
		w.remaining -= elapsed
		return
	}

	pressed, err := d.keys.IsKeyPressed(w.key)
	if err != nil {
		d.log.Warn("key state query failed", zap.Stringer("key", w.key), zap.Error(err))
		return
	}

	switch {
	case !pressed:
		w.active = false
	case !w.active:
		w.remaining = w.cooldown
		w.active = true
		if err := d.fire(w); err != nil {
			d.log.Error("key handler failed", zap.Stringer("key", w.key), zap.Error(err))
		}
	}
}

func (d *Dispatcher) fire(w *watch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if w.handler == nil {
		return nil
	}
	return w.handler.OnKeyDown(w.key)
}

// Step ticks with the time elapsed since the previous Step. The first Step
// observes zero elapsed time.
func (d *Dispatcher) Step() {
	d.Tick(d.clock.Elapsed())
}

// Run calls Step every interval until ctx is done, then returns ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.clock.Reset()
	d.log.Debug("key watch loop started", zap.Int("keys", len(d.watches)), zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("key watch loop stopped")
			return ctx.Err()
		case <-ticker.C:
			d.Step()
		}
	}
}
