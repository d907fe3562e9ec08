// Package virtual provides an in-memory backend. Headless hosts use it as a
// stand-in for a real display; tests use it to script key presses, paint
// pixels and simulate something else grabbing the pointer.
package virtual

import (
	"fmt"
	"sync"

	"github.com/vedantwpatil/keypilot/internal/backend"
	"github.com/vedantwpatil/keypilot/internal/geometry"
)

// DefaultColor is reported for pixels that were never painted.
const DefaultColor = "#000000"

// Backend is a thread-safe in-memory implementation of backend.Backend.
type Backend struct {
	mu       sync.Mutex
	pointer  geometry.Position
	pressed  map[backend.Keycode]bool
	pixels   map[geometry.Position]string
	screen   int
	window   uint64
	closed   bool
	failWith error

	moves   []geometry.Position
	clicks  []backend.Button
	keys    []KeyEvent
	typed   []string
	onMove  func(n int, pos geometry.Position) geometry.Position
	queries int
}

// KeyEvent records a synthesized key transition.
type KeyEvent struct {
	Key  backend.Keycode
	Down bool
}

// New returns a backend with the pointer at start.
func New(start geometry.Position) *Backend {
	return &Backend{
		pointer: start,
		pressed: make(map[backend.Keycode]bool),
		pixels:  make(map[geometry.Position]string),
	}
}

var _ backend.Backend = (*Backend)(nil)

// PointerPosition returns the current pointer position.
func (b *Backend) PointerPosition() (geometry.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.errLocked(); err != nil {
		return geometry.Position{}, err
	}
	return b.pointer, nil
}

// SetPointerPosition warps the pointer and records the command. When an
// OnMove hook is installed, the pointer lands wherever the hook says.
func (b *Backend) SetPointerPosition(pos geometry.Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.errLocked(); err != nil {
		return err
	}
	b.moves = append(b.moves, pos)
	b.pointer = pos
	if b.onMove != nil {
		b.pointer = b.onMove(len(b.moves), pos)
	}
	return nil
}

// Click records a button click.
func (b *Backend) Click(button backend.Button) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.errLocked(); err != nil {
		return err
	}
	b.clicks = append(b.clicks, button)
	return nil
}

// KeyDown marks key as held and records the event.
func (b *Backend) KeyDown(key backend.Keycode) error {
	return b.toggle(key, true)
}

// KeyUp releases key and records the event.
func (b *Backend) KeyUp(key backend.Keycode) error {
	return b.toggle(key, false)
}

func (b *Backend) toggle(key backend.Keycode, down bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.errLocked(); err != nil {
		return err
	}
	b.keys = append(b.keys, KeyEvent{Key: key, Down: down})
	b.pressed[key] = down
	return nil
}

// TypeText records injected text.
func (b *Backend) TypeText(text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.errLocked(); err != nil {
		return err
	}
	b.typed = append(b.typed, text)
	return nil
}

// IsKeyPressed reports whether key is currently held.
func (b *Backend) IsKeyPressed(key backend.Keycode) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.errLocked(); err != nil {
		return false, err
	}
	b.queries++
	return b.pressed[key], nil
}

// ColorAt returns the painted colour at pos, or DefaultColor.
func (b *Backend) ColorAt(pos geometry.Position) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.errLocked(); err != nil {
		return "", err
	}
	if c, ok := b.pixels[pos]; ok {
		return c, nil
	}
	return DefaultColor, nil
}

// ScreenIndex returns the configured screen index.
func (b *Backend) ScreenIndex() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.errLocked(); err != nil {
		return 0, err
	}
	return b.screen, nil
}

// ActiveWindowID returns the configured window handle.
func (b *Backend) ActiveWindowID() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.errLocked(); err != nil {
		return 0, err
	}
	return b.window, nil
}

// Close marks the backend closed. Later calls fail with backend.ErrClosed.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *Backend) errLocked() error {
	if b.closed {
		return backend.ErrClosed
	}
	return b.failWith
}

// Press simulates the user holding key down.
func (b *Backend) Press(key backend.Keycode) {
	b.mu.Lock()
	b.pressed[key] = true
	b.mu.Unlock()
}

// Release simulates the user letting go of key.
func (b *Backend) Release(key backend.Keycode) {
	b.mu.Lock()
	delete(b.pressed, key)
	b.mu.Unlock()
}

// Nudge moves the pointer without recording a command, as if the user or
// another program had moved it.
func (b *Backend) Nudge(pos geometry.Position) {
	b.mu.Lock()
	b.pointer = pos
	b.mu.Unlock()
}

// OnMove installs a hook run after every SetPointerPosition. It receives the
// 1-based command number and the commanded position and returns where the
// pointer actually ends up.
func (b *Backend) OnMove(fn func(n int, pos geometry.Position) geometry.Position) {
	b.mu.Lock()
	b.onMove = fn
	b.mu.Unlock()
}

// Paint sets the colour reported for pos. The colour is normalised to
// lowercase "#rrggbb". It panics on an invalid colour.
func (b *Backend) Paint(pos geometry.Position, color string) {
	normalized, err := backend.NormalizeColor(color)
	if err != nil {
		panic(fmt.Sprintf("virtual: paint %v: %v", pos, err))
	}
	b.mu.Lock()
	b.pixels[pos] = normalized
	b.mu.Unlock()
}

// SetScreen sets the reported screen index.
func (b *Backend) SetScreen(index int) {
	b.mu.Lock()
	b.screen = index
	b.mu.Unlock()
}

// SetWindow sets the reported active window handle.
func (b *Backend) SetWindow(id uint64) {
	b.mu.Lock()
	b.window = id
	b.mu.Unlock()
}

// FailWith makes every capability call return err. A nil err restores normal
// behaviour.
func (b *Backend) FailWith(err error) {
	b.mu.Lock()
	b.failWith = err
	b.mu.Unlock()
}

// Moves returns every commanded pointer position in order.
func (b *Backend) Moves() []geometry.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]geometry.Position(nil), b.moves...)
}

// Clicks returns every clicked button in order.
func (b *Backend) Clicks() []backend.Button {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backend.Button(nil), b.clicks...)
}

// KeyEvents returns every synthesized key transition in order.
func (b *Backend) KeyEvents() []KeyEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]KeyEvent(nil), b.keys...)
}

// Typed returns every injected text in order.
func (b *Backend) Typed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.typed...)
}

// KeyQueries returns how many times IsKeyPressed has been called.
func (b *Backend) KeyQueries() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries
}
