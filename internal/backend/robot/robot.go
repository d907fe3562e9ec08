//go:build cgo

package robot

import (
	"fmt"
	"image"
	"sync"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"
	"go.uber.org/zap"

	"github.com/vedantwpatil/keypilot/internal/backend"
	"github.com/vedantwpatil/keypilot/internal/geometry"
	"github.com/vedantwpatil/keypilot/internal/tracking"
)

// Backend drives the real pointer, keyboard and display.
type Backend struct {
	log  *zap.Logger
	keys *tracking.KeyTracker

	mu     sync.Mutex
	closed bool
}

var _ backend.Backend = (*Backend)(nil)

// New initialises the native backend.
func New(opts Options) (*Backend, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("%w: no active display", backend.ErrUnsupported)
	}

	b := &Backend{log: log}
	if opts.TrackKeys {
		b.keys = tracking.StartKeyTracking(log)
	}
	log.Info("native backend ready",
		zap.Int("displays", screenshot.NumActiveDisplays()),
		zap.Bool("track_keys", opts.TrackKeys))
	return b, nil
}

func (b *Backend) check() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return backend.ErrClosed
	}
	return nil
}

// PointerPosition returns the pointer location.
func (b *Backend) PointerPosition() (geometry.Position, error) {
	if err := b.check(); err != nil {
		return geometry.Position{}, err
	}
	x, y := robotgo.Location()
	return geometry.Pt(x, y), nil
}

// SetPointerPosition warps the pointer.
func (b *Backend) SetPointerPosition(pos geometry.Position) error {
	if err := b.check(); err != nil {
		return err
	}
	robotgo.Move(pos.X, pos.Y)
	return nil
}

// Click presses and releases button at the current pointer location.
func (b *Backend) Click(button backend.Button) error {
	if err := b.check(); err != nil {
		return err
	}
	switch button {
	case backend.ButtonLeft, backend.ButtonRight, backend.ButtonMiddle:
	default:
		return fmt.Errorf("click: unsupported button %d", int(button))
	}
	robotgo.Click(button.String())
	return nil
}

// KeyDown synthesizes a key press.
func (b *Backend) KeyDown(key backend.Keycode) error {
	return b.toggle(key, "down")
}

// KeyUp synthesizes a key release.
func (b *Backend) KeyUp(key backend.Keycode) error {
	return b.toggle(key, "up")
}

func (b *Backend) toggle(key backend.Keycode, direction string) error {
	if err := b.check(); err != nil {
		return err
	}
	name, ok := backend.Name(key)
	if !ok {
		return fmt.Errorf("key %s: %w", direction, backend.ErrUnknownKey)
	}
	if err := robotgo.KeyToggle(name, direction); err != nil {
		return fmt.Errorf("key %s %q: %w", direction, name, err)
	}
	return nil
}

// TypeText types text into the focused window.
func (b *Backend) TypeText(text string) error {
	if err := b.check(); err != nil {
		return err
	}
	robotgo.TypeStr(text)
	return nil
}

// IsKeyPressed reports whether the key hook has seen key go down and not yet
// come back up.
func (b *Backend) IsKeyPressed(key backend.Keycode) (bool, error) {
	if err := b.check(); err != nil {
		return false, err
	}
	if b.keys == nil {
		return false, nil
	}
	return b.keys.IsPressed(uint16(key)), nil
}

// ColorAt samples a single pixel.
func (b *Backend) ColorAt(pos geometry.Position) (string, error) {
	if err := b.check(); err != nil {
		return "", err
	}
	img, err := screenshot.CaptureRect(image.Rect(pos.X, pos.Y, pos.X+1, pos.Y+1))
	if err != nil {
		return "", fmt.Errorf("capture pixel at %v: %w", pos, err)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return "", fmt.Errorf("capture pixel at %v: empty image", pos)
	}
	return backend.FormatColor(img.At(bounds.Min.X, bounds.Min.Y)), nil
}

// ScreenIndex returns the index of the display containing the pointer, or 0
// if the pointer is outside every display.
func (b *Backend) ScreenIndex() (int, error) {
	pos, err := b.PointerPosition()
	if err != nil {
		return 0, err
	}
	pt := image.Pt(pos.X, pos.Y)
	for i := 0; i < screenshot.NumActiveDisplays(); i++ {
		if pt.In(screenshot.GetDisplayBounds(i)) {
			return i, nil
		}
	}
	return 0, nil
}

// ActiveWindowID returns the native handle of the focused window.
func (b *Backend) ActiveWindowID() (uint64, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	return uint64(robotgo.GetHandle()), nil
}

// Close stops the key hook. Further calls fail with backend.ErrClosed.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.keys != nil {
		b.keys.Stop()
	}
	b.log.Info("native backend closed")
	return nil
}
