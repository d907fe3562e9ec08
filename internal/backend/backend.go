// Package backend defines the capabilities the automation core consumes from a
// platform input/display provider.
//
// The core never initialises or tears a backend down; the host constructs one,
// hands it to the automation session and closes it on exit.
package backend

import (
	"errors"

	"github.com/vedantwpatil/keypilot/internal/geometry"
)

var (
	// ErrUnsupported is returned when a backend cannot run on this platform or build
	ErrUnsupported = errors.New("backend not supported on this platform")

	// ErrClosed is returned by operations on a backend after Close
	ErrClosed = errors.New("backend closed")

	// ErrUnknownKey is returned when a key name has no keycode
	ErrUnknownKey = errors.New("unknown key")
)

// Button identifies a mouse button.
type Button int

const (
	ButtonLeft Button = iota + 1
	ButtonRight
	ButtonMiddle
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "center"
	default:
		return "unknown"
	}
}

// Pointer reads and warps the pointer.
type Pointer interface {
	PointerPosition() (geometry.Position, error)
	SetPointerPosition(pos geometry.Position) error
}

// Buttons synthesizes mouse clicks.
type Buttons interface {
	Click(button Button) error
}

// Keyboard synthesizes key events and text.
type Keyboard interface {
	KeyDown(key Keycode) error
	KeyUp(key Keycode) error
	// TypeText injects text on a best-effort basis.
	TypeText(text string) error
}

// KeyState reports whether a key is physically held right now.
type KeyState interface {
	IsKeyPressed(key Keycode) (bool, error)
}

// Display answers questions about what is on screen.
type Display interface {
	// ColorAt returns the pixel colour at pos as "#rrggbb".
	ColorAt(pos geometry.Position) (string, error)
	// ScreenIndex returns the index of the screen holding the pointer.
	ScreenIndex() (int, error)
	// ActiveWindowID returns a handle for the focused window. Approximate on
	// some platforms.
	ActiveWindowID() (uint64, error)
}

// Backend is the full capability set of a platform provider.
type Backend interface {
	Pointer
	Buttons
	Keyboard
	KeyState
	Display
	Close() error
}
