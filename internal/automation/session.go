// Package automation bundles a backend with a motion controller and a key-watch
// dispatcher into one session the host owns and passes around.
package automation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vedantwpatil/keypilot/internal/backend"
	"github.com/vedantwpatil/keypilot/internal/geometry"
	"github.com/vedantwpatil/keypilot/internal/keywatch"
	"github.com/vedantwpatil/keypilot/internal/motion"
)

// Options configures a Session.
type Options struct {
	Logger *zap.Logger
	// TimeSource drives interpolated moves and the key-watch loop. Nil uses
	// the monotonic wall clock.
	TimeSource func() time.Time
}

// Session is one automation context over a backend.
//
// Sessions hold no backend resources of their own: the host opens the backend
// before creating a Session and closes it afterwards.
type Session struct {
	backend  backend.Backend
	log      *zap.Logger
	motion   *motion.Controller
	watchers *keywatch.Dispatcher
}

// New returns a Session driving b.
func New(b backend.Backend, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Session{
		backend: b,
		log:     log,
		motion: motion.NewController(b,
			motion.WithLogger(log.Named("motion")),
			motion.WithTimeSource(opts.TimeSource)),
		watchers: keywatch.NewDispatcher(b,
			keywatch.WithLogger(log.Named("keywatch")),
			keywatch.WithTimeSource(opts.TimeSource)),
	}
}

// Backend returns the underlying backend.
func (s *Session) Backend() backend.Backend {
	return s.backend
}

// Motion returns the session's motion controller.
func (s *Session) Motion() *motion.Controller {
	return s.motion
}

// Watchers returns the session's key-watch dispatcher.
func (s *Session) Watchers() *keywatch.Dispatcher {
	return s.watchers
}

// PointerPosition returns the pointer location.
func (s *Session) PointerPosition() (geometry.Position, error) {
	return s.backend.PointerPosition()
}

// PointerX returns the pointer's x coordinate.
func (s *Session) PointerX() (int, error) {
	pos, err := s.backend.PointerPosition()
	return pos.X, err
}

// PointerY returns the pointer's y coordinate.
func (s *Session) PointerY() (int, error) {
	pos, err := s.backend.PointerPosition()
	return pos.Y, err
}

// SetPointerPosition warps the pointer to pos.
func (s *Session) SetPointerPosition(pos geometry.Position) error {
	return s.backend.SetPointerPosition(pos)
}

// SetX moves the pointer horizontally, keeping its y coordinate.
func (s *Session) SetX(x int) error {
	pos, err := s.backend.PointerPosition()
	if err != nil {
		return err
	}
	return s.backend.SetPointerPosition(geometry.Pt(x, pos.Y))
}

// SetY moves the pointer vertically, keeping its x coordinate.
func (s *Session) SetY(y int) error {
	pos, err := s.backend.PointerPosition()
	if err != nil {
		return err
	}
	return s.backend.SetPointerPosition(geometry.Pt(pos.X, y))
}

// LogPointerPosition logs the pointer location at info level.
func (s *Session) LogPointerPosition() error {
	pos, err := s.backend.PointerPosition()
	if err != nil {
		return err
	}
	s.log.Info("pointer position", zap.Int("x", pos.X), zap.Int("y", pos.Y))
	return nil
}

// MoveTo steps the pointer to dest. See motion.Controller.MoveTo.
func (s *Session) MoveTo(dest geometry.Position, speed, tolerance float64) (bool, error) {
	return s.motion.MoveTo(dest, speed, tolerance)
}

// LerpTo interpolates the pointer to dest. See motion.Controller.LerpTo.
func (s *Session) LerpTo(dest geometry.Position, speed, tolerance float64) (bool, error) {
	return s.motion.LerpTo(dest, speed, tolerance)
}

// LeftClick clicks the primary button.
func (s *Session) LeftClick() error {
	return s.backend.Click(backend.ButtonLeft)
}

// RightClick clicks the secondary button.
func (s *Session) RightClick() error {
	return s.backend.Click(backend.ButtonRight)
}

// ColorAt returns the colour of the pixel at pos as "#rrggbb".
func (s *Session) ColorAt(pos geometry.Position) (string, error) {
	return s.backend.ColorAt(pos)
}

// ColorAtPointer returns the colour of the pixel under the pointer.
func (s *Session) ColorAtPointer() (string, error) {
	pos, err := s.backend.PointerPosition()
	if err != nil {
		return "", err
	}
	return s.backend.ColorAt(pos)
}

// ColorAtEquals reports whether the pixel at pos has colour want. Both sides
// are compared case-insensitively and want may omit the leading '#'.
func (s *Session) ColorAtEquals(pos geometry.Position, want string) (bool, error) {
	expected, err := backend.NormalizeColor(want)
	if err != nil {
		return false, err
	}
	got, err := s.backend.ColorAt(pos)
	if err != nil {
		return false, err
	}
	actual, err := backend.NormalizeColor(got)
	if err != nil {
		return false, fmt.Errorf("backend colour at %v: %w", pos, err)
	}
	return actual == expected, nil
}

// ColorAtPointerEquals is ColorAtEquals at the pointer location.
func (s *Session) ColorAtPointerEquals(want string) (bool, error) {
	pos, err := s.backend.PointerPosition()
	if err != nil {
		return false, err
	}
	return s.ColorAtEquals(pos, want)
}

// PressKey holds key down for hold, then releases it. If ctx ends first the
// key is still released and ctx's error is returned.
func (s *Session) PressKey(ctx context.Context, key backend.Keycode, hold time.Duration) error {
	if err := s.backend.KeyDown(key); err != nil {
		return err
	}

	var waitErr error
	if hold > 0 {
		timer := time.NewTimer(hold)
		select {
		case <-ctx.Done():
			waitErr = ctx.Err()
		case <-timer.C:
		}
		timer.Stop()
	}

	if err := s.backend.KeyUp(key); err != nil {
		return err
	}
	return waitErr
}

// TypeText types text into the focused window.
func (s *Session) TypeText(text string) error {
	return s.backend.TypeText(text)
}

// Screen returns the index of the screen holding the pointer.
func (s *Session) Screen() (int, error) {
	return s.backend.ScreenIndex()
}

// ActiveWindow returns the focused window's handle.
func (s *Session) ActiveWindow() (uint64, error) {
	return s.backend.ActiveWindowID()
}

// OnKeyDown registers h to run once per press of key.
func (s *Session) OnKeyDown(key backend.Keycode, h keywatch.Handler, opts ...keywatch.WatchOption) {
	s.watchers.Register(key, h, opts...)
}

// Tick advances key watches by elapsed.
func (s *Session) Tick(elapsed time.Duration) {
	s.watchers.Tick(elapsed)
}

// Run polls key watches every interval until ctx is done.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	return s.watchers.Run(ctx, interval)
}
