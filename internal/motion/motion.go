// Package motion moves the pointer toward a destination, either in fixed-size
// steps or interpolated over wall-clock time, and gives up as soon as the
// pointer is found somewhere it was not sent.
package motion

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vedantwpatil/keypilot/internal/backend"
	"github.com/vedantwpatil/keypilot/internal/clock"
	"github.com/vedantwpatil/keypilot/internal/geometry"
)

var (
	// ErrInvalidSpeed is returned for a speed that is not a positive number
	ErrInvalidSpeed = errors.New("speed must be positive")

	// ErrInvalidTolerance is returned for a negative or NaN tolerance
	ErrInvalidTolerance = errors.New("tolerance must not be negative")
)

// Mode selects how a move advances.
type Mode int

const (
	// ModeStep advances a fixed number of pixels per iteration.
	ModeStep Mode = iota
	// ModeLerp advances a fraction of the path proportional to elapsed time.
	ModeLerp
)

func (m Mode) String() string {
	switch m {
	case ModeStep:
		return "step"
	case ModeLerp:
		return "lerp"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "step" or "lerp".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "step", "":
		return ModeStep, nil
	case "lerp":
		return ModeLerp, nil
	default:
		return 0, fmt.Errorf("unknown motion mode %q", s)
	}
}

// Target describes a move.
type Target struct {
	Dest geometry.Position
	// Speed is pixels per step in ModeStep and path fractions per second in
	// ModeLerp.
	Speed float64
	// Tolerance is the percentage the observed pointer may drift from the last
	// commanded position before the move is abandoned.
	Tolerance float64
}

// Validate checks the target's preconditions.
func (t Target) Validate() error {
	if !(t.Speed > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, t.Speed)
	}
	if !(t.Tolerance >= 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTolerance, t.Tolerance)
	}
	return nil
}

// Controller moves the pointer through a backend.
//
// Moves block the calling goroutine until the destination is reached or the
// move is interfered with. A Controller is not safe for concurrent moves.
type Controller struct {
	pointer backend.Pointer
	now     func() time.Time
	log     *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithTimeSource sets the time source for interpolated moves.
func WithTimeSource(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController returns a Controller driving pointer.
func NewController(pointer backend.Pointer, opts ...Option) *Controller {
	c := &Controller{
		pointer: pointer,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Move runs t in the given mode.
func (c *Controller) Move(t Target, mode Mode) (bool, error) {
	switch mode {
	case ModeStep:
		return c.MoveTo(t.Dest, t.Speed, t.Tolerance)
	case ModeLerp:
		return c.LerpTo(t.Dest, t.Speed, t.Tolerance)
	default:
		return false, fmt.Errorf("move: unknown mode %v", mode)
	}
}

// MoveTo walks the pointer to dest in floor(distance/speed) equal steps, then
// places it exactly on dest. It returns false without issuing further commands
// if the pointer is ever found outside tolerance percent of where it was last
// sent.
//
// Step timing follows the caller's scheduling; use LerpTo for a consistent
// speed.
func (c *Controller) MoveTo(dest geometry.Position, speed, tolerance float64) (bool, error) {
	if err := (Target{Dest: dest, Speed: speed, Tolerance: tolerance}).Validate(); err != nil {
		return false, err
	}

	start, err := c.pointer.PointerPosition()
	if err != nil {
		return false, fmt.Errorf("move to %v: read start: %w", dest, err)
	}

	dist := int(geometry.Distance(start, dest))
	steps := stepCount(dist, speed)
	c.log.Debug("move started",
		zap.Stringer("from", start),
		zap.Stringer("to", dest),
		zap.Int("steps", steps))

	last := start
	for i := 0; i < steps; i++ {
		ok, err := c.inPlace(last, tolerance)
		if err != nil || !ok {
			return false, err
		}

		last = geometry.Lerp(start, dest, float64(i)/float64(steps))
		if err := c.set(last); err != nil {
			return false, err
		}
	}

	if err := c.set(dest); err != nil {
		return false, err
	}
	return true, nil
}

// LerpTo interpolates the pointer from its current position to dest, covering
// speed path-fractions per second of wall-clock time, then places it exactly
// on dest. Interference is detected as in MoveTo.
func (c *Controller) LerpTo(dest geometry.Position, speed, tolerance float64) (bool, error) {
	if err := (Target{Dest: dest, Speed: speed, Tolerance: tolerance}).Validate(); err != nil {
		return false, err
	}

	start, err := c.pointer.PointerPosition()
	if err != nil {
		return false, fmt.Errorf("lerp to %v: read start: %w", dest, err)
	}
	c.log.Debug("lerp started",
		zap.Stringer("from", start),
		zap.Stringer("to", dest),
		zap.Float64("speed", speed))

	// Each move owns its clock so an outer tick loop keeps its own interval.
	clk := clock.New(c.now)
	clk.Reset()

	last := start
	alpha := 0.0
	for alpha < 1 {
		ok, err := c.inPlace(last, tolerance)
		if err != nil || !ok {
			return false, err
		}

		last = geometry.Lerp(start, dest, alpha)
		if err := c.set(last); err != nil {
			return false, err
		}
		alpha += speed * clk.ElapsedSeconds()
	}

	if err := c.set(dest); err != nil {
		return false, err
	}
	return true, nil
}

// inPlace reports whether the pointer is still within tolerance of expected.
func (c *Controller) inPlace(expected geometry.Position, tolerance float64) (bool, error) {
	actual, err := c.pointer.PointerPosition()
	if err != nil {
		return false, fmt.Errorf("read pointer: %w", err)
	}
	if !geometry.IsWithinTolerance(expected, actual, tolerance) {
		c.log.Info("move interrupted",
			zap.Stringer("expected", expected),
			zap.Stringer("actual", actual),
			zap.Float64("tolerance", tolerance))
		return false, nil
	}
	return true, nil
}

func (c *Controller) set(pos geometry.Position) error {
	if err := c.pointer.SetPointerPosition(pos); err != nil {
		return fmt.Errorf("set pointer to %v: %w", pos, err)
	}
	return nil
}

// maxSteps caps MoveTo so a vanishingly small speed cannot overflow the step
// count.
const maxSteps = math.MaxInt32

func stepCount(dist int, speed float64) int {
	n := math.Floor(float64(dist) / speed)
	if n > maxSteps {
		return maxSteps
	}
	return int(n)
}
