// Package clock provides a reset-on-read elapsed time sampler.
//
// A Clock answers "how long since you were last asked". Every read consumes the
// interval, so each long-lived consumer (a key-watch loop, a single in-flight
// interpolated move) must own its own Clock.
package clock

import "time"

// Clock samples monotonic elapsed time. The zero value is ready to use.
//
// The first read after construction or Reset returns 0 and establishes the
// baseline for later reads.
type Clock struct {
	now    func() time.Time
	last   time.Time
	primed bool
}

// New returns a Clock reading time from now. A nil now uses time.Now, whose
// monotonic reading keeps results unaffected by wall clock changes.
func New(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Reset discards the current baseline and re-anchors it at the present moment.
func (c *Clock) Reset() {
	c.last = c.read()
	c.primed = true
}

// Elapsed returns the time since the previous read and moves the baseline to now.
func (c *Clock) Elapsed() time.Duration {
	if !c.primed {
		c.Reset()
		return 0
	}
	now := c.read()
	elapsed := now.Sub(c.last)
	c.last = now
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// ElapsedSeconds is Elapsed expressed in seconds.
func (c *Clock) ElapsedSeconds() float64 {
	return c.Elapsed().Seconds()
}

// ElapsedMillis is Elapsed expressed in milliseconds.
func (c *Clock) ElapsedMillis() float64 {
	return float64(c.Elapsed()) / float64(time.Millisecond)
}

func (c *Clock) read() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Fake is a manually advanced time source for driving a Clock in tests and
// simulations.
type Fake struct {
	t time.Time
}

// NewFake returns a Fake starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{t: start}
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	return f.t
}

// Advance moves the fake time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.t = f.t.Add(d)
}

// Ticking returns a time source that advances the fake by step before every
// read, so each read of a Clock built on it observes exactly step.
func (f *Fake) Ticking(step time.Duration) func() time.Time {
	return func() time.Time {
		f.Advance(step)
		return f.t
	}
}
