package keywatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vedantwpatil/keypilot/internal/backend"
	"github.com/vedantwpatil/keypilot/internal/backend/virtual"
	"github.com/vedantwpatil/keypilot/internal/clock"
	"github.com/vedantwpatil/keypilot/internal/geometry"
)

const tick = 50 * time.Millisecond

var (
	f5 = backend.MustParseKey("f5")
	f6 = backend.MustParseKey("f6")
)

type counter struct {
	n int
}

func (c *counter) OnKeyDown(backend.Keycode) error {
	c.n++
	return nil
}

func newFixture(t *testing.T) (*virtual.Backend, *Dispatcher) {
	t.Helper()
	b := virtual.New(geometry.Pt(1, 1))
	return b, NewDispatcher(b)
}

func ticks(d *Dispatcher, n int) {
	for i := 0; i < n; i++ {
		d.Tick(tick)
	}
}

func TestFiresOncePerHeldPress(t *testing.T) {
	b, d := newFixture(t)
	c := &counter{}
	d.Register(f5, c)

	b.Press(f5)
	d.Tick(tick)
	assert.Equal(t, 1, c.n, "fires on the tick the press is first seen")
	state, _ := d.State(f5)
	assert.Equal(t, CoolingDown, state)

	ticks(d, 3)
	state, _ = d.State(f5)
	assert.Equal(t, HeldPastCooldown, state, "150ms cooldown spent after three 50ms ticks")

	ticks(d, 100)
	assert.Equal(t, 1, c.n, "a held key never refires")
	state, _ = d.State(f5)
	assert.Equal(t, HeldPastCooldown, state)
}

func TestRefiresAfterReleaseAndCooldown(t *testing.T) {
	b, d := newFixture(t)
	c := &counter{}
	d.Register(f5, c)

	b.Press(f5)
	d.Tick(tick)
	ticks(d, 3)
	b.Release(f5)
	d.Tick(tick)
	state, _ := d.State(f5)
	assert.Equal(t, Idle, state)

	b.Press(f5)
	d.Tick(tick)
	assert.Equal(t, 2, c.n)
}

// The key is not polled during the cooldown, so a release and re-press that
// both happen inside it look like one continuous press and do not refire.
func TestRepressInsideCooldownIsUnseen(t *testing.T) {
	b, d := newFixture(t)
	c := &counter{}
	d.Register(f5, c)

	b.Press(f5)
	d.Tick(tick)
	b.Release(f5)
	d.Tick(tick)
	b.Press(f5)
	ticks(d, 10)
	assert.Equal(t, 1, c.n)

	b.Release(f5)
	d.Tick(tick)
	b.Press(f5)
	d.Tick(tick)
	assert.Equal(t, 2, c.n, "fires again only after a release is observed")
}

func TestReleaseDuringCooldownObservedAfterIt(t *testing.T) {
	b, d := newFixture(t)
	d.Register(f5, &counter{})

	b.Press(f5)
	d.Tick(tick)
	b.Release(f5)
	ticks(d, 3)
	state, _ := d.State(f5)
	assert.Equal(t, HeldPastCooldown, state, "release not yet polled")

	d.Tick(tick)
	state, _ = d.State(f5)
	assert.Equal(t, Idle, state)
}

func TestNoPollingWhileCoolingDown(t *testing.T) {
	b, d := newFixture(t)
	d.Register(f5, &counter{}, WithCooldown(200*time.Millisecond))

	b.Press(f5)
	d.Tick(tick)
	require.Equal(t, 1, b.KeyQueries())

	ticks(d, 4)
	assert.Equal(t, 1, b.KeyQueries())

	d.Tick(tick)
	assert.Equal(t, 2, b.KeyQueries())
}

func TestLargeElapsedOvershootsCooldown(t *testing.T) {
	b, d := newFixture(t)
	c := &counter{}
	d.Register(f5, c)

	b.Press(f5)
	d.Tick(tick)
	d.Tick(time.Second)
	state, _ := d.State(f5)
	assert.Equal(t, HeldPastCooldown, state)

	b.Release(f5)
	d.Tick(tick)
	b.Press(f5)
	d.Tick(tick)
	assert.Equal(t, 2, c.n)
}

func TestZeroCooldownStillDebounces(t *testing.T) {
	b, d := newFixture(t)
	c := &counter{}
	d.Register(f5, c, WithCooldown(0))

	b.Press(f5)
	ticks(d, 5)
	assert.Equal(t, 1, c.n)

	b.Release(f5)
	d.Tick(tick)
	b.Press(f5)
	d.Tick(tick)
	assert.Equal(t, 2, c.n)
}

func TestWatchesAreIndependent(t *testing.T) {
	b, d := newFixture(t)
	c5, c6 := &counter{}, &counter{}
	d.Register(f5, c5)
	d.Register(f6, c6)

	b.Press(f5)
	d.Tick(tick)
	b.Press(f6)
	d.Tick(tick)

	assert.Equal(t, 1, c5.n)
	assert.Equal(t, 1, c6.n)
	assert.Equal(t, []backend.Keycode{f5, f6}, d.Keys())
}

func TestRegisterReplaces(t *testing.T) {
	b, d := newFixture(t)
	first, second := &counter{}, &counter{}
	d.Register(f5, first)
	d.Register(f6, &counter{})
	d.Register(f5, second)

	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []backend.Keycode{f5, f6}, d.Keys(), "replacement keeps its slot")

	b.Press(f5)
	d.Tick(tick)
	assert.Zero(t, first.n)
	assert.Equal(t, 1, second.n)
}

func TestRegisterResetsState(t *testing.T) {
	b, d := newFixture(t)
	c := &counter{}
	d.Register(f5, c)

	b.Press(f5)
	d.Tick(tick)
	d.Register(f5, c)
	state, _ := d.State(f5)
	assert.Equal(t, Idle, state)

	d.Tick(tick)
	assert.Equal(t, 2, c.n)
}

func TestUnregister(t *testing.T) {
	b, d := newFixture(t)
	c := &counter{}
	d.Register(f5, c)
	d.Register(f6, &counter{})

	assert.True(t, d.Unregister(f5))
	assert.False(t, d.Unregister(f5))
	assert.Equal(t, []backend.Keycode{f6}, d.Keys())

	_, ok := d.State(f5)
	assert.False(t, ok)
	state, ok := d.State(f6)
	assert.True(t, ok)
	assert.Equal(t, Idle, state)

	b.Press(f5)
	d.Tick(tick)
	assert.Zero(t, c.n)
}

func TestHandlerFailuresAreIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b := virtual.New(geometry.Pt(1, 1))
	d := NewDispatcher(b, WithLogger(zap.New(core)))

	d.Register(f5, Func(func() { panic("boom") }))
	d.Register(f6, HandlerFunc(func(backend.Keycode) error { return errors.New("nope") }))
	f7 := backend.MustParseKey("f7")
	c := &counter{}
	d.Register(f7, c)

	b.Press(f5)
	b.Press(f6)
	b.Press(f7)
	require.NotPanics(t, func() { d.Tick(tick) })

	assert.Equal(t, 1, c.n)
	for _, key := range []backend.Keycode{f5, f6} {
		state, _ := d.State(key)
		assert.Equal(t, CoolingDown, state, key)
	}
	assert.Equal(t, 2, logs.FilterMessage("key handler failed").Len())
}

func TestKeyStateErrorLeavesWatchUntouched(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b := virtual.New(geometry.Pt(1, 1))
	d := NewDispatcher(b, WithLogger(zap.New(core)))
	c := &counter{}
	d.Register(f5, c)

	b.Press(f5)
	b.FailWith(errors.New("hook down"))
	d.Tick(tick)
	assert.Zero(t, c.n)
	state, _ := d.State(f5)
	assert.Equal(t, Idle, state)
	assert.Equal(t, 1, logs.FilterMessage("key state query failed").Len())

	b.FailWith(nil)
	d.Tick(tick)
	assert.Equal(t, 1, c.n)
}

func TestNilHandler(t *testing.T) {
	b, d := newFixture(t)
	d.Register(f5, nil)
	b.Press(f5)
	assert.NotPanics(t, func() { d.Tick(tick) })
	state, _ := d.State(f5)
	assert.Equal(t, CoolingDown, state)
}

func TestStepUsesOwnClock(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 3, 14, 9, 26, 0, 0, time.UTC))
	b := virtual.New(geometry.Pt(1, 1))
	d := NewDispatcher(b, WithTimeSource(fake.Now))
	c := &counter{}
	d.Register(f5, c, WithCooldown(100*time.Millisecond))

	b.Press(f5)
	d.Step()
	require.Equal(t, 1, c.n)

	b.Release(f5)
	fake.Advance(60 * time.Millisecond)
	d.Step()
	state, _ := d.State(f5)
	assert.Equal(t, CoolingDown, state)

	fake.Advance(60 * time.Millisecond)
	d.Step()
	state, _ = d.State(f5)
	assert.Equal(t, HeldPastCooldown, state)

	d.Step()
	state, _ = d.State(f5)
	assert.Equal(t, Idle, state)
}

func TestRun(t *testing.T) {
	b, d := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fired := make(chan struct{})
	d.Register(f5, Func(func() {
		close(fired)
		cancel()
	}))
	b.Press(f5)

	err := d.Run(ctx, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	select {
	case <-fired:
	default:
		t.Fatal("handler did not fire")
	}
}

func TestRunRejectsBadInterval(t *testing.T) {
	_, d := newFixture(t)
	assert.ErrorIs(t, d.Run(context.Background(), 0), ErrInvalidInterval)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "cooling_down", CoolingDown.String())
	assert.Equal(t, "held_past_cooldown", HeldPastCooldown.String())
}

func TestHandlerUnregisteringItselfKeepsOrder(t *testing.T) {
	b, d := newFixture(t)
	a := backend.MustParseKey("a")
	f7 := backend.MustParseKey("f7")

	fired := map[backend.Keycode]int{}
	record := func(k backend.Keycode) error {
		fired[k]++
		return nil
	}
	d.Register(a, HandlerFunc(func(k backend.Keycode) error {
		d.Unregister(k)
		return record(k)
	}))
	d.Register(f5, HandlerFunc(record))
	d.Register(f7, HandlerFunc(record))

	b.Press(a)
	b.Press(f5)
	b.Press(f7)
	d.Tick(tick)

	assert.Equal(t, map[backend.Keycode]int{a: 1, f5: 1, f7: 1}, fired)
	assert.Equal(t, []backend.Keycode{f5, f7}, d.Keys())
	for _, k := range []backend.Keycode{f5, f7} {
		w := d.watches[d.index[k]]
		assert.Equal(t, DefaultCooldown, w.remaining, "%s cooldown untouched on the tick it fired", k)
	}

	assert.Nil(t, d.watches[:3][2], "vacated slot is cleared")
}

func TestHandlerUnregisteringLaterKeySkipsIt(t *testing.T) {
	b, d := newFixture(t)
	c := &counter{}
	d.Register(f5, HandlerFunc(func(backend.Keycode) error {
		d.Unregister(f6)
		return nil
	}))
	d.Register(f6, c)

	b.Press(f5)
	b.Press(f6)
	d.Tick(tick)

	assert.Zero(t, c.n)
	assert.Equal(t, []backend.Keycode{f5}, d.Keys())
}

func TestHandlerRegisteringDuringTickWaitsForNextTick(t *testing.T) {
	b, d := newFixture(t)
	c := &counter{}
	d.Register(f5, HandlerFunc(func(backend.Keycode) error {
		d.Register(f6, c)
		return nil
	}))

	b.Press(f5)
	b.Press(f6)
	d.Tick(tick)
	assert.Zero(t, c.n)

	d.Tick(tick)
	assert.Equal(t, 1, c.n)
}
