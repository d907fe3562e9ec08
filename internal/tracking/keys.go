//go:build cgo

package tracking

import (
	"time"

	hook "github.com/robotn/gohook"
	"go.uber.org/zap"
)

// stopTimeout bounds how long Stop waits for the hook goroutine to drain.
const stopTimeout = time.Second

// KeyTracker feeds global hook key events into a KeySet.
type KeyTracker struct {
	*KeySet

	log  *zap.Logger
	done chan struct{}
}

// StartKeyTracking starts the global hook and returns a tracker reflecting
// physical key state. Only one hook may run per process.
func StartKeyTracking(log *zap.Logger) *KeyTracker {
	if log == nil {
		log = zap.NewNop()
	}

	t := &KeyTracker{
		KeySet: NewKeySet(),
		log:    log,
		done:   make(chan struct{}),
	}

	evChan := hook.Start()
	log.Debug("key hook started")
	go t.run(evChan)
	return t
}

func (t *KeyTracker) run(evChan chan hook.Event) {
	defer close(t.done)
	for e := range evChan {
		t.observe(e)
	}
}

// The hook reports a physical press as KeyHold; KeyDown is the typed
// character and usually carries no keycode.
func (t *KeyTracker) observe(e hook.Event) {
	switch e.Kind {
	case hook.KeyHold, hook.KeyDown:
		if e.Keycode == 0 {
			return
		}
		t.Down(e.Keycode)
	case hook.KeyUp:
		t.Up(e.Keycode)
	}
}

// Stop ends the global hook and waits briefly for the event loop to exit.
func (t *KeyTracker) Stop() {
	hook.End()
	select {
	case <-t.done:
	case <-time.After(stopTimeout):
		t.log.Warn("key hook did not stop in time")
	}
	t.Clear()
	t.log.Debug("key hook stopped")
}
