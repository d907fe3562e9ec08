// Package robot is the native backend. Pointer, click, key and text synthesis
// go through robotgo, pixel sampling and screen lookup through screenshot, and
// physical key state comes from a global gohook listener.
//
// It needs cgo. Builds without cgo get a New that returns
// backend.ErrUnsupported.
package robot

import "go.uber.org/zap"

// Name is the backend name used in configuration.
const Name = "robot"

// Options configures the native backend.
type Options struct {
	Logger *zap.Logger

	// TrackKeys starts the global key hook. Without it IsKeyPressed always
	// reports false, which is enough for hosts that only synthesize input.
	TrackKeys bool
}
