//go:build !cgo

package robot

import (
	"fmt"

	"github.com/vedantwpatil/keypilot/internal/backend"
)

// Backend is unavailable without cgo.
type Backend struct {
	backend.Backend
}

// New reports that the native backend was not compiled in.
func New(opts Options) (*Backend, error) {
	return nil, fmt.Errorf("%w: built without cgo", backend.ErrUnsupported)
}
