package entity

import (
	"errors"
	"fmt"
)

// ErrNoReferenceImage aborts a run before any generation work starts:
// without a reference there is nothing valid to animate with.
var ErrNoReferenceImage = errors.New("no reference image found in source image folder")

// ErrUnsupportedResult rejects generation results that cannot be
// normalized into a local artifact path, remote URLs included.
var ErrUnsupportedResult = errors.New("unsupported generation result shape")

// GenerationError reports an exhausted retry budget on the generation
// call. It wraps the last error observed.
type GenerationError struct {
	Endpoint string
	Attempts int
	Last     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation via %s failed after %d attempts: %v", e.Endpoint, e.Attempts, e.Last)
}

func (e *GenerationError) Unwrap() error { return e.Last }
