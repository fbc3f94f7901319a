package flowgrid

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by any raster operation after Close.
	ErrClosed = errors.New("raster is closed")
	// ErrOutOfBounds is returned when a cell coordinate lies outside the
	// raster extent.
	ErrOutOfBounds = errors.New("cell out of raster bounds")
)

// ErrBlockSize indicates a raster whose block dimensions are not exact powers
// of two, which the cell addressing requires.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrBlockSize struct {
	W, H  int
	cause error
}

func (e *ErrBlockSize) Error() string {
	return fmt.Sprintf("block size %dx%d is not a power of two", e.W, e.H)
}

func (e *ErrBlockSize) Unwrap() error { return e.cause }
