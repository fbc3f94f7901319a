package gridio

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownDriver is returned by Open when no driver claims the path's
// extension.
var ErrUnknownDriver = errors.New("gridio: no driver registered for extension")

// ErrInvalidBand indicates a band index outside the dataset's band range.
//
// Band indices are 1-based.
type ErrInvalidBand struct {
	Band  int
	Count int
}

func (e *ErrInvalidBand) Error() string {
	return fmt.Sprintf("gridio: band %d out of range [1, %d]", e.Band, e.Count)
}

// Dataset is an open raster container.
type Dataset interface {
	// RasterSize returns the raster dimensions in cells.
	RasterSize() (x, y int)
	// Band returns the 1-based band. Implementations return *ErrInvalidBand
	// for indices out of range.
	Band(id int) (Band, error)
	// GeoTransform returns the affine transform from cell space to
	// georeferenced space, in the conventional 6-coefficient layout.
	GeoTransform() [6]float64
	// Close releases the dataset. It must be idempotent.
	Close() error
}

// Band is a single band of cell values, addressed by windows in cell space.
// Window coordinates must lie within the raster extent; the buffer is
// row-major with stride w.
type Band interface {
	// BlockSize returns the band's natural tile dimensions.
	BlockSize() (w, h int)
	// ActualBlockSize returns the dimensions of the block at block
	// coordinates (bxi, byi), clipped at the raster edges.
	ActualBlockSize(bxi, byi int) (w, h int)
	// NoData returns the band's nodata value, if one is defined.
	NoData() (value float64, ok bool)
	// ReadWindow fills buf (len >= w*h) with the window's cell values.
	ReadWindow(xoff, yoff, w, h int, buf []float64) error
	// WriteWindow stores buf (len >= w*h) into the window.
	WriteWindow(xoff, yoff, w, h int, buf []float64) error
}

// Driver opens the raster container at path. Drivers self-register in their
// package init, keyed by filename extension.
type Driver func(path string, writable bool) (Dataset, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available under the given extension (".fgr").
// It panics if ext is empty or already registered, mirroring database/sql.
func Register(ext string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if ext == "" || d == nil {
		panic("gridio: Register with empty extension or nil driver")
	}
	if _, dup := drivers[ext]; dup {
		panic("gridio: Register called twice for extension " + ext)
	}
	drivers[ext] = d
}

// Drivers returns the sorted list of registered extensions.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	list := make([]string, 0, len(drivers))
	for ext := range drivers {
		list = append(list, ext)
	}
	sort.Strings(list)
	return list
}

// Open dispatches to the driver registered for the path's extension.
func Open(path string, writable bool) (Dataset, error) {
	ext := strings.ToLower(filepath.Ext(path))
	driversMu.RLock()
	d, ok := drivers[ext]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, ext)
	}
	return d(path, writable)
}
