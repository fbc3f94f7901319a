package flowgrid

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/flowgrid/flowgrid/gridio"
	"github.com/flowgrid/flowgrid/internal/blocks"
	"github.com/flowgrid/flowgrid/internal/cache"
)

// ManagedRaster provides random cell access to a block-tiled raster while
// keeping a bounded number of blocks in memory. Blocks load lazily on first
// touch and are evicted in LRU order; when the raster is writable, modified
// blocks are written back before their buffer is released.
//
// A ManagedRaster is not safe for concurrent use. Rasters touched by routing
// algorithms are owned by exactly one goroutine; serialization across
// processes sharing a file is the caller's responsibility.
type ManagedRaster struct {
	path     string
	bandID   int
	writable bool

	ds     gridio.Dataset
	band   gridio.Band
	layout *blocks.Layout

	cache *cache.LRU[int, []float64]
	dirty *roaring.Bitmap // block indices written since load; writable only

	nodata    float64
	hasNodata bool
	geo       [6]float64

	logger *slog.Logger
	closed bool
}

// Open opens band bandID (1-based) of the raster at path through the driver
// registered for the path's extension. The raster must be block-tiled with
// power-of-two block dimensions.
func Open(path string, bandID int, writable bool, opts ...Option) (*ManagedRaster, error) {
	ds, err := gridio.Open(path, writable)
	if err != nil {
		return nil, err
	}
	r, err := OpenDataset(ds, bandID, writable, opts...)
	if err != nil {
		ds.Close()
		return nil, err
	}
	r.path = path
	return r, nil
}

// OpenDataset wraps an already-open dataset. The ManagedRaster takes
// ownership of ds and closes it on Close.
func OpenDataset(ds gridio.Dataset, bandID int, writable bool, opts ...Option) (*ManagedRaster, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	band, err := ds.Band(bandID)
	if err != nil {
		return nil, err
	}

	bw, bh := band.BlockSize()
	rx, ry := ds.RasterSize()
	layout, err := blocks.NewLayout(rx, ry, bw, bh)
	if err != nil {
		if errors.Is(err, blocks.ErrNotPowerOfTwo) {
			return nil, &ErrBlockSize{W: bw, H: bh, cause: err}
		}
		return nil, err
	}

	r := &ManagedRaster{
		bandID:   bandID,
		writable: writable,
		ds:       ds,
		band:     band,
		layout:   layout,
		cache:    cache.New[int, []float64](o.cacheBlocks),
		geo:      ds.GeoTransform(),
		logger:   o.logger,
	}
	r.nodata, r.hasNodata = band.NoData()
	if writable {
		r.dirty = roaring.New()
	}
	return r, nil
}

// Get returns the value of the cell at (x, y), loading its block on a miss.
func (r *ManagedRaster) Get(x, y int) (float64, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if !r.layout.InBounds(x, y) {
		return 0, fmt.Errorf("%w: (%d, %d)", ErrOutOfBounds, x, y)
	}

	bi := r.layout.BlockIndex(x, y)
	buf, ok := r.cache.Get(bi)
	if !ok {
		var err error
		if buf, err = r.loadBlock(bi); err != nil {
			return 0, err
		}
	}
	return buf[r.layout.CellOffset(x, y, bi)], nil
}

// Set stores v into the cell at (x, y), loading its block on a miss. On a
// writable raster the block is marked dirty and written back on eviction or
// Close.
func (r *ManagedRaster) Set(x, y int, v float64) error {
	if r.closed {
		return ErrClosed
	}
	if !r.layout.InBounds(x, y) {
		return fmt.Errorf("%w: (%d, %d)", ErrOutOfBounds, x, y)
	}

	bi := r.layout.BlockIndex(x, y)
	buf, ok := r.cache.Get(bi)
	if !ok {
		var err error
		if buf, err = r.loadBlock(bi); err != nil {
			return err
		}
	}
	buf[r.layout.CellOffset(x, y, bi)] = v
	if r.writable {
		r.dirty.Add(uint32(bi))
	}
	return nil
}

// loadBlock reads the block-aligned window for bi into a fresh buffer and
// inserts it, flushing whichever dirty block the insert evicts.
func (r *ManagedRaster) loadBlock(bi int) ([]float64, error) {
	xoff, yoff, w, h := r.layout.Window(bi)
	buf := make([]float64, w*h)
	if err := r.band.ReadWindow(xoff, yoff, w, h, buf); err != nil {
		return nil, fmt.Errorf("load block %d: %w", bi, err)
	}
	r.logger.Debug("block loaded", "block", bi, "window", []int{xoff, yoff, w, h})

	for _, ev := range r.cache.Put(bi, buf) {
		if err := r.releaseBlock(ev.Key, ev.Value); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// releaseBlock is the single exit path for an evicted buffer: flush if the
// raster is writable and the block is dirty, then drop.
func (r *ManagedRaster) releaseBlock(bi int, buf []float64) error {
	if !r.writable || !r.dirty.Contains(uint32(bi)) {
		r.logger.Debug("block dropped", "block", bi)
		return nil
	}
	return r.flushBlock(bi, buf)
}

// flushBlock writes a dirty block's clipped window back to storage and clears
// its dirty bit.
func (r *ManagedRaster) flushBlock(bi int, buf []float64) error {
	xoff, yoff, w, h := r.layout.Window(bi)
	if err := r.band.WriteWindow(xoff, yoff, w, h, buf); err != nil {
		return fmt.Errorf("flush block %d: %w", bi, err)
	}
	r.dirty.Remove(uint32(bi))
	r.logger.Debug("block flushed", "block", bi, "window", []int{xoff, yoff, w, h})
	return nil
}

// Close flushes every resident dirty block (writable mode), drops all
// buffers, and closes the underlying dataset. It is idempotent; errors from
// individual flushes are joined so one failed write does not mask another.
func (r *ManagedRaster) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if r.writable {
		r.cache.Range(func(bi int, buf []float64) bool {
			if r.dirty.Contains(uint32(bi)) {
				if err := r.flushBlock(bi, buf); err != nil {
					r.logger.Error("flush on close failed", "block", bi, "err", err)
					errs = append(errs, err)
				}
			}
			return true
		})
	}
	r.cache.Clear()

	if err := r.ds.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Size returns the raster dimensions in cells.
func (r *ManagedRaster) Size() (x, y int) { return r.layout.RasterX, r.layout.RasterY }

// BlockSize returns the nominal block dimensions.
func (r *ManagedRaster) BlockSize() (w, h int) { return r.layout.BlockW, r.layout.BlockH }

// InBounds reports whether (x, y) lies within the raster extent.
func (r *ManagedRaster) InBounds(x, y int) bool { return r.layout.InBounds(x, y) }

// NoData returns the band's nodata value, if one is defined.
func (r *ManagedRaster) NoData() (float64, bool) { return r.nodata, r.hasNodata }

// GeoTransform returns the dataset's affine geotransform, read once at open.
func (r *ManagedRaster) GeoTransform() [6]float64 { return r.geo }

// Path returns the path the raster was opened from, or "" for OpenDataset.
func (r *ManagedRaster) Path() string { return r.path }

// BandID returns the 1-based band index.
func (r *ManagedRaster) BandID() int { return r.bandID }

// Writable reports whether the raster was opened for writing.
func (r *ManagedRaster) Writable() bool { return r.writable }

// ResidentBlocks returns the number of blocks currently cached.
func (r *ManagedRaster) ResidentBlocks() int { return r.cache.Len() }

// DirtyBlocks returns the number of blocks modified since their last flush.
func (r *ManagedRaster) DirtyBlocks() int {
	if r.dirty == nil {
		return 0
	}
	return int(r.dirty.GetCardinality())
}
