package gridio

import (
	"errors"
	"fmt"
)

// MemConfig describes an in-memory dataset.
type MemConfig struct {
	Width, Height  int
	BlockW, BlockH int
	Bands          int // defaults to 1
	NoData         *float64
	GeoTransform   [6]float64
}

// Window records one window I/O call against a MemBand.
type Window struct {
	XOff, YOff, W, H int
}

// MemDataset is an in-memory Dataset. It backs unit tests throughout the
// module and the runnable examples: bands log every window read and write so
// tests can assert that a dirty block is flushed exactly once and a clean
// block never.
type MemDataset struct {
	cfg    MemConfig
	bands  []*MemBand
	closed bool
}

// NewMemDataset allocates a zero-filled in-memory dataset.
func NewMemDataset(cfg MemConfig) *MemDataset {
	if cfg.Bands <= 0 {
		cfg.Bands = 1
	}
	ds := &MemDataset{cfg: cfg}
	for i := 0; i < cfg.Bands; i++ {
		ds.bands = append(ds.bands, &MemBand{
			ds:    ds,
			cells: make([]float64, cfg.Width*cfg.Height),
		})
	}
	return ds
}

func (ds *MemDataset) RasterSize() (int, int)   { return ds.cfg.Width, ds.cfg.Height }
func (ds *MemDataset) GeoTransform() [6]float64 { return ds.cfg.GeoTransform }

func (ds *MemDataset) Band(id int) (Band, error) {
	if id < 1 || id > len(ds.bands) {
		return nil, &ErrInvalidBand{Band: id, Count: len(ds.bands)}
	}
	return ds.bands[id-1], nil
}

// MemBandAt returns the concrete band for direct cell inspection in tests.
// id is 1-based, matching Band.
func (ds *MemDataset) MemBandAt(id int) *MemBand { return ds.bands[id-1] }

func (ds *MemDataset) Close() error {
	ds.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (ds *MemDataset) Closed() bool { return ds.closed }

// MemBand holds one band's cells row-major at full raster width.
type MemBand struct {
	ds    *MemDataset
	cells []float64

	// ReadLog and WriteLog record every window call in order.
	ReadLog  []Window
	WriteLog []Window

	// FailReads / FailWrites, when non-nil, are returned by the next
	// ReadWindow / WriteWindow calls.
	FailReads  error
	FailWrites error
}

func (b *MemBand) BlockSize() (int, int) { return b.ds.cfg.BlockW, b.ds.cfg.BlockH }

func (b *MemBand) ActualBlockSize(bxi, byi int) (int, int) {
	w, h := b.ds.cfg.BlockW, b.ds.cfg.BlockH
	if xoff := bxi * w; xoff+w > b.ds.cfg.Width {
		w = b.ds.cfg.Width - xoff
	}
	if yoff := byi * h; yoff+h > b.ds.cfg.Height {
		h = b.ds.cfg.Height - yoff
	}
	return w, h
}

func (b *MemBand) NoData() (float64, bool) {
	if b.ds.cfg.NoData == nil {
		return 0, false
	}
	return *b.ds.cfg.NoData, true
}

func (b *MemBand) checkWindow(xoff, yoff, w, h int, buf []float64) error {
	if xoff < 0 || yoff < 0 || w <= 0 || h <= 0 ||
		xoff+w > b.ds.cfg.Width || yoff+h > b.ds.cfg.Height {
		return fmt.Errorf("gridio: window %d,%d %dx%d outside raster %dx%d",
			xoff, yoff, w, h, b.ds.cfg.Width, b.ds.cfg.Height)
	}
	if len(buf) < w*h {
		return errors.New("gridio: window buffer too small")
	}
	return nil
}

func (b *MemBand) ReadWindow(xoff, yoff, w, h int, buf []float64) error {
	if b.FailReads != nil {
		return b.FailReads
	}
	if err := b.checkWindow(xoff, yoff, w, h, buf); err != nil {
		return err
	}
	b.ReadLog = append(b.ReadLog, Window{xoff, yoff, w, h})
	for row := 0; row < h; row++ {
		src := (yoff+row)*b.ds.cfg.Width + xoff
		copy(buf[row*w:(row+1)*w], b.cells[src:src+w])
	}
	return nil
}

func (b *MemBand) WriteWindow(xoff, yoff, w, h int, buf []float64) error {
	if b.FailWrites != nil {
		return b.FailWrites
	}
	if err := b.checkWindow(xoff, yoff, w, h, buf); err != nil {
		return err
	}
	b.WriteLog = append(b.WriteLog, Window{xoff, yoff, w, h})
	for row := 0; row < h; row++ {
		dst := (yoff+row)*b.ds.cfg.Width + xoff
		copy(b.cells[dst:dst+w], buf[row*w:(row+1)*w])
	}
	return nil
}

// Cell returns the stored value at (x, y), bypassing window I/O.
func (b *MemBand) Cell(x, y int) float64 { return b.cells[y*b.ds.cfg.Width+x] }

// SetCell stores v at (x, y), bypassing window I/O.
func (b *MemBand) SetCell(x, y int, v float64) { b.cells[y*b.ds.cfg.Width+x] = v }
