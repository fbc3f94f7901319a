package gridfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/flowgrid/flowgrid/gridio"
	"github.com/flowgrid/flowgrid/internal/blocks"
	"github.com/flowgrid/flowgrid/internal/fs"
	"github.com/flowgrid/flowgrid/internal/mmap"
)

func init() {
	gridio.Register(Ext, func(path string, writable bool) (gridio.Dataset, error) {
		return Open(path, writable)
	})
}

// fsys is swapped by tests to inject I/O failures.
var fsys fs.FileSystem = fs.Default

// Dataset is an open gridfile container.
type Dataset struct {
	path     string
	hdr      *Header
	layout   *blocks.Layout
	writable bool
	closed   bool

	file fs.File
	mm   *mmap.File
	r    io.ReaderAt

	tileIndex []tileLoc // compressed files only
}

// Open opens the gridfile at path. Writable mode requires an uncompressed
// file; compressed tiles cannot be rewritten in place.
func Open(path string, writable bool) (*Dataset, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := fsys.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("gridfile: open %s: %w", path, err)
	}

	hdrBuf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("gridfile: read header: %w", err)
	}
	hdr, err := DecodeHeader(hdrBuf)
	if err != nil {
		f.Close()
		return nil, err
	}
	if writable && hdr.Compression != CompressionNone {
		f.Close()
		return nil, ErrCompressedWritable
	}

	layout, err := blocks.NewLayout(int(hdr.Width), int(hdr.Height), int(hdr.TileW), int(hdr.TileH))
	if err != nil {
		f.Close()
		return nil, err
	}

	ds := &Dataset{
		path:     path,
		hdr:      hdr,
		layout:   layout,
		writable: writable,
		file:     f,
		r:        f,
	}

	if hdr.Compression != CompressionNone {
		if err := ds.readTileIndex(); err != nil {
			f.Close()
			return nil, err
		}
	} else if !writable {
		// Read-only uncompressed files are served from a memory mapping
		// when the platform allows it; fall back to pread otherwise.
		if mm, mmErr := mmap.Open(path); mmErr == nil && mm.Data != nil {
			ds.mm = mm
			ds.r = mm
			f.Close()
			ds.file = nil
		}
	}
	return ds, nil
}

func (ds *Dataset) readTileIndex() error {
	n := ds.layout.NumBlocks() * int(ds.hdr.Bands)
	buf := make([]byte, n*tileLocSize)
	if _, err := ds.r.ReadAt(buf, int64(ds.hdr.TileIndexOffset)); err != nil {
		return fmt.Errorf("gridfile: read tile index: %w", err)
	}
	ds.tileIndex = make([]tileLoc, n)
	for i := range ds.tileIndex {
		ds.tileIndex[i] = tileLoc{
			offset: binary.LittleEndian.Uint64(buf[i*tileLocSize:]),
			length: binary.LittleEndian.Uint64(buf[i*tileLocSize+8:]),
		}
	}
	return nil
}

// tileBytes is the padded on-disk size of one uncompressed tile.
func (ds *Dataset) tileBytes() int {
	return int(ds.hdr.TileW) * int(ds.hdr.TileH) * cellBytes
}

// tileOffset computes the file offset of an uncompressed tile.
func (ds *Dataset) tileOffset(bandIdx, ti int) int64 {
	return HeaderSize + int64(bandIdx*ds.layout.NumBlocks()+ti)*int64(ds.tileBytes())
}

func (ds *Dataset) RasterSize() (int, int) {
	return int(ds.hdr.Width), int(ds.hdr.Height)
}

func (ds *Dataset) GeoTransform() [6]float64 { return ds.hdr.GeoTransform }

func (ds *Dataset) Band(id int) (gridio.Band, error) {
	if id < 1 || id > int(ds.hdr.Bands) {
		return nil, &gridio.ErrInvalidBand{Band: id, Count: int(ds.hdr.Bands)}
	}
	return &band{ds: ds, idx: id - 1}, nil
}

// Header returns a copy of the decoded file header.
func (ds *Dataset) Header() Header { return *ds.hdr }

func (ds *Dataset) Close() error {
	if ds.closed {
		return nil
	}
	ds.closed = true
	var err error
	if ds.mm != nil {
		err = ds.mm.Close()
		ds.mm = nil
	}
	if ds.file != nil {
		if ds.writable {
			if syncErr := ds.file.Sync(); syncErr != nil && err == nil {
				err = syncErr
			}
		}
		if closeErr := ds.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		ds.file = nil
	}
	return err
}

type band struct {
	ds  *Dataset
	idx int // 0-based
}

func (b *band) BlockSize() (int, int) {
	return int(b.ds.hdr.TileW), int(b.ds.hdr.TileH)
}

func (b *band) ActualBlockSize(bxi, byi int) (int, int) {
	return b.ds.layout.ActualSize(byi*b.ds.layout.NX + bxi)
}

func (b *band) NoData() (float64, bool) {
	return b.ds.hdr.NoData, b.ds.hdr.HasNoData
}

func (b *band) checkWindow(xoff, yoff, w, h int, buf []float64) error {
	rx, ry := b.ds.RasterSize()
	if xoff < 0 || yoff < 0 || w <= 0 || h <= 0 || xoff+w > rx || yoff+h > ry {
		return fmt.Errorf("gridfile: window %d,%d %dx%d outside raster %dx%d", xoff, yoff, w, h, rx, ry)
	}
	if len(buf) < w*h {
		return fmt.Errorf("gridfile: window buffer too small: %d < %d", len(buf), w*h)
	}
	return nil
}

// forEachTile visits every tile intersecting the window, reporting the
// intersection in raster space.
func (b *band) forEachTile(xoff, yoff, w, h int, visit func(ti, x0, y0, x1, y1 int) error) error {
	l := b.ds.layout
	for byi := yoff / l.BlockH; byi <= (yoff+h-1)/l.BlockH; byi++ {
		for bxi := xoff / l.BlockW; bxi <= (xoff+w-1)/l.BlockW; bxi++ {
			ti := byi*l.NX + bxi
			x0 := max(xoff, bxi*l.BlockW)
			y0 := max(yoff, byi*l.BlockH)
			x1 := min(xoff+w, (bxi+1)*l.BlockW)
			y1 := min(yoff+h, (byi+1)*l.BlockH)
			if err := visit(ti, x0, y0, x1, y1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *band) ReadWindow(xoff, yoff, w, h int, buf []float64) error {
	if err := b.checkWindow(xoff, yoff, w, h, buf); err != nil {
		return err
	}
	if b.ds.closed {
		return os.ErrClosed
	}
	if b.ds.hdr.Compression != CompressionNone {
		return b.readWindowCompressed(xoff, yoff, w, h, buf)
	}

	tileW := int(b.ds.hdr.TileW)
	rowBuf := make([]byte, w*cellBytes)
	return b.forEachTile(xoff, yoff, w, h, func(ti, x0, y0, x1, y1 int) error {
		base := b.ds.tileOffset(b.idx, ti)
		txo, tyo, _, _ := b.ds.layout.Window(ti)
		for y := y0; y < y1; y++ {
			off := base + int64(((y-tyo)*tileW+(x0-txo))*cellBytes)
			row := rowBuf[:(x1-x0)*cellBytes]
			if _, err := b.ds.r.ReadAt(row, off); err != nil {
				return fmt.Errorf("gridfile: read tile %d: %w", ti, err)
			}
			decodeFloats(buf[(y-yoff)*w+(x0-xoff):(y-yoff)*w+(x1-xoff)], row)
		}
		return nil
	})
}

func (b *band) readWindowCompressed(xoff, yoff, w, h int, buf []float64) error {
	tileW := int(b.ds.hdr.TileW)
	tile := make([]byte, b.ds.tileBytes())
	return b.forEachTile(xoff, yoff, w, h, func(ti, x0, y0, x1, y1 int) error {
		loc := b.ds.tileIndex[b.idx*b.ds.layout.NumBlocks()+ti]
		blob := make([]byte, loc.length)
		if _, err := b.ds.r.ReadAt(blob, int64(loc.offset)); err != nil {
			return fmt.Errorf("gridfile: read tile %d: %w", ti, err)
		}
		if err := decompressTile(tile, blob, b.ds.hdr.Compression); err != nil {
			return err
		}
		txo, tyo, _, _ := b.ds.layout.Window(ti)
		for y := y0; y < y1; y++ {
			src := tile[((y-tyo)*tileW+(x0-txo))*cellBytes:]
			decodeFloats(buf[(y-yoff)*w+(x0-xoff):(y-yoff)*w+(x1-xoff)], src)
		}
		return nil
	})
}

func (b *band) WriteWindow(xoff, yoff, w, h int, buf []float64) error {
	if err := b.checkWindow(xoff, yoff, w, h, buf); err != nil {
		return err
	}
	if b.ds.closed {
		return os.ErrClosed
	}
	if !b.ds.writable {
		return ErrReadOnly
	}

	tileW := int(b.ds.hdr.TileW)
	rowBuf := make([]byte, w*cellBytes)
	return b.forEachTile(xoff, yoff, w, h, func(ti, x0, y0, x1, y1 int) error {
		base := b.ds.tileOffset(b.idx, ti)
		txo, tyo, _, _ := b.ds.layout.Window(ti)
		for y := y0; y < y1; y++ {
			row := rowBuf[:(x1-x0)*cellBytes]
			encodeFloats(row, buf[(y-yoff)*w+(x0-xoff):(y-yoff)*w+(x1-xoff)])
			off := base + int64(((y-tyo)*tileW+(x0-txo))*cellBytes)
			if _, err := b.ds.file.WriteAt(row, off); err != nil {
				return fmt.Errorf("gridfile: write tile %d: %w", ti, err)
			}
		}
		return nil
	})
}
