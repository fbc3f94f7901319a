package gridfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/flowgrid/flowgrid/internal/blocks"
	"github.com/flowgrid/flowgrid/internal/fs"
)

// Options configures a new gridfile container.
type Options struct {
	Width, Height int
	// TileW and TileH must be exact powers of two. Default 256.
	TileW, TileH int
	// Bands defaults to 1.
	Bands        int
	Compression  Compression
	NoData       *float64
	GeoTransform [6]float64
}

// Writer builds a gridfile container.
//
// For uncompressed files the full file is allocated up front and zero-filled,
// so a Writer may be closed immediately and the file reopened writable to be
// populated cell by cell through a managed raster. For compressed files every
// band must be supplied via WriteBand before Close, which compresses the
// tiles and writes the index.
type Writer struct {
	path   string
	hdr    Header
	layout *blocks.Layout
	file   fs.File
	closed bool

	pending [][]float64 // per-band cells, compressed mode only
}

// Create creates (or truncates) a gridfile container at path.
func Create(path string, o Options) (*Writer, error) {
	if o.TileW == 0 {
		o.TileW = 256
	}
	if o.TileH == 0 {
		o.TileH = 256
	}
	if o.Bands == 0 {
		o.Bands = 1
	}
	layout, err := blocks.NewLayout(o.Width, o.Height, o.TileW, o.TileH)
	if err != nil {
		return nil, err
	}

	hdr := Header{
		Magic:        MagicNumber,
		Version:      Version,
		Width:        uint32(o.Width),
		Height:       uint32(o.Height),
		TileW:        uint32(o.TileW),
		TileH:        uint32(o.TileH),
		Bands:        uint32(o.Bands),
		Compression:  o.Compression,
		GeoTransform: o.GeoTransform,
	}
	if o.NoData != nil {
		hdr.HasNoData = true
		hdr.NoData = *o.NoData
	}

	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("gridfile: create %s: %w", path, err)
	}

	w := &Writer{path: path, hdr: hdr, layout: layout, file: f}

	if o.Compression == CompressionNone {
		// Fixed layout: allocate the whole file now so the dataset can be
		// reopened writable before any cells are written.
		size := int64(HeaderSize) + int64(o.Bands*layout.NumBlocks())*int64(o.TileW*o.TileH*cellBytes)
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("gridfile: allocate: %w", err)
		}
		if _, err := f.WriteAt(w.hdr.Encode(), 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("gridfile: write header: %w", err)
		}
	} else {
		w.pending = make([][]float64, o.Bands)
	}
	return w, nil
}

// WriteBand supplies a full band of cells, row-major at raster width.
// band is 1-based.
func (w *Writer) WriteBand(band int, cells []float64) error {
	if w.closed {
		return os.ErrClosed
	}
	if band < 1 || band > int(w.hdr.Bands) {
		return fmt.Errorf("gridfile: band %d out of range [1, %d]", band, w.hdr.Bands)
	}
	if len(cells) != int(w.hdr.Width)*int(w.hdr.Height) {
		return fmt.Errorf("gridfile: band has %d cells, want %d", len(cells), int(w.hdr.Width)*int(w.hdr.Height))
	}

	if w.hdr.Compression != CompressionNone {
		w.pending[band-1] = append([]float64(nil), cells...)
		return nil
	}

	for ti := 0; ti < w.layout.NumBlocks(); ti++ {
		if err := w.writeTileUncompressed(band-1, ti, cells); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeTileUncompressed(bandIdx, ti int, cells []float64) error {
	tile := w.padTile(ti, cells)
	buf := make([]byte, len(tile)*cellBytes)
	encodeFloats(buf, tile)
	off := int64(HeaderSize) + int64(bandIdx*w.layout.NumBlocks()+ti)*int64(len(buf))
	if _, err := w.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("gridfile: write tile %d: %w", ti, err)
	}
	return nil
}

// padTile extracts tile ti from full-raster cells into a full-size padded
// tile buffer.
func (w *Writer) padTile(ti int, cells []float64) []float64 {
	tileW, tileH := int(w.hdr.TileW), int(w.hdr.TileH)
	xoff, yoff, aw, ah := w.layout.Window(ti)
	tile := make([]float64, tileW*tileH)
	for row := 0; row < ah; row++ {
		src := (yoff+row)*int(w.hdr.Width) + xoff
		copy(tile[row*tileW:row*tileW+aw], cells[src:src+aw])
	}
	return tile
}

// Close finalizes the container. For compressed files this compresses all
// tiles (fanning out across CPUs) and writes the blobs, tile index, and
// header.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.hdr.Compression == CompressionNone {
		err := w.file.Sync()
		if closeErr := w.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		return err
	}

	err := w.finalizeCompressed()
	if closeErr := w.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (w *Writer) finalizeCompressed() error {
	for i, cells := range w.pending {
		if cells == nil {
			return fmt.Errorf("gridfile: band %d was never written", i+1)
		}
	}

	nTiles := w.layout.NumBlocks()
	blobs := make([][]byte, int(w.hdr.Bands)*nTiles)

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for bandIdx := 0; bandIdx < int(w.hdr.Bands); bandIdx++ {
		for ti := 0; ti < nTiles; ti++ {
			bandIdx, ti := bandIdx, ti
			g.Go(func() error {
				tile := w.padTile(ti, w.pending[bandIdx])
				raw := make([]byte, len(tile)*cellBytes)
				encodeFloats(raw, tile)
				blob, err := compressTile(raw, w.hdr.Compression)
				if err != nil {
					return err
				}
				blobs[bandIdx*nTiles+ti] = blob
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	offset := int64(HeaderSize)
	index := make([]byte, len(blobs)*tileLocSize)
	for i, blob := range blobs {
		if _, err := w.file.WriteAt(blob, offset); err != nil {
			return fmt.Errorf("gridfile: write tile blob: %w", err)
		}
		binary.LittleEndian.PutUint64(index[i*tileLocSize:], uint64(offset))
		binary.LittleEndian.PutUint64(index[i*tileLocSize+8:], uint64(len(blob)))
		offset += int64(len(blob))
	}

	w.hdr.TileIndexOffset = uint64(offset)
	if _, err := w.file.WriteAt(index, offset); err != nil {
		return fmt.Errorf("gridfile: write tile index: %w", err)
	}
	if _, err := w.file.WriteAt(w.hdr.Encode(), 0); err != nil {
		return fmt.Errorf("gridfile: write header: %w", err)
	}
	return w.file.Sync()
}

// WriteRaster is a convenience for single-band containers.
func (w *Writer) WriteRaster(cells []float64) error {
	if w.hdr.Bands != 1 {
		return errors.New("gridfile: WriteRaster requires a single-band container")
	}
	return w.WriteBand(1, cells)
}
