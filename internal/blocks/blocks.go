package blocks

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrNotPowerOfTwo is returned when a block dimension is not an exact power of two.
var ErrNotPowerOfTwo = errors.New("block size is not a power of two")

// Layout holds the block-tiling geometry of a raster. All fields are computed
// once at construction and are read-only afterwards.
//
// Because block dimensions are verified powers of two, the per-cell address
// math reduces to shifts and masks: n % 2^i == n & (2^i - 1).
type Layout struct {
	RasterX, RasterY int // raster dimensions in cells
	BlockW, BlockH   int // nominal block dimensions
	NX, NY           int // block grid dimensions

	xbits, ybits uint
	xmask, ymask int

	widths  []int // actual (edge-clipped) block width, indexed by block index
	heights []int
}

// NewLayout validates the block dimensions and precomputes the tiling geometry.
func NewLayout(rasterX, rasterY, blockW, blockH int) (*Layout, error) {
	if rasterX <= 0 || rasterY <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", rasterX, rasterY)
	}
	if blockW <= 0 || blockW&(blockW-1) != 0 {
		return nil, fmt.Errorf("%w: width %d", ErrNotPowerOfTwo, blockW)
	}
	if blockH <= 0 || blockH&(blockH-1) != 0 {
		return nil, fmt.Errorf("%w: height %d", ErrNotPowerOfTwo, blockH)
	}

	l := &Layout{
		RasterX: rasterX,
		RasterY: rasterY,
		BlockW:  blockW,
		BlockH:  blockH,
		NX:      (rasterX + blockW - 1) / blockW,
		NY:      (rasterY + blockH - 1) / blockH,
		xbits:   uint(bits.TrailingZeros(uint(blockW))),
		ybits:   uint(bits.TrailingZeros(uint(blockH))),
		xmask:   blockW - 1,
		ymask:   blockH - 1,
	}

	l.widths = make([]int, l.NX*l.NY)
	l.heights = make([]int, l.NX*l.NY)
	for byi := 0; byi < l.NY; byi++ {
		for bxi := 0; bxi < l.NX; bxi++ {
			w, h := blockW, blockH
			if xoff := bxi << l.xbits; xoff+w > rasterX {
				w = rasterX - xoff
			}
			if yoff := byi << l.ybits; yoff+h > rasterY {
				h = rasterY - yoff
			}
			l.widths[byi*l.NX+bxi] = w
			l.heights[byi*l.NX+bxi] = h
		}
	}
	return l, nil
}

// NumBlocks returns the total number of blocks in the grid.
func (l *Layout) NumBlocks() int { return l.NX * l.NY }

// InBounds reports whether (x, y) lies within the raster extent.
func (l *Layout) InBounds(x, y int) bool {
	return x >= 0 && x < l.RasterX && y >= 0 && y < l.RasterY
}

// BlockIndex returns the flat index of the block owning cell (x, y).
func (l *Layout) BlockIndex(x, y int) int {
	return (y>>l.ybits)*l.NX + (x >> l.xbits)
}

// CellOffset returns the offset of cell (x, y) within the buffer of block bi.
// The row stride is the actual (possibly edge-clipped) width of that block.
func (l *Layout) CellOffset(x, y, bi int) int {
	return (y&l.ymask)*l.widths[bi] + (x & l.xmask)
}

// ActualSize returns the edge-clipped dimensions of block bi.
func (l *Layout) ActualSize(bi int) (w, h int) {
	return l.widths[bi], l.heights[bi]
}

// Window returns the raster-space window covered by block bi, clipped to the
// raster extent. This is the exact window read on block load and written back
// on flush.
func (l *Layout) Window(bi int) (xoff, yoff, w, h int) {
	bxi := bi % l.NX
	byi := bi / l.NX
	return bxi << l.xbits, byi << l.ybits, l.widths[bi], l.heights[bi]
}
