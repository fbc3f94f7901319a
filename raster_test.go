package flowgrid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid"
	"github.com/flowgrid/flowgrid/gridfile"
	"github.com/flowgrid/flowgrid/gridio"
	"github.com/flowgrid/flowgrid/testutil"
)

func TestManagedRaster_SetThenGet(t *testing.T) {
	r, _ := testutil.OpenMem(t, gridio.MemConfig{
		Width: 10, Height: 7, BlockW: 4, BlockH: 4,
	}, true)

	for y := 0; y < 7; y++ {
		for x := 0; x < 10; x++ {
			v := float64(y*10 + x)
			require.NoError(t, r.Set(x, y, v))
			got, err := r.Get(x, y)
			require.NoError(t, err)
			assert.Equal(t, v, got, "cell (%d,%d)", x, y)
		}
	}
}

func TestManagedRaster_BoundedResidency(t *testing.T) {
	r, ds := testutil.OpenMem(t, gridio.MemConfig{
		Width: 64, Height: 64, BlockW: 8, BlockH: 8,
	}, false, flowgrid.WithCacheBlocks(4))

	// Touch one cell in every one of the 64 blocks.
	for by := 0; by < 8; by++ {
		for bx := 0; bx < 8; bx++ {
			_, err := r.Get(bx*8, by*8)
			require.NoError(t, err)
			assert.LessOrEqual(t, r.ResidentBlocks(), 4)
		}
	}
	assert.Equal(t, 4, r.ResidentBlocks())
	// Every block was loaded exactly once; nothing was ever written.
	assert.Len(t, ds.MemBandAt(1).ReadLog, 64)
	assert.Empty(t, ds.MemBandAt(1).WriteLog)
}

func TestManagedRaster_EvictsLeastRecentlyUsedBlock(t *testing.T) {
	r, ds := testutil.OpenMem(t, gridio.MemConfig{
		Width: 16, Height: 4, BlockW: 4, BlockH: 4,
	}, false, flowgrid.WithCacheBlocks(2))

	get := func(x int) {
		_, err := r.Get(x, 0)
		require.NoError(t, err)
	}

	get(0) // load block 0
	get(4) // load block 1
	get(0) // refresh block 0
	get(8) // load block 2, evicting block 1
	get(0) // still resident: no reload
	get(4) // block 1 must reload

	var loads []int
	for _, w := range ds.MemBandAt(1).ReadLog {
		loads = append(loads, w.XOff/4)
	}
	assert.Equal(t, []int{0, 1, 2, 1}, loads)
}

func TestManagedRaster_DirtyBlockFlushedExactlyOnceOnEviction(t *testing.T) {
	r, ds := testutil.OpenMem(t, gridio.MemConfig{
		Width: 16, Height: 4, BlockW: 4, BlockH: 4,
	}, true, flowgrid.WithCacheBlocks(1))

	require.NoError(t, r.Set(1, 1, 42)) // dirty block 0
	assert.Equal(t, 1, r.DirtyBlocks())

	_, err := r.Get(5, 0) // loads block 1, evicting dirty block 0
	require.NoError(t, err)
	assert.Equal(t, 0, r.DirtyBlocks())

	band := ds.MemBandAt(1)
	require.Equal(t, []gridio.Window{{XOff: 0, YOff: 0, W: 4, H: 4}}, band.WriteLog)
	assert.Equal(t, 42.0, band.Cell(1, 1))

	// Evicting the clean block 1 must not write.
	_, err = r.Get(9, 0)
	require.NoError(t, err)
	assert.Len(t, band.WriteLog, 1)
}

func TestManagedRaster_CloseFlushesResidentDirtyBlocks(t *testing.T) {
	r, ds := testutil.OpenMem(t, gridio.MemConfig{
		Width: 8, Height: 8, BlockW: 4, BlockH: 4,
	}, true)

	require.NoError(t, r.Set(0, 0, 1)) // block 0
	require.NoError(t, r.Set(7, 7, 2)) // block 3
	_, err := r.Get(4, 0)              // block 1 resident but clean
	require.NoError(t, err)

	require.NoError(t, r.Close())

	band := ds.MemBandAt(1)
	assert.Len(t, band.WriteLog, 2)
	assert.Equal(t, 1.0, band.Cell(0, 0))
	assert.Equal(t, 2.0, band.Cell(7, 7))
	assert.True(t, ds.Closed())

	// Idempotent: a second close does nothing.
	require.NoError(t, r.Close())
	assert.Len(t, band.WriteLog, 2)
}

func TestManagedRaster_ReadOnlyNeverWrites(t *testing.T) {
	r, ds := testutil.OpenMem(t, gridio.MemConfig{
		Width: 16, Height: 4, BlockW: 4, BlockH: 4,
	}, false, flowgrid.WithCacheBlocks(1))

	// Set on a read-only raster mutates the resident block only.
	require.NoError(t, r.Set(0, 0, 99))
	assert.Equal(t, 0, r.DirtyBlocks())

	v, err := r.Get(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 99.0, v)

	_, err = r.Get(5, 0) // evict the modified block
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.Empty(t, ds.MemBandAt(1).WriteLog)
	assert.Zero(t, ds.MemBandAt(1).Cell(0, 0))
}

func TestManagedRaster_OutOfBounds(t *testing.T) {
	r, _ := testutil.OpenMem(t, gridio.MemConfig{
		Width: 8, Height: 8, BlockW: 4, BlockH: 4,
	}, true)

	for _, c := range [][2]int{{-1, 0}, {0, -1}, {8, 0}, {0, 8}} {
		_, err := r.Get(c[0], c[1])
		assert.ErrorIs(t, err, flowgrid.ErrOutOfBounds, "get (%d,%d)", c[0], c[1])
		assert.ErrorIs(t, r.Set(c[0], c[1], 1), flowgrid.ErrOutOfBounds, "set (%d,%d)", c[0], c[1])
	}
}

func TestManagedRaster_UseAfterClose(t *testing.T) {
	r, _ := testutil.OpenMem(t, gridio.MemConfig{
		Width: 8, Height: 8, BlockW: 4, BlockH: 4,
	}, true)
	require.NoError(t, r.Close())

	_, err := r.Get(0, 0)
	assert.ErrorIs(t, err, flowgrid.ErrClosed)
	assert.ErrorIs(t, r.Set(0, 0, 1), flowgrid.ErrClosed)
}

func TestOpenDataset_InvalidBand(t *testing.T) {
	ds := gridio.NewMemDataset(gridio.MemConfig{Width: 8, Height: 8, BlockW: 4, BlockH: 4})
	_, err := flowgrid.OpenDataset(ds, 2, false)
	var bandErr *gridio.ErrInvalidBand
	require.ErrorAs(t, err, &bandErr)
	assert.Equal(t, 2, bandErr.Band)
}

func TestOpenDataset_RejectsNonPowerOfTwoBlocks(t *testing.T) {
	ds := gridio.NewMemDataset(gridio.MemConfig{Width: 9, Height: 9, BlockW: 3, BlockH: 3})
	_, err := flowgrid.OpenDataset(ds, 1, false)
	var bsErr *flowgrid.ErrBlockSize
	require.ErrorAs(t, err, &bsErr)
	assert.Equal(t, 3, bsErr.W)
}

func TestManagedRaster_LoadFailureIsHard(t *testing.T) {
	r, ds := testutil.OpenMem(t, gridio.MemConfig{
		Width: 8, Height: 8, BlockW: 4, BlockH: 4,
	}, false)

	ds.MemBandAt(1).FailReads = assert.AnError
	_, err := r.Get(0, 0)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestManagedRaster_EvictionFlushFailureIsHard(t *testing.T) {
	r, ds := testutil.OpenMem(t, gridio.MemConfig{
		Width: 16, Height: 4, BlockW: 4, BlockH: 4,
	}, true, flowgrid.WithCacheBlocks(1))

	require.NoError(t, r.Set(0, 0, 7))
	ds.MemBandAt(1).FailWrites = assert.AnError

	_, err := r.Get(5, 0) // eviction path must surface the flush failure
	assert.ErrorIs(t, err, assert.AnError)
}

func TestManagedRaster_CloseFlushFailure(t *testing.T) {
	r, ds := testutil.OpenMem(t, gridio.MemConfig{
		Width: 8, Height: 8, BlockW: 4, BlockH: 4,
	}, true)

	require.NoError(t, r.Set(0, 0, 7))
	ds.MemBandAt(1).FailWrites = assert.AnError
	assert.ErrorIs(t, r.Close(), assert.AnError)
}

func TestManagedRaster_Metadata(t *testing.T) {
	nd := -9999.0
	geo := [6]float64{444720, 30, 0, 3751320, 0, -30}
	r, _ := testutil.OpenMem(t, gridio.MemConfig{
		Width: 10, Height: 7, BlockW: 4, BlockH: 4, NoData: &nd, GeoTransform: geo,
	}, false)

	x, y := r.Size()
	assert.Equal(t, [2]int{10, 7}, [2]int{x, y})
	w, h := r.BlockSize()
	assert.Equal(t, [2]int{4, 4}, [2]int{w, h})

	v, ok := r.NoData()
	require.True(t, ok)
	assert.Equal(t, nd, v)
	assert.Equal(t, geo, r.GeoTransform())
	assert.Equal(t, 1, r.BandID())
	assert.False(t, r.Writable())
}

func TestManagedRaster_GridFileRoundTrip(t *testing.T) {
	// Raster sized to exactly one block: write every cell, close, reopen,
	// verify bit-exact values.
	path := testutil.TempGridFile(t, gridfile.Options{
		Width: 4, Height: 4, TileW: 4, TileH: 4,
	}, nil)

	w, err := flowgrid.Open(path, 1, true)
	require.NoError(t, err)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			require.NoError(t, w.Set(x, y, float64(1+y*4+x)*0.5))
		}
	}
	require.NoError(t, w.Close())

	r, err := flowgrid.Open(path, 1, false)
	require.NoError(t, err)
	defer r.Close()
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			v, err := r.Get(x, y)
			require.NoError(t, err)
			assert.Equal(t, float64(1+y*4+x)*0.5, v, "cell (%d,%d)", x, y)
		}
	}
}

func TestManagedRaster_GridFileSpillAndReload(t *testing.T) {
	// Force every write through the eviction path with a one-block cache,
	// then verify the file contents.
	path := testutil.TempGridFile(t, gridfile.Options{
		Width: 20, Height: 10, TileW: 4, TileH: 4,
	}, nil)

	w, err := flowgrid.Open(path, 1, true, flowgrid.WithCacheBlocks(1))
	require.NoError(t, err)
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			require.NoError(t, w.Set(x, y, float64(y*20+x)))
		}
	}
	require.NoError(t, w.Close())

	r, err := flowgrid.Open(path, 1, false)
	require.NoError(t, err)
	defer r.Close()
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			v, err := r.Get(x, y)
			require.NoError(t, err)
			require.Equal(t, float64(y*20+x), v, "cell (%d,%d)", x, y)
		}
	}
}
