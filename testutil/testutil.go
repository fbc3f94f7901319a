package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid"
	"github.com/flowgrid/flowgrid/gridfile"
	"github.com/flowgrid/flowgrid/gridio"
)

// OpenMem opens a managed raster over a fresh in-memory dataset and returns
// both, so tests can assert on the dataset's window I/O logs. The raster is
// closed on test cleanup.
func OpenMem(t *testing.T, cfg gridio.MemConfig, writable bool, opts ...flowgrid.Option) (*flowgrid.ManagedRaster, *gridio.MemDataset) {
	t.Helper()
	ds := gridio.NewMemDataset(cfg)
	r, err := flowgrid.OpenDataset(ds, 1, writable, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, ds
}

// FlowDirMem builds a flow-direction raster from a grid of packed values.
// cells is row-major, cells[y][x]; all rows must be the same length.
func FlowDirMem(t *testing.T, cells [][]int, blockW, blockH int, model flowgrid.FlowModel) *flowgrid.FlowDirRaster {
	t.Helper()
	require.NotEmpty(t, cells)
	h, w := len(cells), len(cells[0])

	ds := gridio.NewMemDataset(gridio.MemConfig{
		Width: w, Height: h, BlockW: blockW, BlockH: blockH,
	})
	band := ds.MemBandAt(1)
	for y, row := range cells {
		require.Len(t, row, w, "ragged cell grid")
		for x, v := range row {
			band.SetCell(x, y, float64(v))
		}
	}

	r, err := flowgrid.OpenDataset(ds, 1, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return flowgrid.NewFlowDirRaster(r, model)
}

// TempGridFile writes a single-band gridfile into the test's temp dir and
// returns its path. cells may be nil for an uncompressed zero-filled file.
func TempGridFile(t *testing.T, o gridfile.Options, cells []float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raster"+gridfile.Ext)
	w, err := gridfile.Create(path, o)
	require.NoError(t, err)
	if cells != nil {
		require.NoError(t, w.WriteRaster(cells))
	}
	require.NoError(t, w.Close())
	return path
}

// Sequential returns w*h cells valued by their flat index, useful for
// bit-exact round-trip checks.
func Sequential(w, h int) []float64 {
	cells := make([]float64, w*h)
	for i := range cells {
		cells[i] = float64(i)
	}
	return cells
}

// Collect drains a neighbor iterator, failing the test on iteration error.
func Collect(t *testing.T, it *flowgrid.NeighborIter) []flowgrid.Neighbor {
	t.Helper()
	var out []flowgrid.Neighbor
	for n, ok := it.Next(); ok; n, ok = it.Next() {
		out = append(out, n)
	}
	require.NoError(t, it.Err())
	return out
}
