package flowgrid_test

import (
	"fmt"
	"log"

	"github.com/flowgrid/flowgrid"
	"github.com/flowgrid/flowgrid/gridio"
)

func Example() {
	// A 4x4 in-memory raster of packed multiple-flow-direction values.
	// The center cell splits its outflow 3:1 between east and northeast.
	ds := gridio.NewMemDataset(gridio.MemConfig{
		Width: 4, Height: 4, BlockW: 4, BlockH: 4,
	})
	ds.MemBandAt(1).SetCell(1, 1, float64(3|1<<4))

	r, err := flowgrid.OpenDataset(ds, 1, false)
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	flowDirs := flowgrid.NewFlowDirRaster(r, flowgrid.MFD)
	p, err := flowDirs.Pixel(1, 1)
	if err != nil {
		log.Fatal(err)
	}

	it := flowgrid.DownslopeNeighbors(p)
	for n, ok := it.Next(); ok; n, ok = it.Next() {
		fmt.Printf("direction %d -> (%d,%d) weight %.0f\n", n.Direction, n.X, n.Y, n.Weight)
	}
	if err := it.Err(); err != nil {
		log.Fatal(err)
	}
	// Output:
	// direction 0 -> (2,1) weight 3
	// direction 1 -> (2,0) weight 1
}

func ExampleUpslopeNeighbors() {
	ds := gridio.NewMemDataset(gridio.MemConfig{
		Width: 4, Height: 4, BlockW: 4, BlockH: 4,
	})
	// Two cells feed (2,1): (1,1) sends all 3 of its units east, and (1,2)
	// sends 1 of its 4 units northeast.
	ds.MemBandAt(1).SetCell(1, 1, 3)
	ds.MemBandAt(1).SetCell(1, 2, float64(1<<4|3<<24))

	r, err := flowgrid.OpenDataset(ds, 1, false)
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	flowDirs := flowgrid.NewFlowDirRaster(r, flowgrid.MFD)
	p, err := flowDirs.Pixel(2, 1)
	if err != nil {
		log.Fatal(err)
	}

	it := flowgrid.UpslopeNeighbors(p)
	for n, ok := it.Next(); ok; n, ok = it.Next() {
		fmt.Printf("from (%d,%d) fraction %.2f\n", n.X, n.Y, n.Weight)
	}
	if err := it.Err(); err != nil {
		log.Fatal(err)
	}
	// Output:
	// from (1,1) fraction 1.00
	// from (1,2) fraction 0.25
}
