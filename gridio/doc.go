// Package gridio defines the raster I/O boundary consumed by the managed
// raster cache.
//
// A Dataset is a container of Bands; a Band exposes its natural tile size and
// window-oriented reads and writes of float64 cell values. Concrete file
// formats implement Driver and self-register by filename extension in their
// package init, in the manner of database/sql drivers:
//
//	import _ "github.com/flowgrid/flowgrid/gridfile"
//
//	ds, err := gridio.Open("dem.fgr", false)
//
// The package also ships MemDataset, a fully in-memory implementation used by
// tests and examples.
package gridio
