// Package flowgrid provides bounded-memory access to large block-tiled
// rasters for hydrological routing algorithms, plus neighbor traversal over
// packed flow-direction grids.
//
// # Managed Rasters
//
// Routing algorithms (flow accumulation, watershed delineation, load
// propagation) touch the cells of multi-gigabyte grids in effectively random
// order. ManagedRaster makes that tractable: cells resolve to power-of-two
// tiles which load lazily into a fixed-size LRU cache. In write mode, dirty
// tiles are written back to storage as they are evicted or when the raster
// closes.
//
//	r, err := flowgrid.Open("flow_dir.fgr", 1, false)
//	...
//	v, err := r.Get(x, y)
//
// Storage is reached through the gridio.Dataset interface; the gridfile
// package supplies the native tiled container and registers itself as the
// driver for ".fgr" paths. A ManagedRaster is not safe for concurrent use:
// a routing algorithm is one goroutine walking one raster.
//
// # Flow Direction and Neighbor Traversal
//
// Two flow encodings are supported. Under D8 a cell value in [0, 7] names the
// one neighbor receiving all outflow. Under MFD the value packs eight 4-bit
// weights, one per compass neighbor:
//
//	3 2 1
//	4 x 0
//	5 6 7
//
// FlowDirRaster binds a ManagedRaster to one of the models, and the iterator
// constructors (Neighbors, DownslopeNeighbors, DownslopeNeighborsNoSkip,
// UpslopeNeighbors, UpslopeNeighborsNoDivide) walk a cell's graph edges
// without allocating per step:
//
//	p, err := fd.Pixel(x, y)
//	it := flowgrid.UpslopeNeighbors(p)
//	for n, ok := it.Next(); ok; n, ok = it.Next() {
//		total += n.Weight * loadAt(n.X, n.Y)
//	}
//	if err := it.Err(); err != nil {
//		return err
//	}
package flowgrid
