// Package blocks implements the coordinate math for block-tiled rasters.
//
// A raster of X×Y cells is tiled into blocks of W×H cells where W and H are
// exact powers of two. That invariant lets the hot-path address computation
// use shifts and bitmasks instead of division, which matters when routing
// algorithms touch hundreds of millions of cells in random order.
//
// Blocks on the right and bottom edges are clipped to the raster extent.
// Their actual dimensions are precomputed into lookup tables so that cell
// offsets within a clipped block use the clipped row stride.
package blocks
