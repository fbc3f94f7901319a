// Package gridfile implements the native tiled raster container and registers
// it as the gridio driver for the ".fgr" extension.
//
// # File Format
//
// A gridfile holds one or more float64 bands tiled into power-of-two blocks.
// The 160-byte header carries the raster geometry, nodata value, affine
// geotransform, and a CRC32C over its own bytes. Tiles follow row-major per
// band.
//
// Uncompressed files store every tile at its full padded size, so tile
// offsets are computable and windows can be rewritten in place. This is the
// only mode that supports writable datasets, and the mode routing algorithms
// use for intermediate rasters.
//
// Compressed files (LZ4 or zstd, chosen per file) store variable-length tile
// blobs located through a tile index at the end of the file. They are
// read-only: a source DEM or flow-direction raster compresses well and is
// never rewritten.
//
// Read-only uncompressed datasets are served from a memory mapping when the
// platform allows it.
package gridfile
