// Package mmap provides read-only memory mapping for raster container files.
// Uncompressed gridfile datasets opened read-only are served straight from the
// mapping, avoiding a copy per block load.
package mmap
