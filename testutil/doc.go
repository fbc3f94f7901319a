// Package testutil provides helpers for constructing in-memory and on-disk
// test rasters.
package testutil
