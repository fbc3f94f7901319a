// Package fs abstracts positional file I/O for the gridfile driver and
// provides an error-injecting wrapper for exercising read and write failure
// paths in tests.
package fs
