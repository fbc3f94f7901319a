package fs

import (
	"errors"
	"os"
)

// ErrInjected is the error returned by FaultyFS failures unless overridden.
var ErrInjected = errors.New("injected fault")

// FaultyFS wraps a FileSystem and fails reads or writes after a configured
// number of calls. Counters are shared across all files opened through it.
type FaultyFS struct {
	FS FileSystem

	// FailReadAfter fails ReadAt calls once this many have succeeded.
	// Negative means never.
	FailReadAfter int
	// FailWriteAfter fails WriteAt calls once this many have succeeded.
	// Negative means never.
	FailWriteAfter int
	// Err is the error injected. Defaults to ErrInjected.
	Err error

	reads, writes int
}

// NewFaultyFS creates a FaultyFS wrapping fs (or Default if nil) with no
// faults armed.
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{FS: fsys, FailReadAfter: -1, FailWriteAfter: -1}
}

func (f *FaultyFS) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f}, nil
}

func (f *FaultyFS) Remove(name string) error             { return f.FS.Remove(name) }
func (f *FaultyFS) Rename(oldpath, newpath string) error { return f.FS.Rename(oldpath, newpath) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error) {
	return f.FS.Stat(name)
}

type faultyFile struct {
	File
	fs *FaultyFS
}

func (f *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	if f.fs.FailReadAfter >= 0 && f.fs.reads >= f.fs.FailReadAfter {
		return 0, f.fs.err()
	}
	f.fs.reads++
	return f.File.ReadAt(p, off)
}

func (f *faultyFile) WriteAt(p []byte, off int64) (int, error) {
	if f.fs.FailWriteAfter >= 0 && f.fs.writes >= f.fs.FailWriteAfter {
		return 0, f.fs.err()
	}
	f.fs.writes++
	return f.File.WriteAt(p, off)
}
