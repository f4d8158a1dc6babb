package atomicfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// DefaultPerm is the permission of a newly created destination file
// unless changed with SetPerm. An existing destination keeps its
// permission.
const DefaultPerm os.FileMode = 0644

var (
	// ErrCancelled is returned by calls after RemoveIfNotClosed()
	ErrCancelled = errors.New("cancelled")

	_ io.WriteCloser = &File{}
)

// File is a writer whose content becomes visible at the destination
// path only after a successful Close()
type File struct {
	dstPath string
	dir     string
	perm    os.FileMode
	permSet bool
	tmpFile *os.File
	// first error we encountered, sticky
	err error

	tmpPath string
}

// New creates a temporary file next to path. The directory of path
// must exist: we check early so that we don't write data that can't
// be moved into place.
func New(path string) (*File, error) {
	dir, fName := filepath.Split(path)
	if fName == "" {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	tmpFile, err := os.CreateTemp(dir, "."+fName+".tmp-*")
	if err != nil {
		return nil, err
	}

	return &File{
		dstPath: path,
		dir:     dir,
		perm:    DefaultPerm,
		tmpFile: tmpFile,
		tmpPath: tmpFile.Name(),
	}, nil
}

// TempPath returns the path of the temporary file
func (f *File) TempPath() string {
	return f.tmpPath
}

// SetPerm sets permission bits applied to the file before it's renamed
func (f *File) SetPerm(perm os.FileMode) {
	f.perm = perm
	f.permSet = true
}

func (f *File) dstPerm() os.FileMode {
	if f.permSet {
		return f.perm
	}
	if st, err := os.Stat(f.dstPath); err == nil && st.Mode().IsRegular() {
		return st.Mode().Perm()
	}
	return f.perm
}

// handleError records err and abandons the write
func (f *File) handleError(err error) error {
	if err == nil {
		return nil
	}
	if f.err == nil {
		f.err = err
	}
	_ = f.Close()
	return err
}

func (f *File) Write(d []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.alreadyClosed() {
		return 0, os.ErrClosed
	}
	n, err := f.tmpFile.Write(d)
	return n, f.handleError(err)
}

func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *File) alreadyClosed() bool {
	return f.tmpFile == nil
}

// RemoveIfNotClosed abandons the write if Close() wasn't called yet.
// Destination file is not touched. Meant to be used with defer so that
// early returns and panics don't leave temporary files behind.
func (f *File) RemoveIfNotClosed() {
	if f == nil || f.alreadyClosed() {
		return
	}
	f.err = ErrCancelled
	_ = f.Close()
}

// Close finishes the write and renames the temporary file over the
// destination. Can be called multiple times, subsequent calls return
// the result of the first.
func (f *File) Close() error {
	if f.alreadyClosed() {
		return f.err
	}
	tmpFile := f.tmpFile
	f.tmpFile = nil

	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	errSync := tmpFile.Sync()
	errClose := tmpFile.Close()

	didRename := false
	defer func() {
		if !didRename {
			_ = os.Remove(f.tmpPath)
		}
	}()

	if f.err != nil {
		return f.err
	}

	err := errSync
	if err == nil {
		err = errClose
	}
	if err == nil {
		// CreateTemp uses 0600
		err = os.Chmod(f.tmpPath, f.dstPerm())
	}
	if err == nil {
		err = os.Rename(f.tmpPath, f.dstPath)
		didRename = err == nil
	}
	if didRename {
		// nice to have: makes the rename itself durable
		if fdir, _ := os.Open(f.dir); fdir != nil {
			_ = fdir.Sync()
			_ = fdir.Close()
		}
	}
	f.err = err
	return f.err
}

// WriteFile is os.WriteFile done atomically
func WriteFile(path string, d []byte, perm os.FileMode) error {
	f, err := New(path)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	f.SetPerm(perm)
	if _, err = f.Write(d); err != nil {
		return err
	}
	return f.Close()
}
