// Package entitylog keeps an ordered list of entities in memory and
// saves / loads it as a whole to a single file.
//
// The file is a JSON array of records, optionally compressed (see
// CompressionForPath). Saving replaces the file atomically: readers see
// either the previous or the new content, never a partial write.
//
//	l := entitylog.New[inventory.Item]("inventory.json")
//	l.Add(inventory.Item{ID: 1, Name: "Laptop", Quantity: 5})
//	if err := l.SaveToFile(); err != nil {
//	    return err
//	}
//
//	l2 := entitylog.New[inventory.Item]("inventory.json")
//	err := l2.LoadFromFile() // l2.GetAll() is the same as l.GetAll()
//
// A Log is not safe for concurrent use.
package entitylog

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/kjk/entitystore/atomicfile"
	"github.com/kjk/entitystore/log"

	"github.com/tidwall/pretty"
)

// Log is an ordered list of T bound to a file.
// Unlike keyedstore.Store it doesn't check uniqueness of ids.
type Log[T any] struct {
	// if true, saved JSON is indented
	Pretty bool
	// if true, numbers decoded into interface{} values are json.Number
	// instead of float64. Useful when T is a map.
	UseNumber bool
	// if true, fields in the file that T doesn't have make the file invalid
	DisallowUnknownFields bool
	// permissions of saved file. If 0, an existing file keeps its
	// permissions and a new one gets atomicfile.DefaultPerm.
	FilePerm os.FileMode

	path  string
	items []T
}

// New creates an empty log bound to path
func New[T any](path string) *Log[T] {
	return &Log[T]{
		path: path,
	}
}

// Path returns the path of the file
func (l *Log[T]) Path() string {
	return l.path
}

// Add appends e
func (l *Log[T]) Add(e T) {
	l.items = append(l.items, e)
}

func (l *Log[T]) AddAll(items ...T) {
	l.items = append(l.items, items...)
}

// GetAll returns a copy of entities in the order they were added
func (l *Log[T]) GetAll() []T {
	return append([]T{}, l.items...)
}

// Find returns entities for which pred returns true, in order
func (l *Log[T]) Find(pred func(T) bool) []T {
	var res []T
	for _, e := range l.items {
		if pred(e) {
			res = append(res, e)
		}
	}
	return res
}

func (l *Log[T]) Len() int {
	return len(l.items)
}

// Clear removes all entities from memory. The file is not changed.
func (l *Log[T]) Clear() {
	l.items = nil
}

func (l *Log[T]) marshal() ([]byte, error) {
	items := l.items
	if items == nil {
		// we want [], not null
		items = []T{}
	}
	d, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	if l.Pretty {
		return pretty.Pretty(d), nil
	}
	return append(d, '\n'), nil
}

func (l *Log[T]) writeFile(d []byte) error {
	f, err := atomicfile.New(l.path)
	if err != nil {
		return err
	}
	// no-op after successful Close(), removes temp file otherwise
	defer f.RemoveIfNotClosed()
	if l.FilePerm != 0 {
		f.SetPerm(l.FilePerm)
	}

	w, err := newCompressWriter(f, CompressionForPath(l.path))
	if err != nil {
		return err
	}
	if _, err = w.Write(d); err != nil {
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	return f.Close()
}

// SaveToFile writes all entities to the file, replacing previous content.
// On failure returns *PersistenceError and the file is left as it was.
func (l *Log[T]) SaveToFile() error {
	timeStart := time.Now()
	d, err := l.marshal()
	if err == nil {
		err = l.writeFile(d)
	}
	if err != nil {
		return &PersistenceError{Op: OpSave, Path: l.path, Err: err}
	}
	dur := time.Since(timeStart)
	log.Verbosef("entitylog: saved %d records to '%s' in %s\n", len(l.items), l.path, dur)
	log.EventWithDuration("entitylog.save", dur, "path", l.path, "count", len(l.items), "size", len(d))
	return nil
}

func (l *Log[T]) decode(r io.Reader) ([]T, error) {
	dec := json.NewDecoder(r)
	if l.UseNumber {
		dec.UseNumber()
	}
	if l.DisallowUnknownFields {
		dec.DisallowUnknownFields()
	}
	var items []T
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}
	// only whitespace is allowed after the array
	// reading to the end also verifies checksums of compressed data
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errTrailingData
		}
		return nil, err
	}
	return items, nil
}

func (l *Log[T]) readFile() ([]T, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := newDecompressReader(f, CompressionForPath(l.path))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return l.decode(r)
}

// LoadFromFile replaces entities in memory with those read from the file.
// If the file doesn't exist, it does nothing and returns nil.
// If the file can't be read or decoded, it returns *PersistenceError
// and entities in memory are not changed.
func (l *Log[T]) LoadFromFile() error {
	timeStart := time.Now()
	items, err := l.readFile()
	if errors.Is(err, fs.ErrNotExist) {
		log.Verbosef("entitylog: '%s' doesn't exist, nothing to load\n", l.path)
		return nil
	}
	if err != nil {
		return &PersistenceError{Op: OpLoad, Path: l.path, Err: err}
	}
	l.items = items
	dur := time.Since(timeStart)
	log.Verbosef("entitylog: loaded %d records from '%s' in %s\n", len(items), l.path, dur)
	log.EventWithDuration("entitylog.load", dur, "path", l.path, "count", len(items))
	return nil
}
