package entitylog

import (
	"errors"
	"fmt"
)

const (
	OpSave = "save"
	OpLoad = "load"
)

// ErrPersistence matches *PersistenceError with errors.Is
var ErrPersistence = errors.New("persistence error")

var errTrailingData = errors.New("unexpected data after the end of records")

// PersistenceError is returned when saving or loading a file fails.
// Err is the underlying cause (I/O or decoding error).
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("entitylog: %s of '%s' failed: %s", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
