package keyedstore

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey matches *DuplicateKeyError with errors.Is
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNotFound matches *NotFoundError with errors.Is
	ErrNotFound = errors.New("not found")
	// ErrInvalidValue matches *InvalidValueError with errors.Is
	ErrInvalidValue = errors.New("invalid value")
)

// DuplicateKeyError is returned when adding an entity whose id is already stored
type DuplicateKeyError struct {
	ID int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("entity with id %d already exists", e.ID)
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// NotFoundError is returned when id doesn't refer to a stored entity
type NotFoundError struct {
	ID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entity with id %d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidValueError is returned when a value violates a constraint of the entity.
// Err is the validation error, if there was one.
type InvalidValueError struct {
	ID     int
	Reason string
	Err    error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for entity with id %d: %s", e.ID, e.Reason)
}

func (e *InvalidValueError) Is(target error) bool {
	return target == ErrInvalidValue
}

func (e *InvalidValueError) Unwrap() error {
	return e.Err
}

func invalidValue(id int, err error) *InvalidValueError {
	return &InvalidValueError{ID: id, Reason: err.Error(), Err: err}
}
