// Package keyedstore provides an in-memory collection of entities
// keyed by a unique integer id.
//
// Operations either succeed or fail without changing the store.
// Entities are returned in insertion order.
//
//	s := keyedstore.New[inventory.ElectronicItem]()
//	err := s.Add(inventory.ElectronicItem{ID: 1, Name: "Laptop", Quantity: 5})
//	err = s.Add(inventory.ElectronicItem{ID: 1, Name: "Phone"})
//	// errors.Is(err, keyedstore.ErrDuplicateKey) == true
//
// Store is not safe for concurrent use. Callers that share a store
// between goroutines must guard it with a mutex.
package keyedstore

import (
	"errors"
	"slices"
)

// Entity is a value with a stable integer identity
type Entity interface {
	Key() int
}

// Validator is implemented by entities that can check their own fields.
// Add and Update reject values for which Validate returns an error.
type Validator interface {
	Validate() error
}

// Quantified is implemented by entities with a quantity that can be
// changed via Store.UpdateQuantity. WithQuantity returns a copy with
// quantity set to qty.
type Quantified[T any] interface {
	WithQuantity(qty int) T
}

var (
	errNegativeQuantity = errors.New("quantity cannot be negative")
	errNoQuantity       = errors.New("entity has no quantity")
	errIDChanged        = errors.New("id is immutable")
)

// Store holds entities of type T keyed by Key(). The zero value is an empty store.
type Store[T Entity] struct {
	items map[int]T
	// ids in insertion order
	order []int
}

func New[T Entity]() *Store[T] {
	return &Store[T]{
		items: map[int]T{},
	}
}

func validate[T Entity](e T) error {
	if v, ok := any(e).(Validator); ok {
		if err := v.Validate(); err != nil {
			return invalidValue(e.Key(), err)
		}
	}
	return nil
}

func (s *Store[T]) insert(e T) {
	if s.items == nil {
		s.items = map[int]T{}
	}
	id := e.Key()
	s.items[id] = e
	s.order = append(s.order, id)
}

// Add inserts e. Fails with *DuplicateKeyError if its id is already stored
// or *InvalidValueError if it fails validation.
func (s *Store[T]) Add(e T) error {
	id := e.Key()
	if _, ok := s.items[id]; ok {
		return &DuplicateKeyError{ID: id}
	}
	if err := validate(e); err != nil {
		return err
	}
	s.insert(e)
	return nil
}

// AddAll inserts all items or none of them
func (s *Store[T]) AddAll(items []T) error {
	seen := make(map[int]bool, len(items))
	for _, e := range items {
		id := e.Key()
		if _, ok := s.items[id]; ok || seen[id] {
			return &DuplicateKeyError{ID: id}
		}
		seen[id] = true
		if err := validate(e); err != nil {
			return err
		}
	}
	for _, e := range items {
		s.insert(e)
	}
	return nil
}

// GetByID returns the entity with a given id or *NotFoundError
func (s *Store[T]) GetByID(id int) (T, error) {
	e, ok := s.items[id]
	if !ok {
		var zero T
		return zero, &NotFoundError{ID: id}
	}
	return e, nil
}

// Contains returns true if entity with id is stored
func (s *Store[T]) Contains(id int) bool {
	_, ok := s.items[id]
	return ok
}

// Remove deletes the entity with a given id or returns *NotFoundError
func (s *Store[T]) Remove(id int) error {
	if _, ok := s.items[id]; !ok {
		return &NotFoundError{ID: id}
	}
	delete(s.items, id)
	if idx := slices.Index(s.order, id); idx >= 0 {
		s.order = slices.Delete(s.order, idx, idx+1)
	}
	return nil
}

// Update replaces the entity with id by the result of fn.
// fn gets a copy of the current value. An error from fn, a result with
// a different id or a result failing validation is reported as
// *InvalidValueError and the store is not changed.
func (s *Store[T]) Update(id int, fn func(T) (T, error)) error {
	cur, ok := s.items[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	updated, err := fn(cur)
	if err != nil {
		return invalidValue(id, err)
	}
	if updated.Key() != id {
		return invalidValue(id, errIDChanged)
	}
	if err = validate(updated); err != nil {
		return err
	}
	s.items[id] = updated
	return nil
}

// UpdateQuantity sets quantity of entity with id. qty must not be negative.
// T must implement Quantified[T].
func (s *Store[T]) UpdateQuantity(id int, qty int) error {
	if qty < 0 {
		return invalidValue(id, errNegativeQuantity)
	}
	return s.Update(id, func(e T) (T, error) {
		q, ok := any(e).(Quantified[T])
		if !ok {
			return e, errNoQuantity
		}
		return q.WithQuantity(qty), nil
	})
}

// GetAll returns a copy of all entities in insertion order.
// Changing the returned slice doesn't change the store.
func (s *Store[T]) GetAll() []T {
	res := make([]T, 0, len(s.order))
	for _, id := range s.order {
		res = append(res, s.items[id])
	}
	return res
}

// Find returns entities for which pred returns true, in insertion order
func (s *Store[T]) Find(pred func(T) bool) []T {
	var res []T
	for _, id := range s.order {
		if e := s.items[id]; pred(e) {
			res = append(res, e)
		}
	}
	return res
}

// Len returns number of stored entities
func (s *Store[T]) Len() int {
	return len(s.order)
}
