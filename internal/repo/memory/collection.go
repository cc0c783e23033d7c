package memory

import (
	"bytes"
	"slices"
	"sync"

	"github.com/tourhub/tourhub/internal/repo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// collection is a goroutine-safe keyed set of records of one kind.
type collection[T any] struct {
	mu    sync.RWMutex
	items map[bson.ObjectID]T
	idOf  func(T) bson.ObjectID
}

func newCollection[T any](idOf func(T) bson.ObjectID) *collection[T] {
	return &collection[T]{
		items: make(map[bson.ObjectID]T),
		idOf:  idOf,
	}
}

// snapshot returns all records in insertion order (ObjectIDs grow over time).
func (c *collection[T]) snapshot() []T {
	c.mu.RLock()
	out := make([]T, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, v)
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b T) int {
		ia, ib := c.idOf(a), c.idOf(b)
		return bytes.Compare(ia[:], ib[:])
	})
	return out
}

func (c *collection[T]) get(id bson.ObjectID) (T, error) {
	c.mu.RLock()
	v, ok := c.items[id]
	c.mu.RUnlock()
	if !ok {
		var zero T
		return zero, repo.ErrNotFound
	}
	return v, nil
}

// find returns the first record, in insertion order, satisfying pred.
func (c *collection[T]) find(pred func(T) bool) (T, error) {
	for _, v := range c.snapshot() {
		if pred(v) {
			return v, nil
		}
	}
	var zero T
	return zero, repo.ErrNotFound
}

func (c *collection[T]) filter(pred func(T) bool) []T {
	var out []T
	for _, v := range c.snapshot() {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// write stores v under id after unique(existing) reports no conflict.
// Caller-supplied checks run under the write lock so they cannot race.
func (c *collection[T]) write(id bson.ObjectID, v T, mustExist bool, unique func(existing T) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; mustExist && !ok {
		return repo.ErrNotFound
	}
	if unique != nil {
		for otherID, existing := range c.items {
			if otherID == id {
				continue
			}
			if err := unique(existing); err != nil {
				return err
			}
		}
	}
	c.items[id] = v
	return nil
}

func (c *collection[T]) remove(id bson.ObjectID) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.items[id]
	if !ok {
		var zero T
		return zero, repo.ErrNotFound
	}
	delete(c.items, id)
	return v, nil
}

func (c *collection[T]) update(id bson.ObjectID, fn func(*T)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.items[id]
	if !ok {
		return repo.ErrNotFound
	}
	fn(&v)
	c.items[id] = v
	return nil
}

// updateIf applies fn to the record under the write lock and keeps the
// result only when fn reports true. A refused update reads as ErrNotFound.
func (c *collection[T]) updateIf(id bson.ObjectID, fn func(*T) bool) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	v, ok := c.items[id]
	if !ok || !fn(&v) {
		return zero, repo.ErrNotFound
	}
	c.items[id] = v
	return v, nil
}
