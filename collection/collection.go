package collection

import (
	"fmt"
	"sync"

	"github.com/creativeprojects/mailstate/event"
	"github.com/creativeprojects/mailstate/lib"
)

const (
	Added   = "added"
	Removed = "removed"
)

// Collection is an ordered set of entities publishing Added and Removed events.
// The order is the insertion order: z-order for tabs, row order for search options.
type Collection[T comparable] struct {
	mu       sync.Mutex
	hub      *event.Hub
	entities []T
	limit    int
}

type Option[T comparable] func(*Collection[T])

// WithLimit bounds the number of entities (0 means no limit)
func WithLimit[T comparable](limit int) Option[T] {
	return func(c *Collection[T]) {
		c.limit = limit
	}
}

func New[T comparable](options ...Option[T]) *Collection[T] {
	c := &Collection[T]{
		hub:      event.NewHub(),
		entities: make([]T, 0),
	}
	for _, option := range options {
		option(c)
	}
	if err := c.hub.DeclareChannel(Added, Removed); err != nil {
		panic(err)
	}
	return c
}

// Hub gives access to the Added and Removed channels
func (c *Collection[T]) Hub() *event.Hub {
	return c.hub
}

func (c *Collection[T]) Add(entity T) error {
	c.mu.Lock()
	if c.indexOf(entity) >= 0 {
		c.mu.Unlock()
		return lib.ErrDuplicateEntity
	}
	if c.limit > 0 && len(c.entities) >= c.limit {
		c.mu.Unlock()
		return fmt.Errorf("%w: limit is %d", lib.ErrCollectionFull, c.limit)
	}
	c.entities = append(c.entities, entity)
	c.mu.Unlock()

	c.hub.MustPublish(Added, entity)
	return nil
}

func (c *Collection[T]) Remove(entity T) error {
	c.mu.Lock()
	index := c.indexOf(entity)
	if index < 0 {
		c.mu.Unlock()
		return lib.ErrEntityNotFound
	}
	entities := make([]T, 0, len(c.entities)-1)
	entities = append(entities, c.entities[:index]...)
	c.entities = append(entities, c.entities[index+1:]...)
	c.mu.Unlock()

	c.hub.MustPublish(Removed, entity)
	return nil
}

// ForEach calls fn on a snapshot of the collection, in order
func (c *Collection[T]) ForEach(fn func(entity T)) {
	c.mu.Lock()
	entities := make([]T, len(c.entities))
	copy(entities, c.entities)
	c.mu.Unlock()

	for _, entity := range entities {
		fn(entity)
	}
}

func (c *Collection[T]) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entities)
}

func (c *Collection[T]) IsEmpty() bool {
	return c.Count() == 0
}

func (c *Collection[T]) Contains(entity T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.indexOf(entity) >= 0
}

// Last returns the most recently added entity
func (c *Collection[T]) Last() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entities) == 0 {
		var zero T
		return zero, lib.ErrCollectionEmpty
	}
	return c.entities[len(c.entities)-1], nil
}

func (c *Collection[T]) indexOf(entity T) int {
	for i, existing := range c.entities {
		if existing == entity {
			return i
		}
	}
	return -1
}
