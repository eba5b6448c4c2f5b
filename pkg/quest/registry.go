package quest

import (
	"cmp"
	"fmt"
	"slices"
)

// Unindexed is the index of an entity that has been created but not yet
// given a position, typically a placeholder created by a forward reference.
const Unindexed = -1

// Meta is the identity and ordering data every entity carries.
type Meta struct {
	// ID is unique within the entity's kind and package.
	ID string

	// Index decides save and display order only. It is [Unindexed] until the
	// entity is positioned.
	Index int
}

// Metadata returns m. It makes every struct embedding Meta an [Entity].
func (m *Meta) Metadata() *Meta { return m }

// Entity is implemented by every model type stored in a [Registry].
type Entity interface {
	Metadata() *Meta
}

// Registry is the ordered, id-keyed collection of one entity kind within one
// package. It never holds two entities with the same id.
//
// The zero value is not usable; construct with [NewRegistry].
type Registry[T Entity] struct {
	pkg   string
	kind  Kind
	items []T
	byID  map[string]T

	// next is the index handed out by Define to the next entity that is
	// still unindexed.
	next int
}

// NewRegistry returns an empty registry for entities of kind in package pkg.
func NewRegistry[T Entity](pkg string, kind Kind) *Registry[T] {
	return &Registry[T]{
		pkg:  pkg,
		kind: kind,
		byID: make(map[string]T),
	}
}

// Package returns the name of the package owning the registry.
func (r *Registry[T]) Package() string { return r.pkg }

// Kind returns the entity kind stored in the registry.
func (r *Registry[T]) Kind() Kind { return r.kind }

// Len returns the number of entities.
func (r *Registry[T]) Len() int { return len(r.items) }

// Identifier returns the full identifier of id within this registry.
func (r *Registry[T]) Identifier(id string) Identifier {
	return Identifier{Package: r.pkg, Kind: r.kind, ID: id}
}

// Get returns the entity with the given id.
func (r *Registry[T]) Get(id string) (T, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// GetOrCreate returns the entity with the given id, or constructs one with
// newFn, appends it with index [Unindexed] and returns it. The constructed
// entity's ID is set to id regardless of what newFn filled in.
//
// It returns [ErrInvalidIdentifier] when id is blank.
func (r *Registry[T]) GetOrCreate(id string, newFn func(id string) T) (T, error) {
	if e, ok := r.byID[id]; ok {
		return e, nil
	}
	if err := checkID(r.kind, id); err != nil {
		var zero T
		return zero, err
	}
	e := newFn(id)
	m := e.Metadata()
	m.ID = id
	m.Index = Unindexed
	r.items = append(r.items, e)
	r.byID[id] = e
	return e, nil
}

// Define is [Registry.GetOrCreate] for the line that defines an entity. If
// the entity is still unindexed it receives the next definition index;
// an entity that already has an index keeps it (first writer wins).
func (r *Registry[T]) Define(id string, newFn func(id string) T) (T, error) {
	e, err := r.GetOrCreate(id, newFn)
	if err != nil {
		return e, err
	}
	if m := e.Metadata(); m.Index < 0 {
		m.Index = r.next
		r.next++
	}
	return e, nil
}

// Add appends e after every existing entity.
// It returns [ErrInvalidIdentifier] for a blank id and [ErrDuplicateID] when
// the id is taken.
func (r *Registry[T]) Add(e T) error {
	m := e.Metadata()
	if err := checkID(r.kind, m.ID); err != nil {
		return err
	}
	if _, ok := r.byID[m.ID]; ok {
		return fmt.Errorf("%w: %s %q", ErrDuplicateID, r.kind, m.ID)
	}
	idx := 0
	for _, it := range r.items {
		idx = max(idx, it.Metadata().Index+1)
	}
	m.Index = idx
	r.next = max(r.next, idx+1)
	r.items = append(r.items, e)
	r.byID[m.ID] = e
	return nil
}

// Remove deletes the entity with the given id. References to it elsewhere
// are left untouched. Returns [ErrNotFound] when no such entity exists.
func (r *Registry[T]) Remove(id string) error {
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("%w: %s %q", ErrNotFound, r.kind, id)
	}
	delete(r.byID, id)
	r.items = slices.DeleteFunc(r.items, func(e T) bool { return e.Metadata().ID == id })
	return nil
}

// All returns the entities in their current order. The slice is a copy; the
// entities are not.
func (r *Registry[T]) All() []T { return slices.Clone(r.items) }

// IDs returns the ids of all entities in their current order.
func (r *Registry[T]) IDs() []string {
	ids := make([]string, len(r.items))
	for i, e := range r.items {
		ids[i] = e.Metadata().ID
	}
	return ids
}

// Normalize stable-sorts the entities by index and renumbers them 0..n-1.
// Calling it again changes nothing.
func (r *Registry[T]) Normalize() {
	reindex(r.items, func(e *T) *int { return &(*e).Metadata().Index })
	r.next = len(r.items)
}

// reindex stable-sorts s by the index idx points at, then renumbers 0..n-1.
// Ties keep their current relative order.
func reindex[E any](s []E, idx func(*E) *int) {
	slices.SortStableFunc(s, func(a, b E) int {
		return cmp.Compare(*idx(&a), *idx(&b))
	})
	for i := range s {
		*idx(&s[i]) = i
	}
}
