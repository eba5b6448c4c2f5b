// Package quest holds the in-memory model of a quest package: the entities a
// package defines (conditions, events, objectives, items, journal entries,
// conversations, cancelers, NPC bindings, variables and so on), the ordered
// id-keyed [Registry] each kind lives in, and the id-based references that
// link entities to each other.
//
// Entities never point at each other directly. A [Ref] names its target by
// [Identifier] and is resolved on demand against the owning [Registry], or
// against another package through a [Workspace]. This lets a package refer to
// an entity before the line that defines it has been read: the registry
// creates an empty placeholder with [Registry.GetOrCreate] and the codec fills
// it in later.
//
// Every entity and every reference carries an integer index that only decides
// save and display order. [Package.Normalize] compacts all indices to 0..n-1.
//
// Nothing in this package is safe for concurrent mutation. Callers serialise
// access to a [Package] (one load, save or edit at a time).
package quest
