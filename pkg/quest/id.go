package quest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidIdentifier is returned when an id is empty or blank.
var ErrInvalidIdentifier = errors.New("quest: invalid identifier")

// ErrNotFound is returned by lookups and removals when no entity has the
// requested id.
var ErrNotFound = errors.New("quest: entity not found")

// ErrDuplicateID is returned by [Registry.Add] when an entity with the same id
// already exists in the registry.
var ErrDuplicateID = errors.New("quest: entity with that ID already exists")

// Kind names an entity kind. Ids are unique per kind per package.
type Kind string

const (
	KindConversation Kind = "conversation"
	KindEvent        Kind = "event"
	KindCondition    Kind = "condition"
	KindObjective    Kind = "objective"
	KindJournal      Kind = "journal"
	KindItem         Kind = "item"
	KindVariable     Kind = "variable"
	KindLocation     Kind = "global_location"
	KindStaticEvent  Kind = "static_event"
	KindCanceler     Kind = "canceler"
	KindNpcBinding   Kind = "npc_binding"
	KindMainPage     Kind = "main_page_line"
	KindTag          Kind = "tag"
	KindPoint        Kind = "point_category"
	KindNpcOption    Kind = "npc_option"
	KindPlayerOption Kind = "player_option"
)

// IsValid reports whether k is a recognised entity kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindConversation, KindEvent, KindCondition, KindObjective, KindJournal,
		KindItem, KindVariable, KindLocation, KindStaticEvent, KindCanceler,
		KindNpcBinding, KindMainPage, KindTag, KindPoint, KindNpcOption, KindPlayerOption:
		return true
	}
	return false
}

// Identifier is the full name of an entity: the package it lives in, its kind
// and its id within that kind.
type Identifier struct {
	Package string
	Kind    Kind
	ID      string
}

// String returns "package.id".
func (i Identifier) String() string {
	if i.Package == "" {
		return i.ID
	}
	return i.Package + "." + i.ID
}

// Token returns the form used inside the package named pkg: the bare id for
// local entities, "package.id" for entities of other packages.
func (i Identifier) Token(pkg string) string {
	if i.Package == "" || i.Package == pkg {
		return i.ID
	}
	return i.Package + "." + i.ID
}

// IsLocal reports whether i names an entity of the package pkg.
func (i Identifier) IsLocal(pkg string) bool {
	return i.Package == "" || i.Package == pkg
}

// ParseIdentifier reads a reference token written inside package pkg.
//
// A token without a dot names an entity of pkg. A token "other.id" names the
// entity id of package other; the id is everything after the last dot.
func ParseIdentifier(pkg string, kind Kind, token string) (Identifier, error) {
	token = strings.TrimSpace(token)
	target := pkg
	if i := strings.LastIndexByte(token, '.'); i >= 0 {
		target = token[:i]
		token = token[i+1:]
		if strings.TrimSpace(target) == "" {
			return Identifier{}, fmt.Errorf("%w: empty package in %q", ErrInvalidIdentifier, "."+token)
		}
	}
	if token == "" {
		return Identifier{}, fmt.Errorf("%w: empty %s id", ErrInvalidIdentifier, kind)
	}
	return Identifier{Package: target, Kind: kind, ID: token}, nil
}

func checkID(kind Kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty %s id", ErrInvalidIdentifier, kind)
	}
	return nil
}
