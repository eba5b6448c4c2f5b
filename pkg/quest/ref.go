package quest

import (
	"errors"
	"fmt"
	"strings"
)

// Ref is a non-owning link to an entity of type T, named by identifier.
// Index is the reference's position in the list it belongs to; it orders the
// list and has nothing to do with the target's own index.
type Ref[T Entity] struct {
	Target Identifier
	Index  int
}

// NewRef returns a reference to target at position index.
func NewRef[T Entity](target Identifier, index int) Ref[T] {
	return Ref[T]{Target: target, Index: index}
}

// Resolve looks the target up in reg. It reports false when the target
// belongs to another package or does not exist.
func (r Ref[T]) Resolve(reg *Registry[T]) (T, bool) {
	if !r.Target.IsLocal(reg.Package()) {
		var zero T
		return zero, false
	}
	return reg.Get(r.Target.ID)
}

// ConditionRef is a reference to a condition that may be negated.
type ConditionRef struct {
	Ref[*Condition]
	Negated bool
}

// Token returns the reference as written in package pkg, with a leading "!"
// when negated.
func (c ConditionRef) Token(pkg string) string {
	if c.Negated {
		return "!" + c.Target.Token(pkg)
	}
	return c.Target.Token(pkg)
}

// ParseRef resolves a single reference token written inside reg's package.
// A local target is fetched with [Registry.GetOrCreate], creating a
// placeholder through newFn when it has not been seen yet. A target in
// another package is only named, never created.
func ParseRef[T Entity](token string, reg *Registry[T], newFn func(string) T) (Ref[T], error) {
	id, err := ParseIdentifier(reg.Package(), reg.Kind(), token)
	if err != nil {
		return Ref[T]{}, err
	}
	if id.IsLocal(reg.Package()) {
		id.Package = reg.Package()
		if _, err := reg.GetOrCreate(id.ID, newFn); err != nil {
			return Ref[T]{}, err
		}
	}
	return Ref[T]{Target: id}, nil
}

// ParseRefs reads a comma-separated list of reference tokens. Each reference
// gets its 0-based position in the list as index.
//
// Blank tokens (for instance from a trailing comma) are skipped and reported
// in the returned error, joined with [ErrInvalidIdentifier]; the returned
// slice still holds every valid reference.
func ParseRefs[T Entity](raw string, reg *Registry[T], newFn func(string) T) ([]Ref[T], error) {
	tokens := strings.Split(raw, ",")
	refs := make([]Ref[T], 0, len(tokens))
	var errs []error
	for i, tok := range tokens {
		ref, err := ParseRef(tok, reg, newFn)
		if err != nil {
			errs = append(errs, fmt.Errorf("token %d: %w", i, err))
			continue
		}
		ref.Index = len(refs)
		refs = append(refs, ref)
	}
	return refs, errors.Join(errs...)
}

// ParseLocalRefs is [ParseRefs] for lists that can only name entities of the
// same registry, such as conversation pointers. Dots are part of the id.
func ParseLocalRefs[T Entity](raw string, reg *Registry[T], newFn func(string) T) ([]Ref[T], error) {
	tokens := strings.Split(raw, ",")
	refs := make([]Ref[T], 0, len(tokens))
	var errs []error
	for i, tok := range tokens {
		id := strings.TrimSpace(tok)
		if _, err := reg.GetOrCreate(id, newFn); err != nil {
			errs = append(errs, fmt.Errorf("token %d: %w", i, err))
			continue
		}
		refs = append(refs, Ref[T]{Target: reg.Identifier(id), Index: len(refs)})
	}
	return refs, errors.Join(errs...)
}

// ParseConditionRefs reads a comma-separated list of condition tokens.
//
// Every leading "!" is stripped from a token and the reference is negated
// when at least one was present: "!!done" is negated, exactly like "!done".
func ParseConditionRefs(raw string, reg *Registry[*Condition]) ([]ConditionRef, error) {
	tokens := strings.Split(raw, ",")
	refs := make([]ConditionRef, 0, len(tokens))
	var errs []error
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		stripped := strings.TrimLeft(tok, "!")
		negated := len(stripped) != len(tok)
		ref, err := ParseRef(stripped, reg, NewCondition)
		if err != nil {
			errs = append(errs, fmt.Errorf("token %d: %w", i, err))
			continue
		}
		ref.Index = len(refs)
		refs = append(refs, ConditionRef{Ref: ref, Negated: negated})
	}
	return refs, errors.Join(errs...)
}

// FormatRefs joins refs with "," in slice order, as written inside pkg.
func FormatRefs[T Entity](pkg string, refs []Ref[T]) string {
	tokens := make([]string, len(refs))
	for i, r := range refs {
		tokens[i] = r.Target.Token(pkg)
	}
	return strings.Join(tokens, ",")
}

// FormatConditionRefs joins refs with ",", re-adding "!" to negated ones.
func FormatConditionRefs(pkg string, refs []ConditionRef) string {
	tokens := make([]string, len(refs))
	for i, r := range refs {
		tokens[i] = r.Token(pkg)
	}
	return strings.Join(tokens, ",")
}

// NormalizeRefs stable-sorts refs by index and renumbers them 0..n-1.
func NormalizeRefs[T Entity](refs []Ref[T]) {
	reindex(refs, func(r *Ref[T]) *int { return &r.Index })
}

// NormalizeConditionRefs is [NormalizeRefs] for condition references.
func NormalizeConditionRefs(refs []ConditionRef) {
	reindex(refs, func(r *ConditionRef) *int { return &r.Index })
}
