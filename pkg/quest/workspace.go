package quest

import "fmt"

// Workspace is a set of loaded packages that may reference each other. It is
// the explicit context for cross-package lookups; packages never reach each
// other through global state.
//
// A Workspace only reads the packages it holds.
type Workspace struct {
	byName map[string]*Package
	order  []*Package
}

// NewWorkspace returns a workspace holding pkgs. It fails with
// [ErrDuplicateID] when two packages share a name.
func NewWorkspace(pkgs ...*Package) (*Workspace, error) {
	w := &Workspace{byName: make(map[string]*Package, len(pkgs))}
	for _, p := range pkgs {
		if err := w.Add(p); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Add registers p. It fails with [ErrDuplicateID] when a package with the
// same name is already present.
func (w *Workspace) Add(p *Package) error {
	if _, ok := w.byName[p.Name]; ok {
		return fmt.Errorf("%w: package %q", ErrDuplicateID, p.Name)
	}
	w.byName[p.Name] = p
	w.order = append(w.order, p)
	return nil
}

// Package returns the package called name.
func (w *Workspace) Package(name string) (*Package, bool) {
	p, ok := w.byName[name]
	return p, ok
}

// Packages returns the packages in the order they were added.
func (w *Workspace) Packages() []*Package {
	out := make([]*Package, len(w.order))
	copy(out, w.order)
	return out
}

// Lookup finds the entity id names, using pick to choose the registry of the
// identified package, e.g. func(p *Package) *Registry[*Event] { return p.Events }.
func Lookup[T Entity](w *Workspace, id Identifier, pick func(*Package) *Registry[T]) (T, bool) {
	p, ok := w.byName[id.Package]
	if !ok {
		var zero T
		return zero, false
	}
	return pick(p).Get(id.ID)
}

// Resolve is [Lookup] for a reference.
func Resolve[T Entity](w *Workspace, ref Ref[T], pick func(*Package) *Registry[T]) (T, bool) {
	return Lookup(w, ref.Target, pick)
}

// Exists reports whether the entity id names is present in the workspace.
// Option kinds are looked up across all conversations of the package.
func (w *Workspace) Exists(id Identifier) bool {
	p, ok := w.byName[id.Package]
	if !ok {
		return false
	}
	return p.Has(id.Kind, id.ID)
}

// Has reports whether p holds an entity of kind with the given id. Option
// kinds are looked up across all conversations.
func (p *Package) Has(kind Kind, id string) bool {
	var ok bool
	switch kind {
	case KindConversation:
		_, ok = p.Conversations.Get(id)
	case KindEvent:
		_, ok = p.Events.Get(id)
	case KindCondition:
		_, ok = p.Conditions.Get(id)
	case KindObjective:
		_, ok = p.Objectives.Get(id)
	case KindJournal:
		_, ok = p.Journal.Get(id)
	case KindItem:
		_, ok = p.Items.Get(id)
	case KindVariable:
		_, ok = p.Variables.Get(id)
	case KindLocation:
		_, ok = p.Locations.Get(id)
	case KindStaticEvent:
		_, ok = p.StaticEvents.Get(id)
	case KindCanceler:
		_, ok = p.Cancelers.Get(id)
	case KindNpcBinding:
		_, ok = p.NpcBindings.Get(id)
	case KindMainPage:
		_, ok = p.MainPage.Get(id)
	case KindTag:
		_, ok = p.Tags.Get(id)
	case KindPoint:
		_, ok = p.Points.Get(id)
	case KindNpcOption:
		for _, c := range p.Conversations.items {
			if _, ok = c.NpcOptions.Get(id); ok {
				break
			}
		}
	case KindPlayerOption:
		for _, c := range p.Conversations.items {
			if _, ok = c.PlayerOptions.Get(id); ok {
				break
			}
		}
	}
	return ok
}
