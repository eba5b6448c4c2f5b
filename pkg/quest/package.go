package quest

import (
	"iter"
	"slices"
)

// Package is one quest package: every registry of every entity kind plus the
// package's default language.
type Package struct {
	// Name is the package's directory name inside an archive.
	Name string

	// DefaultLanguage is the language code used when a text has no default.
	DefaultLanguage string

	Conversations *Registry[*Conversation]
	Events        *Registry[*Event]
	Conditions    *Registry[*Condition]
	Objectives    *Registry[*Objective]
	Journal       *Registry[*JournalEntry]
	Items         *Registry[*Item]
	Variables     *Registry[*GlobalVariable]
	Locations     *Registry[*GlobalLocation]
	StaticEvents  *Registry[*StaticEvent]
	Cancelers     *Registry[*QuestCanceler]
	NpcBindings   *Registry[*NpcBinding]
	MainPage      *Registry[*MainPageLine]
	Tags          *Registry[*Tag]
	Points        *Registry[*PointCategory]
}

// NewPackage returns an empty package called name.
func NewPackage(name string) *Package {
	return &Package{
		Name:          name,
		Conversations: NewRegistry[*Conversation](name, KindConversation),
		Events:        NewRegistry[*Event](name, KindEvent),
		Conditions:    NewRegistry[*Condition](name, KindCondition),
		Objectives:    NewRegistry[*Objective](name, KindObjective),
		Journal:       NewRegistry[*JournalEntry](name, KindJournal),
		Items:         NewRegistry[*Item](name, KindItem),
		Variables:     NewRegistry[*GlobalVariable](name, KindVariable),
		Locations:     NewRegistry[*GlobalLocation](name, KindLocation),
		StaticEvents:  NewRegistry[*StaticEvent](name, KindStaticEvent),
		Cancelers:     NewRegistry[*QuestCanceler](name, KindCanceler),
		NpcBindings:   NewRegistry[*NpcBinding](name, KindNpcBinding),
		MainPage:      NewRegistry[*MainPageLine](name, KindMainPage),
		Tags:          NewRegistry[*Tag](name, KindTag),
		Points:        NewRegistry[*PointCategory](name, KindPoint),
	}
}

// NewConversation constructs a conversation belonging to p. It has the shape
// [Registry.GetOrCreate] expects for p.Conversations.
func (p *Package) NewConversation(id string) *Conversation {
	return NewConversation(p.Name, id)
}

// Normalize compacts the indices of every registry and of every reference
// list whose order is significant. Reference lists keep their authored order;
// they are never sorted by id.
func (p *Package) Normalize() {
	p.Conversations.Normalize()
	p.Events.Normalize()
	p.Conditions.Normalize()
	p.Objectives.Normalize()
	p.Journal.Normalize()
	p.Items.Normalize()
	p.Variables.Normalize()
	p.Locations.Normalize()
	p.StaticEvents.Normalize()
	p.Cancelers.Normalize()
	p.NpcBindings.Normalize()
	p.MainPage.Normalize()
	p.Tags.Normalize()
	p.Points.Normalize()

	for _, c := range p.Conversations.items {
		c.Normalize()
	}
	for _, c := range p.Cancelers.items {
		NormalizeConditionRefs(c.Conditions)
		NormalizeRefs(c.Events)
		NormalizeRefs(c.Objectives)
		NormalizeRefs(c.Tags)
		NormalizeRefs(c.Points)
		NormalizeRefs(c.Journal)
	}
	for _, l := range p.MainPage.items {
		NormalizeConditionRefs(l.Conditions)
	}
}

// Counts returns the number of entities per kind. Option counts are summed
// over all conversations.
func (p *Package) Counts() map[Kind]int {
	counts := map[Kind]int{
		KindConversation: p.Conversations.Len(),
		KindEvent:        p.Events.Len(),
		KindCondition:    p.Conditions.Len(),
		KindObjective:    p.Objectives.Len(),
		KindJournal:      p.Journal.Len(),
		KindItem:         p.Items.Len(),
		KindVariable:     p.Variables.Len(),
		KindLocation:     p.Locations.Len(),
		KindStaticEvent:  p.StaticEvents.Len(),
		KindCanceler:     p.Cancelers.Len(),
		KindNpcBinding:   p.NpcBindings.Len(),
		KindMainPage:     p.MainPage.Len(),
		KindTag:          p.Tags.Len(),
		KindPoint:        p.Points.Len(),
	}
	for _, c := range p.Conversations.items {
		counts[KindNpcOption] += c.NpcOptions.Len()
		counts[KindPlayerOption] += c.PlayerOptions.Len()
	}
	return counts
}

// AllNpcOptions returns the NPC options of every conversation, the ones of
// current first. current may be nil.
func (p *Package) AllNpcOptions(current *Conversation) []*NpcOption {
	var out []*NpcOption
	for _, c := range p.conversationsFirst(current) {
		out = append(out, c.NpcOptions.items...)
	}
	return out
}

// AllPlayerOptions returns the player options of every conversation, the
// ones of current first. current may be nil.
func (p *Package) AllPlayerOptions(current *Conversation) []*PlayerOption {
	var out []*PlayerOption
	for _, c := range p.conversationsFirst(current) {
		out = append(out, c.PlayerOptions.items...)
	}
	return out
}

func (p *Package) conversationsFirst(current *Conversation) []*Conversation {
	convs := slices.Clone(p.Conversations.items)
	if i := slices.Index(convs, current); i > 0 {
		convs = slices.Insert(slices.Delete(convs, i, i+1), 0, current)
	}
	return convs
}

// Reference is one link from a location inside the package to a target.
type Reference struct {
	// From describes where the link is written, e.g. "cancel.q1.events".
	From   string
	Target Identifier
}

// References yields every id reference held by the package, in save order.
func (p *Package) References() iter.Seq[Reference] {
	return func(yield func(Reference) bool) {
		emit := func(from string, ids ...Identifier) bool {
			for _, id := range ids {
				if !yield(Reference{From: from, Target: id}) {
					return false
				}
			}
			return true
		}
		for _, c := range p.Conversations.items {
			prefix := "conversations." + c.ID
			if !emit(prefix+".first", targets(c.Start)...) ||
				!emit(prefix+".final", targets(c.FinalEvents)...) {
				return
			}
			for _, o := range c.NpcOptions.items {
				at := prefix + ".NPC_options." + o.ID
				if !emit(at+".events", targets(o.Events)...) ||
					!emit(at+".conditions", conditionTargets(o.Conditions)...) ||
					!emit(at+".pointers", targets(o.Pointers)...) {
					return
				}
			}
			for _, o := range c.PlayerOptions.items {
				at := prefix + ".player_options." + o.ID
				if !emit(at+".events", targets(o.Events)...) ||
					!emit(at+".conditions", conditionTargets(o.Conditions)...) ||
					!emit(at+".pointers", targets(o.Pointers)...) {
					return
				}
			}
		}
		for _, l := range p.Locations.items {
			if !emit("global_locations", l.Objective.Target) {
				return
			}
		}
		for _, s := range p.StaticEvents.items {
			if !emit("static_events."+s.ID, s.Event.Target) {
				return
			}
		}
		for _, b := range p.NpcBindings.items {
			if !emit("npcs."+b.ID, b.Conversation.Target) {
				return
			}
		}
		for _, c := range p.Cancelers.items {
			at := "cancel." + c.ID
			if !emit(at+".conditions", conditionTargets(c.Conditions)...) ||
				!emit(at+".events", targets(c.Events)...) ||
				!emit(at+".objectives", targets(c.Objectives)...) ||
				!emit(at+".tags", targets(c.Tags)...) ||
				!emit(at+".points", targets(c.Points)...) ||
				!emit(at+".journal", targets(c.Journal)...) {
				return
			}
		}
		for _, l := range p.MainPage.items {
			if !emit("journal_main_page."+l.ID+".conditions", conditionTargets(l.Conditions)...) {
				return
			}
		}
	}
}

// Texts yields every translatable text of the package keyed by where it is
// written.
func (p *Package) Texts() iter.Seq2[string, *Text] {
	return func(yield func(string, *Text) bool) {
		for _, e := range p.Journal.items {
			if !yield("journal."+e.ID, &e.Text) {
				return
			}
		}
		for _, c := range p.Conversations.items {
			prefix := "conversations." + c.ID
			if !yield(prefix+".quester", &c.Quester) {
				return
			}
			for _, o := range c.NpcOptions.items {
				if !yield(prefix+".NPC_options."+o.ID+".text", &o.Text) {
					return
				}
			}
			for _, o := range c.PlayerOptions.items {
				if !yield(prefix+".player_options."+o.ID+".text", &o.Text) {
					return
				}
			}
		}
		for _, c := range p.Cancelers.items {
			if !yield("cancel."+c.ID+".name", &c.Name) {
				return
			}
		}
		for _, l := range p.MainPage.items {
			if !yield("journal_main_page."+l.ID+".text", &l.Text) {
				return
			}
		}
	}
}

func targets[T Entity](refs []Ref[T]) []Identifier {
	ids := make([]Identifier, len(refs))
	for i, r := range refs {
		ids[i] = r.Target
	}
	return ids
}

func conditionTargets(refs []ConditionRef) []Identifier {
	ids := make([]Identifier, len(refs))
	for i, r := range refs {
		ids[i] = r.Target
	}
	return ids
}
