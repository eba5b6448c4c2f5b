package quest

// Conversation is a static graph of NPC and player options. NPC options point
// at player options and player options point back at NPC options; the
// conversation starts at one of the options listed in Start.
//
// Nothing here is a runtime state machine. Pointers may name options that are
// never reached and a stopping conversation may still have outgoing pointers.
type Conversation struct {
	Meta

	// Quester is the NPC's display name.
	Quester Text

	// Stop ends the conversation when the player walks away.
	Stop bool

	Start       []Ref[*NpcOption]
	FinalEvents []Ref[*Event]

	NpcOptions    *Registry[*NpcOption]
	PlayerOptions *Registry[*PlayerOption]
}

// NewConversation returns an unindexed, empty conversation of package pkg.
func NewConversation(pkg, id string) *Conversation {
	return &Conversation{
		Meta:          Meta{ID: id, Index: Unindexed},
		NpcOptions:    NewRegistry[*NpcOption](pkg, KindNpcOption),
		PlayerOptions: NewRegistry[*PlayerOption](pkg, KindPlayerOption),
	}
}

// Normalize compacts the indices of both option registries, of the starting
// options, final events and of every reference list held by the options.
func (c *Conversation) Normalize() {
	c.NpcOptions.Normalize()
	c.PlayerOptions.Normalize()
	NormalizeRefs(c.Start)
	NormalizeRefs(c.FinalEvents)
	for _, o := range c.NpcOptions.items {
		o.normalize()
		NormalizeRefs(o.Pointers)
	}
	for _, o := range c.PlayerOptions.items {
		o.normalize()
		NormalizeRefs(o.Pointers)
	}
}

// Option is the part NPC and player options share.
type Option struct {
	Meta
	Text       Text
	Events     []Ref[*Event]
	Conditions []ConditionRef
}

// Details returns o itself. It gives [ConversationOption] access to the
// shared fields.
func (o *Option) Details() *Option { return o }

func (o *Option) normalize() {
	NormalizeRefs(o.Events)
	NormalizeConditionRefs(o.Conditions)
}

// ConversationOption is implemented by [NpcOption] and [PlayerOption].
type ConversationOption interface {
	Entity
	Details() *Option
	// PointerIDs returns the ids of the options this one points at, in order.
	PointerIDs() []string
}

// NpcOption is something the NPC says. Its pointers name player options.
type NpcOption struct {
	Option
	Pointers []Ref[*PlayerOption]
}

// NewNpcOption returns an unindexed NPC option with the given id.
func NewNpcOption(id string) *NpcOption {
	return &NpcOption{Option: Option{Meta: Meta{ID: id, Index: Unindexed}}}
}

// PointerIDs implements [ConversationOption].
func (o *NpcOption) PointerIDs() []string { return refIDs(o.Pointers) }

// PlayerOption is a reply the player can pick. Its pointers name NPC options.
type PlayerOption struct {
	Option
	Pointers []Ref[*NpcOption]
}

// NewPlayerOption returns an unindexed player option with the given id.
func NewPlayerOption(id string) *PlayerOption {
	return &PlayerOption{Option: Option{Meta: Meta{ID: id, Index: Unindexed}}}
}

// PointerIDs implements [ConversationOption].
func (o *PlayerOption) PointerIDs() []string { return refIDs(o.Pointers) }

func refIDs[T Entity](refs []Ref[T]) []string {
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.Target.ID
	}
	return ids
}

// Reachable walks the pointer graph from the starting options and returns
// the ids of every NPC and player option that can be reached.
func (c *Conversation) Reachable() (npc, player map[string]bool) {
	npc = make(map[string]bool)
	player = make(map[string]bool)
	queue := make([]string, 0, len(c.Start))
	for _, r := range c.Start {
		queue = append(queue, r.Target.ID)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if npc[id] {
			continue
		}
		npc[id] = true
		o, ok := c.NpcOptions.Get(id)
		if !ok {
			continue
		}
		for _, pid := range o.PointerIDs() {
			if player[pid] {
				continue
			}
			player[pid] = true
			if p, ok := c.PlayerOptions.Get(pid); ok {
				queue = append(queue, p.PointerIDs()...)
			}
		}
	}
	return npc, player
}
