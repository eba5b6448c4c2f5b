package quest

// Instructed is implemented by entity kinds whose whole content is a single
// instruction string: conditions, events, objectives, items and global
// variables.
type Instructed interface {
	Entity
	Instruction() string
	SetInstruction(s string)
}

// Condition is a named condition instruction.
type Condition struct {
	Meta
	instruction string
}

// NewCondition returns an unindexed condition with the given id.
func NewCondition(id string) *Condition {
	return &Condition{Meta: Meta{ID: id, Index: Unindexed}}
}

func (c *Condition) Instruction() string     { return c.instruction }
func (c *Condition) SetInstruction(s string) { c.instruction = s }

// Event is a named event instruction.
type Event struct {
	Meta
	instruction string
}

// NewEvent returns an unindexed event with the given id.
func NewEvent(id string) *Event {
	return &Event{Meta: Meta{ID: id, Index: Unindexed}}
}

func (e *Event) Instruction() string     { return e.instruction }
func (e *Event) SetInstruction(s string) { e.instruction = s }

// Objective is a named objective instruction.
type Objective struct {
	Meta
	instruction string
}

// NewObjective returns an unindexed objective with the given id.
func NewObjective(id string) *Objective {
	return &Objective{Meta: Meta{ID: id, Index: Unindexed}}
}

func (o *Objective) Instruction() string     { return o.instruction }
func (o *Objective) SetInstruction(s string) { o.instruction = s }

// Item is a named item definition.
type Item struct {
	Meta
	instruction string
}

// NewItem returns an unindexed item with the given id.
func NewItem(id string) *Item {
	return &Item{Meta: Meta{ID: id, Index: Unindexed}}
}

func (i *Item) Instruction() string     { return i.instruction }
func (i *Item) SetInstruction(s string) { i.instruction = s }

// GlobalVariable is a package-wide variable. Its instruction is the value.
type GlobalVariable struct {
	Meta
	value string
}

// NewGlobalVariable returns an unindexed variable with the given id.
func NewGlobalVariable(id string) *GlobalVariable {
	return &GlobalVariable{Meta: Meta{ID: id, Index: Unindexed}}
}

func (v *GlobalVariable) Instruction() string     { return v.value }
func (v *GlobalVariable) SetInstruction(s string) { v.value = s }

// JournalEntry is a translatable journal page.
type JournalEntry struct {
	Meta
	Text Text
}

// NewJournalEntry returns an unindexed journal entry with the given id.
func NewJournalEntry(id string) *JournalEntry {
	return &JournalEntry{Meta: Meta{ID: id, Index: Unindexed}}
}

// GlobalLocation marks an objective as a global location. Its id is the
// objective's token.
type GlobalLocation struct {
	Meta
	Objective Ref[*Objective]
}

// NewGlobalLocation returns an unindexed global location with the given id.
func NewGlobalLocation(id string) *GlobalLocation {
	return &GlobalLocation{Meta: Meta{ID: id, Index: Unindexed}}
}

// StaticEvent fires an event at a fixed time of day; the id is the time.
type StaticEvent struct {
	Meta
	Event Ref[*Event]
}

// NewStaticEvent returns an unindexed static event with the given id.
func NewStaticEvent(id string) *StaticEvent {
	return &StaticEvent{Meta: Meta{ID: id, Index: Unindexed}}
}

// NpcBinding attaches a conversation to an NPC; the id is the NPC's id.
type NpcBinding struct {
	Meta
	Conversation Ref[*Conversation]
}

// NewNpcBinding returns an unindexed binding with the given id.
func NewNpcBinding(id string) *NpcBinding {
	return &NpcBinding{Meta: Meta{ID: id, Index: Unindexed}}
}

// QuestCanceler describes how a player abandons a quest: what it checks,
// fires, removes, and where the player is sent.
type QuestCanceler struct {
	Meta
	Name       Text
	Conditions []ConditionRef
	Events     []Ref[*Event]
	Objectives []Ref[*Objective]
	Tags       []Ref[*Tag]
	Points     []Ref[*PointCategory]
	Journal    []Ref[*JournalEntry]
	// Location is the teleport target, "" when unset.
	Location string
}

// NewQuestCanceler returns an unindexed canceler with the given id.
func NewQuestCanceler(id string) *QuestCanceler {
	return &QuestCanceler{Meta: Meta{ID: id, Index: Unindexed}}
}

// MainPageLine is a conditional line on the journal's main page.
type MainPageLine struct {
	Meta
	Text       Text
	Priority   int
	Conditions []ConditionRef
}

// NewMainPageLine returns an unindexed main page line with the given id.
func NewMainPageLine(id string) *MainPageLine {
	return &MainPageLine{Meta: Meta{ID: id, Index: Unindexed}}
}

// Tag is a player tag name. Tags are only ever referenced.
type Tag struct {
	Meta
}

// NewTag returns an unindexed tag with the given id.
func NewTag(id string) *Tag {
	return &Tag{Meta: Meta{ID: id, Index: Unindexed}}
}

// PointCategory is a point category name. Categories are only ever referenced.
type PointCategory struct {
	Meta
}

// NewPointCategory returns an unindexed point category with the given id.
func NewPointCategory(id string) *PointCategory {
	return &PointCategory{Meta: Meta{ID: id, Index: Unindexed}}
}

// Compile-time checks for the instruction capability.
var (
	_ Instructed = (*Condition)(nil)
	_ Instructed = (*Event)(nil)
	_ Instructed = (*Objective)(nil)
	_ Instructed = (*Item)(nil)
	_ Instructed = (*GlobalVariable)(nil)
)
