package archive

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrWong99/questpack/pkg/quest"
	"github.com/MrWong99/questpack/pkg/quest/flatten"
)

// Keys and key segments of the package format.
const (
	keyQuester         = "quester"
	keyStop            = "stop"
	keyFirst           = "first"
	keyFinal           = "final"
	keyNpcOptions      = "NPC_options"
	keyPlayerOptions   = "player_options"
	keyText            = "text"
	keyVariables       = "variables"
	keyGlobalLocations = "global_locations"
	keyStaticEvents    = "static_events"
	keyStaticLegacy    = "static"
	keyNpcs            = "npcs"
	keyCancel          = "cancel"
	keyMainPage        = "journal_main_page"
	keyDefaultLanguage = "default_language"
	keyName            = "name"
	keyPriority        = "priority"
	keyConditions      = "conditions"
	keyEvents          = "events"
	keyObjectives      = "objectives"
	keyTags            = "tags"
	keyPoints          = "points"
	keyJournal         = "journal"
	keyLocation        = "loc"
	keyPointers        = "pointers"
)

var (
	optionFields = map[string]bool{
		keyText: true, "event": true, keyEvents: true,
		"condition": true, keyConditions: true, "pointer": true, keyPointers: true,
	}
	cancelerFields = map[string]bool{
		keyName: true, keyEvents: true, keyConditions: true, keyObjectives: true,
		keyTags: true, keyPoints: true, keyJournal: true, keyLocation: true,
	}
	mainPageFields = map[string]bool{
		keyText: true, keyPriority: true, keyConditions: true,
	}
)

// decoder applies the flattened files of one package to a fresh
// [quest.Package]. It is single use.
type decoder struct {
	p    *quest.Package
	warn func(error)

	// file is the entry currently being applied.
	file string

	// langs counts every language suffix seen in any file.
	langs map[string]int

	explicitLang string
}

// step applies one parsed file.
type step struct {
	e     entry
	apply func(*flatten.Document) error
}

// decode turns src into a package. Files are applied in a fixed order so that
// entity indices follow the authored order of their defining file: journal,
// items, conditions, events, objectives, every conversation in entry order,
// then main.
func decode(ctx context.Context, src *source, warn func(error)) (*quest.Package, error) {
	if err := src.complete(); err != nil {
		return nil, err
	}
	d := &decoder{
		p:     quest.NewPackage(src.pkg),
		warn:  warn,
		langs: make(map[string]int),
	}

	steps := []step{
		{src.roles[roleJournal], d.journal},
		{src.roles[roleItems], func(doc *flatten.Document) error {
			return defineInstructions(d, doc, d.p.Items, quest.NewItem)
		}},
		{src.roles[roleConditions], func(doc *flatten.Document) error {
			return defineInstructions(d, doc, d.p.Conditions, quest.NewCondition)
		}},
		{src.roles[roleEvents], func(doc *flatten.Document) error {
			return defineInstructions(d, doc, d.p.Events, quest.NewEvent)
		}},
		{src.roles[roleObjectives], func(doc *flatten.Document) error {
			return defineInstructions(d, doc, d.p.Objectives, quest.NewObjective)
		}},
	}
	for _, c := range src.conversations {
		steps = append(steps, step{c.entry, func(doc *flatten.Document) error { return d.conversation(c.id, doc) }})
	}
	steps = append(steps, step{src.roles[roleMain], d.main})

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := parseEntry(s.e)
		if err != nil {
			return nil, err
		}
		d.file = s.e.name
		if err := s.apply(doc); err != nil {
			return nil, err
		}
	}

	d.p.DefaultLanguage = d.defaultLanguage()
	orderByMention(d.p)
	d.p.Normalize()
	return d.p, nil
}

// orderByMention positions tags and point categories, which no file defines,
// in the order the cancelers mention them when walked in index order. That is
// the order a saved package mentions them in, so reloading keeps it.
func orderByMention(p *quest.Package) {
	nextTag, nextPoint := 0, 0
	for _, c := range byIndex(p.Cancelers.All()) {
		for _, r := range c.Tags {
			if t, ok := r.Resolve(p.Tags); ok && t.Index == quest.Unindexed {
				t.Index = nextTag
				nextTag++
			}
		}
		for _, r := range c.Points {
			if pc, ok := r.Resolve(p.Points); ok && pc.Index == quest.Unindexed {
				pc.Index = nextPoint
				nextPoint++
			}
		}
	}
}

func parseEntry(e entry) (*flatten.Document, error) {
	data, err := e.read()
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", e.name, err)
	}
	doc, err := flatten.ParseBytes(data)
	if err != nil {
		var pe *flatten.ParseError
		if errors.As(err, &pe) {
			pe.File = e.name
		}
		return nil, err
	}
	return doc, nil
}

// defaultLanguage returns the explicit default_language when one was given,
// else the most used language suffix. Ties go to the lexicographically
// smallest code. It returns "" when no language was seen.
func (d *decoder) defaultLanguage() string {
	if d.explicitLang != "" {
		return d.explicitLang
	}
	best, most := "", 0
	for lang, n := range d.langs {
		if n > most || (n == most && lang < best) {
			best, most = lang, n
		}
	}
	return best
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (d *decoder) fatal(key string, err error) error {
	return &KeyError{File: d.file, Key: key, Err: err}
}

func (d *decoder) warnKey(key string, err error) {
	if err != nil {
		d.warn(&KeyError{File: d.file, Key: key, Err: err})
	}
}

func (d *decoder) unknown(key string) {
	d.warnKey(key, ErrUnknownKey)
}

// setText stores value as the lang variant of t, or as its default when lang
// is empty, and counts the language.
func (d *decoder) setText(t *quest.Text, lang, value string) {
	if lang != "" {
		d.langs[lang]++
	}
	t.Set(lang, value)
}

func refList[T quest.Entity](d *decoder, key, raw string, reg *quest.Registry[T], newFn func(string) T) []quest.Ref[T] {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	refs, err := quest.ParseRefs(raw, reg, newFn)
	d.warnKey(key, err)
	if len(refs) == 0 {
		return nil
	}
	return refs
}

func localRefList[T quest.Entity](d *decoder, key, raw string, reg *quest.Registry[T], newFn func(string) T) []quest.Ref[T] {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	refs, err := quest.ParseLocalRefs(raw, reg, newFn)
	d.warnKey(key, err)
	if len(refs) == 0 {
		return nil
	}
	return refs
}

func (d *decoder) conditionList(key, raw string) []quest.ConditionRef {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	refs, err := quest.ParseConditionRefs(raw, d.p.Conditions)
	d.warnKey(key, err)
	if len(refs) == 0 {
		return nil
	}
	return refs
}

func singleRef[T quest.Entity](d *decoder, key, raw string, reg *quest.Registry[T], newFn func(string) T) quest.Ref[T] {
	ref, err := quest.ParseRef(raw, reg, newFn)
	d.warnKey(key, err)
	return ref
}

// splitKey splits the part of a key after its group prefix into the entity id,
// the field and, for text fields, the language. Ids may contain dots: the
// field is the last segment, or the second to last when it is the text field
// followed by a language code.
func splitKey(rest string, fields map[string]bool, textField string) (id, field, lang string, ok bool) {
	segs := strings.Split(rest, ".")
	n := len(segs)
	if n >= 2 && fields[segs[n-1]] {
		return strings.Join(segs[:n-1], "."), segs[n-1], "", true
	}
	if n >= 3 && segs[n-2] == textField {
		return strings.Join(segs[:n-2], "."), textField, segs[n-1], true
	}
	return "", "", "", false
}

// ── instruction files ────────────────────────────────────────────────────────

// defineInstructions applies a flat id -> instruction file. Keys are taken
// verbatim as ids.
func defineInstructions[T quest.Instructed](d *decoder, doc *flatten.Document, reg *quest.Registry[T], newFn func(string) T) error {
	for key, value := range doc.All() {
		e, err := reg.Define(key, newFn)
		if err != nil {
			return d.fatal(key, err)
		}
		e.SetInstruction(value)
	}
	return nil
}

func (d *decoder) journal(doc *flatten.Document) error {
	for key, value := range doc.All() {
		id, lang, _ := strings.Cut(key, ".")
		e, err := d.p.Journal.Define(id, quest.NewJournalEntry)
		if err != nil {
			return d.fatal(key, err)
		}
		d.setText(&e.Text, lang, value)
	}
	return nil
}

// ── conversations ────────────────────────────────────────────────────────────

func (d *decoder) conversation(id string, doc *flatten.Document) error {
	conv, err := d.p.Conversations.Define(id, d.p.NewConversation)
	if err != nil {
		return d.fatal(id, err)
	}
	for key, value := range doc.All() {
		var err error
		switch {
		case key == keyQuester:
			d.setText(&conv.Quester, "", value)
		case strings.HasPrefix(key, keyQuester+"."):
			d.setText(&conv.Quester, strings.TrimPrefix(key, keyQuester+"."), value)
		case key == keyStop:
			conv.Stop = strings.EqualFold(strings.TrimSpace(value), "true")
		case key == keyFirst:
			conv.Start = localRefList(d, key, value, conv.NpcOptions, quest.NewNpcOption)
		case key == keyFinal:
			conv.FinalEvents = refList(d, key, value, d.p.Events, quest.NewEvent)
		case strings.HasPrefix(key, keyNpcOptions+"."):
			err = decodeOption(d, key, strings.TrimPrefix(key, keyNpcOptions+"."), value,
				conv.NpcOptions, quest.NewNpcOption,
				func(o *quest.NpcOption, raw string) {
					o.Pointers = localRefList(d, key, raw, conv.PlayerOptions, quest.NewPlayerOption)
				})
		case strings.HasPrefix(key, keyPlayerOptions+"."):
			err = decodeOption(d, key, strings.TrimPrefix(key, keyPlayerOptions+"."), value,
				conv.PlayerOptions, quest.NewPlayerOption,
				func(o *quest.PlayerOption, raw string) {
					o.Pointers = localRefList(d, key, raw, conv.NpcOptions, quest.NewNpcOption)
				})
		default:
			d.unknown(key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// decodeOption applies one NPC_options or player_options key. rest is the key
// without its group prefix.
func decodeOption[O quest.ConversationOption](
	d *decoder, key, rest, value string,
	reg *quest.Registry[O], newFn func(string) O,
	setPointers func(O, string),
) error {
	id, field, lang, ok := splitKey(rest, optionFields, keyText)
	if !ok {
		d.unknown(key)
		return nil
	}
	o, err := reg.Define(id, newFn)
	if err != nil {
		return d.fatal(key, err)
	}
	opt := o.Details()
	switch field {
	case keyText:
		d.setText(&opt.Text, lang, value)
	case "event", keyEvents:
		opt.Events = refList(d, key, value, d.p.Events, quest.NewEvent)
	case "condition", keyConditions:
		opt.Conditions = d.conditionList(key, value)
	case "pointer", keyPointers:
		setPointers(o, value)
	}
	return nil
}

// ── main.yml ─────────────────────────────────────────────────────────────────

func (d *decoder) main(doc *flatten.Document) error {
	for key, value := range doc.All() {
		if strings.EqualFold(key, keyDefaultLanguage) {
			d.explicitLang = strings.TrimSpace(value)
			continue
		}
		group, rest, _ := strings.Cut(key, ".")
		if rest == "" && group != keyGlobalLocations {
			d.unknown(key)
			continue
		}
		var err error
		switch group {
		case keyVariables:
			var v *quest.GlobalVariable
			if v, err = d.p.Variables.Define(rest, quest.NewGlobalVariable); err == nil {
				v.SetInstruction(value)
			}
		case keyGlobalLocations:
			if rest != "" {
				d.unknown(key)
				continue
			}
			err = d.globalLocations(key, value)
		case keyStaticEvents, keyStaticLegacy:
			var s *quest.StaticEvent
			if s, err = d.p.StaticEvents.Define(rest, quest.NewStaticEvent); err == nil {
				s.Event = singleRef(d, key, value, d.p.Events, quest.NewEvent)
			}
		case keyNpcs:
			var b *quest.NpcBinding
			if b, err = d.p.NpcBindings.Define(rest, quest.NewNpcBinding); err == nil {
				b.Conversation = singleRef(d, key, value, d.p.Conversations, d.p.NewConversation)
			}
		case keyCancel:
			err = d.canceler(key, rest, value)
		case keyMainPage:
			err = d.mainPageLine(key, rest, value)
		default:
			d.unknown(key)
		}
		if err != nil {
			var ke *KeyError
			if errors.As(err, &ke) {
				return err
			}
			return d.fatal(key, err)
		}
	}
	return nil
}

// globalLocations reads the csv of objective ids. Each token becomes a global
// location with the token as id, pointing at that objective.
func (d *decoder) globalLocations(key, raw string) error {
	for i, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			if strings.TrimSpace(raw) != "" {
				d.warnKey(key, fmt.Errorf("token %d: %w", i, quest.ErrInvalidIdentifier))
			}
			continue
		}
		loc, err := d.p.Locations.Define(tok, quest.NewGlobalLocation)
		if err != nil {
			return d.fatal(key, err)
		}
		loc.Objective = singleRef(d, key, tok, d.p.Objectives, quest.NewObjective)
	}
	return nil
}

func (d *decoder) canceler(key, rest, value string) error {
	id, field, lang, ok := splitKey(rest, cancelerFields, keyName)
	if !ok {
		d.unknown(key)
		return nil
	}
	c, err := d.p.Cancelers.Define(id, quest.NewQuestCanceler)
	if err != nil {
		return d.fatal(key, err)
	}
	switch field {
	case keyName:
		d.setText(&c.Name, lang, value)
	case keyEvents:
		c.Events = refList(d, key, value, d.p.Events, quest.NewEvent)
	case keyConditions:
		c.Conditions = d.conditionList(key, value)
	case keyObjectives:
		c.Objectives = refList(d, key, value, d.p.Objectives, quest.NewObjective)
	case keyTags:
		c.Tags = refList(d, key, value, d.p.Tags, quest.NewTag)
	case keyPoints:
		c.Points = refList(d, key, value, d.p.Points, quest.NewPointCategory)
	case keyJournal:
		c.Journal = refList(d, key, value, d.p.Journal, quest.NewJournalEntry)
	case keyLocation:
		c.Location = value
	}
	return nil
}

func (d *decoder) mainPageLine(key, rest, value string) error {
	id, field, lang, ok := splitKey(rest, mainPageFields, keyText)
	if !ok {
		d.unknown(key)
		return nil
	}
	l, err := d.p.MainPage.Define(id, quest.NewMainPageLine)
	if err != nil {
		return d.fatal(key, err)
	}
	switch field {
	case keyText:
		d.setText(&l.Text, lang, value)
	case keyPriority:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			d.warn(&NumericFormatError{File: d.file, Key: key, Value: value, Err: err})
			return nil
		}
		l.Priority = n
	case keyConditions:
		l.Conditions = d.conditionList(key, value)
	}
	return nil
}
