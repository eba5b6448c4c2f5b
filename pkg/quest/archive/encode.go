package archive

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/questpack/pkg/quest"
)

// file is one encoded file of a package. name is relative to the package
// directory and always uses '/'.
type file struct {
	name string
	data []byte
}

// encode renders p into its files: the six fixed files in save order, then one
// file per conversation in index order.
//
// Every entity is written, placeholders included, so that loading the result
// defines each of them again at the same position. Texts are written with
// [putText]; lists are written only when non-empty.
func encode(p *quest.Package) ([]file, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("archive: save: %w: empty package name", quest.ErrInvalidIdentifier)
	}
	e := encoder{pkg: p.Name}

	docs := map[string]*yaml.Node{
		roleMain:       e.main(p),
		roleEvents:     instructionsNode(p.Events.All()),
		roleConditions: instructionsNode(p.Conditions.All()),
		roleObjectives: instructionsNode(p.Objectives.All()),
		roleJournal:    e.journal(p),
		roleItems:      instructionsNode(p.Items.All()),
	}

	files := make([]file, 0, len(saveRoles)+p.Conversations.Len())
	for _, role := range saveRoles {
		data, err := marshal(docs[role])
		if err != nil {
			return nil, fmt.Errorf("archive: encode %s%s: %w", role, ymlExt, err)
		}
		files = append(files, file{name: role + ymlExt, data: data})
	}
	for _, c := range byIndex(p.Conversations.All()) {
		if strings.ContainsAny(c.ID, `/\`) {
			return nil, fmt.Errorf("archive: save: %w: conversation id %q contains a path separator", quest.ErrInvalidIdentifier, c.ID)
		}
		data, err := marshal(e.conversation(c))
		if err != nil {
			return nil, fmt.Errorf("archive: encode conversation %q: %w", c.ID, err)
		}
		files = append(files, file{name: conversationDir + "/" + c.ID + ymlExt, data: data})
	}
	return files, nil
}

func marshal(n *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// byIndex returns items stable-sorted by their index.
func byIndex[T quest.Entity](items []T) []T {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(a.Metadata().Index, b.Metadata().Index)
	})
	return items
}

// ── node building ────────────────────────────────────────────────────────────

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// scalar returns a string scalar. The encoder quotes it whenever the plain
// form would read back as another type, so "10", "true" and "" survive.
func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func put(m *yaml.Node, key, value string) {
	m.Content = append(m.Content, scalar(key), scalar(value))
}

func putNode(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, scalar(key), value)
}

func putBool(m *yaml.Node, key string, v bool) {
	putNode(m, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)})
}

func putInt(m *yaml.Node, key string, v int) {
	putNode(m, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(v)})
}

// putNonEmpty writes key only when value is not empty.
func putNonEmpty(m *yaml.Node, key, value string) {
	if value != "" {
		put(m, key, value)
	}
}

// putSection appends key with the mapping sub unless sub is empty.
func putSection(m *yaml.Node, key string, sub *yaml.Node) {
	if len(sub.Content) > 0 {
		putNode(m, key, sub)
	}
}

// putText writes t under key:
//
//   - an empty text as key: ""
//   - a default without translations as key: <default>
//   - translations without a default as a nested mapping key: {lang: ...}
//   - a default with translations as key: <default> followed by one literal
//     "key.lang" sibling per translation
//
// All four flatten back to the same default and language variants.
func putText(m *yaml.Node, key string, t *quest.Text) {
	langs := t.Languages()
	switch {
	case t.IsEmpty():
		put(m, key, "")
	case len(langs) == 0:
		put(m, key, t.Default())
	case !t.HasDefault():
		sub := mappingNode()
		for _, lang := range langs {
			v, _ := t.Get(lang)
			put(sub, lang, v)
		}
		putNode(m, key, sub)
	default:
		put(m, key, t.Default())
		for _, lang := range langs {
			v, _ := t.Get(lang)
			put(m, key+"."+lang, v)
		}
	}
}

// ── files ────────────────────────────────────────────────────────────────────

type encoder struct {
	pkg string
}

func instructionsNode[T quest.Instructed](items []T) *yaml.Node {
	m := mappingNode()
	for _, e := range byIndex(items) {
		put(m, e.Metadata().ID, e.Instruction())
	}
	return m
}

func (e encoder) journal(p *quest.Package) *yaml.Node {
	m := mappingNode()
	for _, j := range byIndex(p.Journal.All()) {
		putText(m, j.ID, &j.Text)
	}
	return m
}

func (e encoder) conversation(c *quest.Conversation) *yaml.Node {
	m := mappingNode()
	putText(m, keyQuester, &c.Quester)
	putBool(m, keyStop, c.Stop)
	putNonEmpty(m, keyFirst, quest.FormatRefs(e.pkg, c.Start))
	putNonEmpty(m, keyFinal, quest.FormatRefs(e.pkg, c.FinalEvents))

	npc := mappingNode()
	for _, o := range byIndex(c.NpcOptions.All()) {
		om := e.option(&o.Option)
		putNonEmpty(om, keyPointers, quest.FormatRefs(e.pkg, o.Pointers))
		putNode(npc, o.ID, om)
	}
	putSection(m, keyNpcOptions, npc)

	player := mappingNode()
	for _, o := range byIndex(c.PlayerOptions.All()) {
		om := e.option(&o.Option)
		putNonEmpty(om, keyPointers, quest.FormatRefs(e.pkg, o.Pointers))
		putNode(player, o.ID, om)
	}
	putSection(m, keyPlayerOptions, player)
	return m
}

func (e encoder) option(o *quest.Option) *yaml.Node {
	m := mappingNode()
	putText(m, keyText, &o.Text)
	putNonEmpty(m, keyEvents, quest.FormatRefs(e.pkg, o.Events))
	putNonEmpty(m, keyConditions, quest.FormatConditionRefs(e.pkg, o.Conditions))
	return m
}

func (e encoder) main(p *quest.Package) *yaml.Node {
	m := mappingNode()
	putNonEmpty(m, keyDefaultLanguage, p.DefaultLanguage)

	npcs := mappingNode()
	for _, b := range byIndex(p.NpcBindings.All()) {
		put(npcs, b.ID, b.Conversation.Target.Token(e.pkg))
	}
	putSection(m, keyNpcs, npcs)

	vars := mappingNode()
	for _, v := range byIndex(p.Variables.All()) {
		put(vars, v.ID, v.Instruction())
	}
	putSection(m, keyVariables, vars)

	static := mappingNode()
	for _, s := range byIndex(p.StaticEvents.All()) {
		put(static, s.ID, s.Event.Target.Token(e.pkg))
	}
	putSection(m, keyStaticEvents, static)

	locs := byIndex(p.Locations.All())
	tokens := make([]string, len(locs))
	for i, l := range locs {
		tokens[i] = l.Objective.Target.Token(e.pkg)
	}
	putNonEmpty(m, keyGlobalLocations, strings.Join(tokens, ","))

	cancel := mappingNode()
	for _, c := range byIndex(p.Cancelers.All()) {
		cm := mappingNode()
		putText(cm, keyName, &c.Name)
		putNonEmpty(cm, keyConditions, quest.FormatConditionRefs(e.pkg, c.Conditions))
		putNonEmpty(cm, keyEvents, quest.FormatRefs(e.pkg, c.Events))
		putNonEmpty(cm, keyObjectives, quest.FormatRefs(e.pkg, c.Objectives))
		putNonEmpty(cm, keyTags, quest.FormatRefs(e.pkg, c.Tags))
		putNonEmpty(cm, keyPoints, quest.FormatRefs(e.pkg, c.Points))
		putNonEmpty(cm, keyJournal, quest.FormatRefs(e.pkg, c.Journal))
		putNonEmpty(cm, keyLocation, c.Location)
		putNode(cancel, c.ID, cm)
	}
	putSection(m, keyCancel, cancel)

	page := mappingNode()
	for _, l := range byIndex(p.MainPage.All()) {
		lm := mappingNode()
		putText(lm, keyText, &l.Text)
		putInt(lm, keyPriority, l.Priority)
		putNonEmpty(lm, keyConditions, quest.FormatConditionRefs(e.pkg, l.Conditions))
		putNode(page, l.ID, lm)
	}
	putSection(m, keyMainPage, page)
	return m
}
