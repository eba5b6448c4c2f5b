package archive_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/klauspost/compress/zip"

	"github.com/MrWong99/questpack/pkg/quest"
	"github.com/MrWong99/questpack/pkg/quest/archive"
	"github.com/MrWong99/questpack/pkg/quest/flatten"
)

// modelCmp compares packages including unexported registry and text state.
var modelCmp = []cmp.Option{
	cmp.Exporter(func(reflect.Type) bool { return true }),
	cmpopts.EquateEmpty(),
}

type zipEntry struct {
	name string
	body string
}

func buildZip(t *testing.T, entries ...zipEntry) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func loadZip(t *testing.T, r *bytes.Reader, opts ...archive.Option) (*quest.Package, error) {
	t.Helper()
	return archive.Load(context.Background(), r, r.Size(), opts...)
}

// villageEntries is a complete package exercising every file and key group.
func villageEntries() []zipEntry {
	return []zipEntry{
		{"village/main.yml", `
npcs:
  '0': innkeeper
variables:
  gold: '100'
static_events:
  '09:00': open_inn
global_locations: inn_location
cancel:
  beer:
    name: Abandon beer quest
    conditions: '!has_beer,!!drunk'
    events: reset_beer
    tags: beer_started, beer_done
    points: beer
    journal: beer_started
    loc: 100;64;100;world
journal_main_page:
  intro:
    text:
      en: Welcome to the village
      de: Willkommen im Dorf
    priority: 5
    conditions: '!drunk'
`},
		{"village/events.yml", `
open_inn: folder door_open,greet_event
reset_beer: deletepoint beer
give_beer: give beer:1
`},
		{"village/conditions.yml", `
has_beer: item beer:1
drunk: tag drunk
`},
		{"village/objectives.yml", `inn_location: location 100;64;100;world 5`},
		{"village/journal.yml", `
beer_started: I should get a beer.
beer_started.de: Ich sollte ein Bier holen.
beer_done:
  en: That was good.
`},
		{"village/items.yml", `beer: potion name:Beer`},
		{"village/conversations/innkeeper.yml", `
quester:
  en: Innkeeper
  de: Wirt
stop: 'false'
first: greet, greet_again
final: give_beer
NPC_options:
  greet:
    text:
      en: Hello traveller!
      de: Hallo Reisender!
    conditions: '!!has_beer'
    pointers: ask_beer,bye
  greet_again:
    text: Back again?
    pointer: bye
  beer:
    text: Here you go.
    event: give_beer
player_options:
  ask_beer:
    text:
      en: A beer please.
    pointer: beer
  bye:
    text: Bye.
`},
	}
}

func loadVillage(t *testing.T) *quest.Package {
	t.Helper()
	p, err := loadZip(t, buildZip(t, villageEntries()...))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return p
}

func TestLoad_Village(t *testing.T) {
	t.Parallel()

	p := loadVillage(t)

	if p.Name != "village" {
		t.Errorf("Name = %q, want village", p.Name)
	}
	// en: quester, greet, ask_beer, beer_done, intro; de: quester, greet,
	// beer_started, intro.
	if p.DefaultLanguage != "en" {
		t.Errorf("DefaultLanguage = %q, want en", p.DefaultLanguage)
	}

	conv, ok := p.Conversations.Get("innkeeper")
	if !ok {
		t.Fatal("conversation innkeeper missing")
	}
	if got, want := conv.NpcOptions.IDs(), []string{"greet", "greet_again", "beer"}; !slices.Equal(got, want) {
		t.Errorf("npc options = %v, want %v", got, want)
	}
	if got, want := conv.PlayerOptions.IDs(), []string{"ask_beer", "bye"}; !slices.Equal(got, want) {
		t.Errorf("player options = %v, want %v", got, want)
	}

	// first names options defined further down.
	greet, ok := conv.Start[0].Resolve(conv.NpcOptions)
	if !ok || greet.Text.Resolve("de") != "Hallo Reisender!" {
		t.Errorf("first[0] does not resolve to the defined greet option")
	}
	if len(greet.Conditions) != 1 || !greet.Conditions[0].Negated || greet.Conditions[0].Target.ID != "has_beer" {
		t.Errorf("greet conditions = %+v, want negated has_beer", greet.Conditions)
	}
	if got := greet.PointerIDs(); !slices.Equal(got, []string{"ask_beer", "bye"}) {
		t.Errorf("greet pointers = %v", got)
	}
	again, _ := conv.NpcOptions.Get("greet_again")
	if got := again.PointerIDs(); !slices.Equal(got, []string{"bye"}) {
		t.Errorf("singular pointer key not read: %v", got)
	}

	c, ok := p.Cancelers.Get("beer")
	if !ok {
		t.Fatal("canceler beer missing")
	}
	for i, r := range c.Conditions {
		if !r.Negated {
			t.Errorf("canceler condition %d (%s) not negated", i, r.Target.ID)
		}
	}
	if c.Location != "100;64;100;world" {
		t.Errorf("Location = %q", c.Location)
	}
	if got := p.Tags.IDs(); !slices.Equal(got, []string{"beer_started", "beer_done"}) {
		t.Errorf("tags = %v", got)
	}

	entry, _ := p.Journal.Get("beer_started")
	if entry.Text.Default() != "I should get a beer." {
		t.Errorf("journal default = %q", entry.Text.Default())
	}
	if de, _ := entry.Text.Get("de"); de != "Ich sollte ein Bier holen." {
		t.Errorf("journal de = %q", de)
	}

	line, _ := p.MainPage.Get("intro")
	if line.Priority != 5 {
		t.Errorf("priority = %d, want 5", line.Priority)
	}

	se, _ := p.StaticEvents.Get("09:00")
	if se == nil || se.Event.Target.ID != "open_inn" {
		t.Errorf("static event = %+v", se)
	}
	b, _ := p.NpcBindings.Get("0")
	if b == nil || b.Conversation.Target.ID != "innkeeper" {
		t.Errorf("npc binding = %+v", b)
	}
	loc, _ := p.Locations.Get("inn_location")
	if obj, ok := loc.Objective.Resolve(p.Objectives); !ok || obj.Instruction() != "location 100;64;100;world 5" {
		t.Errorf("global location objective = %v, %v", obj, ok)
	}
	v, _ := p.Variables.Get("gold")
	if v.Instruction() != "100" {
		t.Errorf("variable gold = %q", v.Instruction())
	}
}

func TestLoad_JournalIDDedup(t *testing.T) {
	t.Parallel()

	entries := minimalEntries("pkg")
	entries[4].body = "greeting: Hello\ngreeting.en: Hello there\n"
	p, err := loadZip(t, buildZip(t, entries...))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Journal.Len() != 1 {
		t.Fatalf("journal has %d entries, want 1", p.Journal.Len())
	}
	e, _ := p.Journal.Get("greeting")
	en, _ := e.Text.Get("en")
	if e.Text.Default() != "Hello" || en != "Hello there" {
		t.Errorf("text = %q / %q", e.Text.Default(), en)
	}
}

func TestLoad_DefaultLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		main string
		conv string
		want string
	}{
		{
			name: "most used language wins",
			conv: "quester.en: Bob\nquester.de: Bob\nNPC_options:\n  hi:\n    text.en: Hi\n",
			want: "en",
		},
		{
			name: "tie goes to the smallest code",
			conv: "quester.pl: Bob\nquester.de: Bob\n",
			want: "de",
		},
		{
			name: "explicit key wins",
			main: "DEFAULT_LANGUAGE: pl\n",
			conv: "quester.en: Bob\nquester.de: Bob\n",
			want: "pl",
		},
		{
			name: "no languages",
			conv: "quester: Bob\n",
			want: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			entries := minimalEntries("pkg")
			entries[0].body = tc.main
			entries = append(entries, zipEntry{"pkg/conversations/bob.yml", tc.conv})
			p, err := loadZip(t, buildZip(t, entries...))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if p.DefaultLanguage != tc.want {
				t.Errorf("DefaultLanguage = %q, want %q", p.DefaultLanguage, tc.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	var entries []zipEntry
	for _, e := range minimalEntries("pkg") {
		if e.name != "pkg/journal.yml" {
			entries = append(entries, e)
		}
	}
	p, err := loadZip(t, buildZip(t, entries...))
	if !errors.Is(err, archive.ErrPackageNotFound) {
		t.Fatalf("err = %v, want ErrPackageNotFound", err)
	}
	if p != nil {
		t.Error("a package was returned alongside the error")
	}
}

func TestLoad_Separators(t *testing.T) {
	t.Parallel()

	entries := []zipEntry{
		{`pkg\main.yml`, "npcs:\n  '1': chat\n"},
		{`pkg\events.yml`, ""},
		{"pkg/conditions.yml", ""},
		{"pkg/objectives.yml", ""},
		{`pkg\journal.yml`, ""},
		{"pkg/items.yml", ""},
		{`pkg\conversations\chat.yml`, "quester: Chatty\n"},
		{`pkg\conversations/guide.yml`, "quester: Guide\n"},
		{`pkg/conversations\scout.yml`, "quester: Scout\n"},
		{"README.md", "ignored"},
		{"pkg/notes.txt", "ignored"},
	}
	p, err := loadZip(t, buildZip(t, entries...))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "pkg" {
		t.Errorf("Name = %q", p.Name)
	}
	c, ok := p.Conversations.Get("chat")
	if !ok || c.Quester.Default() != "Chatty" {
		t.Errorf("conversation chat not loaded from a backslash path")
	}
	for id, quester := range map[string]string{"guide": "Guide", "scout": "Scout"} {
		c, ok := p.Conversations.Get(id)
		if !ok || c.Quester.Default() != quester {
			t.Errorf("conversation %s not loaded from a mixed separator path", id)
		}
	}
}

func TestLoad_Recoverable(t *testing.T) {
	t.Parallel()

	entries := minimalEntries("pkg")
	entries[0].body = `
journal_main_page:
  line:
    text: Hello
    priority: high
colour: blue
cancel:
  q:
    events: a,,b
`
	var warnings []error
	p, err := loadZip(t, buildZip(t, entries...), archive.WithWarningHandler(func(err error) {
		warnings = append(warnings, err)
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	line, _ := p.MainPage.Get("line")
	if line == nil || line.Priority != 0 || line.Text.Default() != "Hello" {
		t.Errorf("main page line = %+v", line)
	}
	c, _ := p.Cancelers.Get("q")
	if got := len(c.Events); got != 2 {
		t.Errorf("canceler has %d events, want 2", got)
	}

	if len(warnings) != 3 {
		t.Fatalf("got %d warnings, want 3: %v", len(warnings), warnings)
	}
	var nfe *archive.NumericFormatError
	if !errors.As(warnings[0], &nfe) || nfe.Value != "high" {
		t.Errorf("warning 0 = %v, want NumericFormatError", warnings[0])
	}
	if !errors.Is(warnings[1], archive.ErrUnknownKey) {
		t.Errorf("warning 1 = %v, want ErrUnknownKey", warnings[1])
	}
	if !errors.Is(warnings[2], quest.ErrInvalidIdentifier) {
		t.Errorf("warning 2 = %v, want ErrInvalidIdentifier", warnings[2])
	}
}

func TestLoad_Fatal(t *testing.T) {
	t.Parallel()

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()
		entries := minimalEntries("pkg")
		entries[1].body = "a: {b: c\n"
		_, err := loadZip(t, buildZip(t, entries...))
		var pe *flatten.ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("err = %v, want ParseError", err)
		}
		if pe.File != "pkg/events.yml" {
			t.Errorf("ParseError.File = %q", pe.File)
		}
	})

	t.Run("blank entity key", func(t *testing.T) {
		t.Parallel()
		entries := minimalEntries("pkg")
		entries[2].body = "'  ': item stone\n"
		p, err := loadZip(t, buildZip(t, entries...))
		if !errors.Is(err, quest.ErrInvalidIdentifier) || p != nil {
			t.Fatalf("Load = %v, %v; want nil, ErrInvalidIdentifier", p, err)
		}
		var ke *archive.KeyError
		if !errors.As(err, &ke) || ke.File != "pkg/conditions.yml" {
			t.Errorf("err = %v, want KeyError for conditions.yml", err)
		}
	})

	t.Run("not a zip", func(t *testing.T) {
		t.Parallel()
		r := bytes.NewReader([]byte("definitely not a zip archive"))
		if _, err := archive.Load(context.Background(), r, r.Size()); err == nil {
			t.Fatal("Load succeeded")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := buildZip(t, villageEntries()...)
		if _, err := archive.Load(ctx, r, r.Size()); !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}

// minimalEntries returns the six required files, all empty, in the order
// main, events, conditions, objectives, journal, items.
func minimalEntries(pkg string) []zipEntry {
	return []zipEntry{
		{pkg + "/main.yml", ""},
		{pkg + "/events.yml", ""},
		{pkg + "/conditions.yml", ""},
		{pkg + "/objectives.yml", ""},
		{pkg + "/journal.yml", ""},
		{pkg + "/items.yml", ""},
	}
}
