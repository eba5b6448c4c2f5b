package flatten_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/questpack/pkg/quest/flatten"
)

const conversationYAML = `
quester:
  en: Innkeeper
  de: Wirt
stop: false
first: greet
NPC_options:
  greet:
    text: Welcome!
    text.de: Willkommen!
    pointers: ask, bye
  answer:
    text:
      en: The road is long.
player_options:
  ask:
    text: Where am I?
    conditions: '!!lost'
    pointer: answer
`

func TestParse_DocumentOrder(t *testing.T) {
	t.Parallel()

	doc, err := flatten.Parse(strings.NewReader(conversationYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := [][2]string{
		{"quester.en", "Innkeeper"},
		{"quester.de", "Wirt"},
		{"stop", "false"},
		{"first", "greet"},
		{"NPC_options.greet.text", "Welcome!"},
		{"NPC_options.greet.text.de", "Willkommen!"},
		{"NPC_options.greet.pointers", "ask, bye"},
		{"NPC_options.answer.text.en", "The road is long."},
		{"player_options.ask.text", "Where am I?"},
		{"player_options.ask.conditions", "!!lost"},
		{"player_options.ask.pointer", "answer"},
	}

	var got [][2]string
	for path, value := range doc.All() {
		got = append(got, [2]string{path, value})
	}
	if len(got) != len(want) {
		t.Fatalf("got %d pairs, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pair %d = %v, want %v", i, got[i], want[i])
		}
	}

	// The sequence can be replayed.
	n := 0
	for range doc.All() {
		n++
	}
	if n != len(want) {
		t.Errorf("second iteration yielded %d pairs, want %d", n, len(want))
	}
}

func TestParse_ScalarForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{
			name:  "numbers and booleans keep their text",
			input: "priority: 10\nratio: 0.5\nstop: TRUE\n",
			want:  map[string]string{"priority": "10", "ratio": "0.5", "stop": "TRUE"},
		},
		{
			name:  "numeric keys",
			input: "npcs:\n  0: innkeeper\n  12: guard\n",
			want:  map[string]string{"npcs.0": "innkeeper", "npcs.12": "guard"},
		},
		{
			name:  "null values are skipped",
			input: "a: ~\nb: value\nc:\n",
			want:  map[string]string{"b": "value"},
		},
		{
			name:  "scalar sequence becomes a csv value",
			input: "events: [a, b, c]\n",
			want:  map[string]string{"events": "a,b,c"},
		},
		{
			name:  "empty document",
			input: "",
			want:  map[string]string{},
		},
		{
			name:  "null document",
			input: "~\n",
			want:  map[string]string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			doc, err := flatten.ParseBytes([]byte(tc.input))
			if err != nil {
				t.Fatalf("ParseBytes: %v", err)
			}
			got := make(map[string]string)
			for path, value := range doc.All() {
				got[path] = value
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "unterminated flow mapping", input: "a: {b: c\n"},
		{name: "top-level sequence", input: "- a\n- b\n"},
		{name: "top-level scalar", input: "just text\n"},
		{name: "sequence of mappings", input: "list:\n  - a: 1\n"},
		{name: "alias", input: "a: &x v\nb: *x\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := flatten.ParseBytes([]byte(tc.input))
			var pe *flatten.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *ParseError", err)
			}
		})
	}
}

func TestPairs_Lines(t *testing.T) {
	t.Parallel()

	doc, err := flatten.ParseBytes([]byte("a: 1\nb:\n  c: 2\n"))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	pairs := doc.Collect()
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs", len(pairs))
	}
	if pairs[0].Line != 1 || pairs[1].Line != 3 {
		t.Errorf("lines = %d, %d; want 1, 3", pairs[0].Line, pairs[1].Line)
	}
}
