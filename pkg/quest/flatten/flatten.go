// Package flatten turns a nested YAML document into the ordered stream of
// (dotted path, value) pairs the quest package format is written in.
//
// A document is parsed once into a yaml.v3 node tree and then walked
// depth-first in document order. Entering a mapping pushes its key onto the
// path, leaving it pops the key again, so
//
//	NPC_options:
//	  greet:
//	    text:
//	      en: Hello
//
// yields ("NPC_options.greet.text.en", "Hello"). A key that itself contains
// dots is taken verbatim, which makes "text.en: Hello" next to "text: Hi" a
// valid way to write a default and a translation side by side.
//
// Only the scalar subset is supported: mapping values are mappings or
// scalars. A sequence of scalars is read as one comma-separated value; null
// scalars are skipped. Sequences holding mappings, anchors and aliases are
// rejected with a [*ParseError].
package flatten

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError reports a document that is not valid YAML or leaves the scalar
// subset the package format uses.
type ParseError struct {
	// File is the archive entry the document came from, if known.
	File string

	// Line and Column locate the offending node; both are 0 when the YAML
	// parser itself failed.
	Line   int
	Column int

	Msg string
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("flatten: ")
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d column %d: ", e.Line, e.Column)
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying YAML error, if any.
func (e *ParseError) Unwrap() error { return e.Err }

// Pair is one leaf of a document.
type Pair struct {
	Path  string
	Value string
	// Line is the 1-based line of the value in the source document.
	Line int
}

// Document is a parsed, validated document. Its pairs can be iterated any
// number of times.
type Document struct {
	root *yaml.Node // mapping node, or nil for an empty document
}

// Parse reads r to the end and parses it.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("flatten: read: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses data. An empty document, or one holding only null, has
// no pairs.
func ParseBytes(data []byte) (*Document, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Msg: "malformed yaml", Err: err}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &Document{}, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.ShortTag() == "!!null" {
		return &Document{}, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, nodeError(root, "top-level value must be a mapping")
	}
	if err := validate(root); err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

// All yields (path, value) for every leaf in document order.
func (d *Document) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for p := range d.Pairs() {
			if !yield(p.Path, p.Value) {
				return
			}
		}
	}
}

// Pairs yields every leaf with its source line, in document order.
func (d *Document) Pairs() iter.Seq[Pair] {
	return func(yield func(Pair) bool) {
		if d == nil || d.root == nil {
			return
		}
		walk(d.root, make([]string, 0, 8), yield)
	}
}

// Collect returns all pairs as a slice.
func (d *Document) Collect() []Pair {
	var out []Pair
	for p := range d.Pairs() {
		out = append(out, p)
	}
	return out
}

// walk emits the leaves below the mapping n. path is the stack of enclosing
// keys; it is pushed before descending and implicitly popped on return.
func walk(n *yaml.Node, path []string, yield func(Pair) bool) bool {
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		path := append(path, key.Value)
		switch val.Kind {
		case yaml.MappingNode:
			if !walk(val, path, yield) {
				return false
			}
		case yaml.ScalarNode:
			if val.ShortTag() == "!!null" {
				continue
			}
			if !yield(Pair{Path: strings.Join(path, "."), Value: val.Value, Line: val.Line}) {
				return false
			}
		case yaml.SequenceNode:
			if !yield(Pair{Path: strings.Join(path, "."), Value: joinSequence(val), Line: val.Line}) {
				return false
			}
		}
	}
	return true
}

func joinSequence(seq *yaml.Node) string {
	parts := make([]string, 0, len(seq.Content))
	for _, item := range seq.Content {
		if item.ShortTag() == "!!null" {
			continue
		}
		parts = append(parts, item.Value)
	}
	return strings.Join(parts, ",")
}

// validate rejects everything outside the scalar subset so that walking the
// tree afterwards cannot fail.
func validate(n *yaml.Node) error {
	if n.Anchor != "" {
		return nodeError(n, "anchors are not supported")
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return nil
	case yaml.AliasNode:
		return nodeError(n, "aliases are not supported")
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode || item.Anchor != "" {
				return nodeError(item, "sequences may only hold scalars")
			}
		}
		return nil
	case yaml.MappingNode:
		if len(n.Content)%2 != 0 {
			return nodeError(n, "unterminated mapping")
		}
		for i := 0; i < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nodeError(key, "mapping keys must be scalars")
			}
			if err := validate(n.Content[i+1]); err != nil {
				return err
			}
		}
		return nil
	}
	return nodeError(n, "unexpected node")
}

func nodeError(n *yaml.Node, msg string) *ParseError {
	return &ParseError{Line: n.Line, Column: n.Column, Msg: msg}
}
