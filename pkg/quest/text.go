package quest

import "slices"

// Text is a translatable string: an optional default plus one variant per
// language code. Languages keep the order in which they were first set so
// that saving reproduces the author's layout.
//
// An empty default counts as unset. The zero value is an empty Text.
type Text struct {
	def   string
	langs map[string]string
	order []string
}

// NewText returns a Text whose default is def.
func NewText(def string) Text {
	return Text{def: def}
}

// Default returns the default string, or "" when none is set.
func (t *Text) Default() string { return t.def }

// HasDefault reports whether a default string is set.
func (t *Text) HasDefault() bool { return t.def != "" }

// SetDefault replaces the default string. Passing "" clears it.
func (t *Text) SetDefault(s string) { t.def = s }

// Get returns the variant for lang.
func (t *Text) Get(lang string) (string, bool) {
	s, ok := t.langs[lang]
	return s, ok
}

// Set stores the variant for lang. An empty lang sets the default.
func (t *Text) Set(lang, s string) {
	if lang == "" {
		t.def = s
		return
	}
	if t.langs == nil {
		t.langs = make(map[string]string)
	}
	if _, ok := t.langs[lang]; !ok {
		t.order = append(t.order, lang)
	}
	t.langs[lang] = s
}

// Delete removes the variant for lang.
func (t *Text) Delete(lang string) {
	if _, ok := t.langs[lang]; !ok {
		return
	}
	delete(t.langs, lang)
	t.order = slices.DeleteFunc(t.order, func(l string) bool { return l == lang })
}

// Languages returns the language codes with a variant, in insertion order.
func (t *Text) Languages() []string { return slices.Clone(t.order) }

// IsEmpty reports whether t has neither a default nor any variant.
func (t *Text) IsEmpty() bool { return t.def == "" && len(t.order) == 0 }

// Resolve returns the string to display for lang: the variant for lang when
// present, else the default, else the first variant set. It returns "" for an
// empty Text.
func (t *Text) Resolve(lang string) string {
	if s, ok := t.langs[lang]; ok && lang != "" {
		return s
	}
	if t.def != "" {
		return t.def
	}
	if len(t.order) > 0 {
		return t.langs[t.order[0]]
	}
	return ""
}
