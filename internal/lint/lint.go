// Package lint checks loaded quest packages for structural and referential
// problems the archive format itself accepts: references to entities that are
// never defined, references into packages that are not loaded, texts missing
// the default language and conversation graphs that cannot start or contain
// options nobody reaches.
//
// Undefined references carry a suggestion: the closest defined id of the same
// kind, found with [suggest.Matcher].
package lint

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/questpack/internal/observe"
	"github.com/MrWong99/questpack/internal/suggest"
	"github.com/MrWong99/questpack/pkg/quest"
)

// Severity ranks a finding.
type Severity int

const (
	SeverityInfo Severity = iota + 1
	SeverityWarning
	SeverityError
)

// String returns the lower-case name of s.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity is the inverse of [Severity.String].
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range []Severity{SeverityInfo, SeverityWarning, SeverityError} {
		if sev.String() == s {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("lint: unknown severity %q", s)
}

// Finding codes.
const (
	CodeUndefinedReference = "undefined-reference"
	CodeUnresolvedPackage  = "unresolved-package"
	CodeMissingDefaultText = "missing-default-text"
	CodeNoStart            = "no-start"
	CodeUnreachableOption  = "unreachable-option"
	CodeBlankQuester       = "blank-quester"
)

// Finding is one problem found in a package.
type Finding struct {
	Severity Severity
	Code     string

	// Package is the package the finding was made in.
	Package string

	// Location is the key path the problem is written at, e.g.
	// "conversations.innkeeper.NPC_options.greet.pointers".
	Location string

	// Target is the referenced entity for reference findings, zero otherwise.
	Target quest.Identifier

	Message string

	// Suggestion is the closest defined id for undefined references, "" when
	// nothing is close enough.
	Suggestion string
}

// String formats f on one line.
func (f Finding) String() string {
	s := fmt.Sprintf("%s: %s: %s: %s", f.Severity, f.Package, f.Location, f.Message)
	if f.Suggestion != "" {
		s += fmt.Sprintf(" (did you mean %q?)", f.Suggestion)
	}
	return s
}

// Count returns the number of findings per severity.
func Count(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

// AtLeast returns the findings of severity min or worse.
func AtLeast(findings []Finding, min Severity) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Severity >= min {
			out = append(out, f)
		}
	}
	return out
}

// Option configures a [Linter].
type Option func(*Linter)

// WithWorkspace resolves references into other packages through ws. Without
// a workspace, foreign references are not checked.
func WithWorkspace(ws *quest.Workspace) Option {
	return func(l *Linter) { l.ws = ws }
}

// WithMatcher replaces the default suggestion matcher.
func WithMatcher(m *suggest.Matcher) Option {
	return func(l *Linter) { l.matcher = m }
}

// WithMetrics records finding counts to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Linter) { l.metrics = m }
}

// WithLogger sets the logger findings are reported to at debug level.
func WithLogger(log *slog.Logger) Option {
	return func(l *Linter) { l.logger = log }
}

// Linter checks packages. It is safe for concurrent use once built.
type Linter struct {
	ws      *quest.Workspace
	matcher *suggest.Matcher
	metrics *observe.Metrics
	logger  *slog.Logger
}

// New returns a [Linter] configured with opts.
func New(opts ...Option) *Linter {
	l := &Linter{}
	for _, o := range opts {
		o(l)
	}
	if l.matcher == nil {
		l.matcher = suggest.New()
	}
	if l.metrics == nil {
		l.metrics = observe.DefaultMetrics()
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Lint returns every finding for p, ordered by severity (worst first) and
// then by the order in which the archive writes the offending keys.
func (l *Linter) Lint(ctx context.Context, p *quest.Package) []Finding {
	ctx, span := observe.StartSpan(ctx, "lint.Package",
		trace.WithAttributes(attribute.String("quest.package", p.Name)),
	)
	defer span.End()

	r := run{l: l, p: p}
	r.references()
	r.conversations()
	r.texts()

	slices.SortStableFunc(r.out, func(a, b Finding) int {
		return cmp.Compare(b.Severity, a.Severity)
	})

	log := observe.LoggerFrom(ctx, l.logger)
	for _, f := range r.out {
		l.metrics.RecordLintFinding(ctx, f.Severity.String())
		log.Debug("lint: finding",
			"package", f.Package,
			"severity", f.Severity.String(),
			"code", f.Code,
			"location", f.Location,
			"message", f.Message,
		)
	}
	span.SetAttributes(attribute.Int("lint.findings", len(r.out)))
	return r.out
}

// run holds the state of one Lint call.
type run struct {
	l   *Linter
	p   *quest.Package
	out []Finding
}

func (r *run) add(f Finding) {
	f.Package = r.p.Name
	r.out = append(r.out, f)
}

// ── references ───────────────────────────────────────────────────────────────

// references checks every package-level reference. Option pointers and
// starting options are conversation-local and checked by conversations.
func (r *run) references() {
	for ref := range r.p.References() {
		switch ref.Target.Kind {
		case quest.KindNpcOption, quest.KindPlayerOption:
			continue
		case quest.KindTag, quest.KindPoint:
			// Tags and point categories exist by being mentioned.
			continue
		}

		target := r.p
		if !ref.Target.IsLocal(r.p.Name) {
			if r.l.ws == nil {
				continue
			}
			other, ok := r.l.ws.Package(ref.Target.Package)
			if !ok {
				r.add(Finding{
					Severity: SeverityError,
					Code:     CodeUnresolvedPackage,
					Location: ref.From,
					Target:   ref.Target,
					Message:  fmt.Sprintf("%s %s refers to package %q, which is not loaded", ref.Target.Kind, ref.Target.Token(r.p.Name), ref.Target.Package),
				})
				continue
			}
			target = other
		}

		ok, candidates := defined(target, ref.Target)
		if ok {
			continue
		}
		f := Finding{
			Severity: SeverityError,
			Code:     CodeUndefinedReference,
			Location: ref.From,
			Target:   ref.Target,
			Message:  fmt.Sprintf("%s %s is never defined", ref.Target.Kind, ref.Target.Token(r.p.Name)),
		}
		if s, _, ok := r.l.matcher.Closest(ref.Target.ID, candidates); ok {
			f.Suggestion = s
		}
		r.add(f)
	}
}

// defined reports whether id is defined in p and returns the ids of every
// defined entity of the same kind. An entity that only exists because it was
// referenced has no instruction or text.
func defined(p *quest.Package, id quest.Identifier) (bool, []string) {
	switch id.Kind {
	case quest.KindEvent:
		return instructed(p.Events, id.ID)
	case quest.KindCondition:
		return instructed(p.Conditions, id.ID)
	case quest.KindObjective:
		return instructed(p.Objectives, id.ID)
	case quest.KindItem:
		return instructed(p.Items, id.ID)
	case quest.KindJournal:
		return definedBy(p.Journal, id.ID, func(e *quest.JournalEntry) bool { return !e.Text.IsEmpty() })
	case quest.KindConversation:
		return definedBy(p.Conversations, id.ID, conversationDefined)
	}
	return true, nil
}

func instructed[T quest.Instructed](reg *quest.Registry[T], id string) (bool, []string) {
	return definedBy(reg, id, func(e T) bool { return e.Instruction() != "" })
}

func definedBy[T quest.Entity](reg *quest.Registry[T], id string, isDefined func(T) bool) (bool, []string) {
	if e, ok := reg.Get(id); ok && isDefined(e) {
		return true, nil
	}
	var candidates []string
	for _, e := range reg.All() {
		if isDefined(e) {
			candidates = append(candidates, e.Metadata().ID)
		}
	}
	return false, candidates
}

func conversationDefined(c *quest.Conversation) bool {
	return !c.Quester.IsEmpty() || c.NpcOptions.Len() > 0 || c.PlayerOptions.Len() > 0
}

func optionDefined[T quest.ConversationOption](o T) bool {
	d := o.Details()
	return !d.Text.IsEmpty() || len(d.Events) > 0 || len(d.Conditions) > 0 || len(o.PointerIDs()) > 0
}

// ── conversations ────────────────────────────────────────────────────────────

func (r *run) conversations() {
	for _, c := range r.p.Conversations.All() {
		if !conversationDefined(c) {
			// Reported as an undefined reference where it is bound.
			continue
		}
		at := "conversations." + c.ID

		if c.Quester.IsEmpty() {
			r.add(Finding{
				Severity: SeverityWarning,
				Code:     CodeBlankQuester,
				Location: at + ".quester",
				Message:  fmt.Sprintf("conversation %s has no quester name", c.ID),
			})
		}
		if len(c.Start) == 0 {
			r.add(Finding{
				Severity: SeverityWarning,
				Code:     CodeNoStart,
				Location: at + ".first",
				Message:  fmt.Sprintf("conversation %s has no starting options", c.ID),
			})
		}

		for _, ref := range c.Start {
			optionRef(r, at+".first", ref.Target, c.NpcOptions)
		}
		for _, o := range c.NpcOptions.All() {
			for _, ref := range o.Pointers {
				optionRef(r, at+".NPC_options."+o.ID+".pointers", ref.Target, c.PlayerOptions)
			}
		}
		for _, o := range c.PlayerOptions.All() {
			for _, ref := range o.Pointers {
				optionRef(r, at+".player_options."+o.ID+".pointers", ref.Target, c.NpcOptions)
			}
		}

		if len(c.Start) == 0 {
			continue
		}
		npc, player := c.Reachable()
		unreachable(r, at+".NPC_options", c.NpcOptions, npc)
		unreachable(r, at+".player_options", c.PlayerOptions, player)
	}
}

// optionRef checks a pointer or starting option inside one conversation.
func optionRef[T quest.ConversationOption](r *run, from string, target quest.Identifier, reg *quest.Registry[T]) {
	ok, candidates := definedBy(reg, target.ID, optionDefined[T])
	if ok {
		return
	}
	f := Finding{
		Severity: SeverityError,
		Code:     CodeUndefinedReference,
		Location: from,
		Target:   target,
		Message:  fmt.Sprintf("%s %s is never defined", target.Kind, target.ID),
	}
	if s, _, ok := r.l.matcher.Closest(target.ID, candidates); ok {
		f.Suggestion = s
	}
	r.add(f)
}

func unreachable[T quest.ConversationOption](r *run, at string, reg *quest.Registry[T], reached map[string]bool) {
	for _, o := range reg.All() {
		id := o.Details().ID
		if reached[id] || !optionDefined(o) {
			continue
		}
		r.add(Finding{
			Severity: SeverityInfo,
			Code:     CodeUnreachableOption,
			Location: at + "." + id,
			Target:   reg.Identifier(id),
			Message:  fmt.Sprintf("%s %s cannot be reached from the starting options", reg.Kind(), id),
		})
	}
}

// ── texts ────────────────────────────────────────────────────────────────────

// texts flags translated texts that have neither a default nor a translation
// in the package's default language.
func (r *run) texts() {
	lang := r.p.DefaultLanguage
	for at, t := range r.p.Texts() {
		if t.IsEmpty() || t.HasDefault() {
			continue
		}
		if lang != "" {
			if _, ok := t.Get(lang); ok {
				continue
			}
		}
		msg := "text has no default"
		if lang != "" {
			msg = fmt.Sprintf("text has no default and no %q translation", lang)
		}
		r.add(Finding{
			Severity: SeverityWarning,
			Code:     CodeMissingDefaultText,
			Location: at,
			Message:  msg,
		})
	}
}
