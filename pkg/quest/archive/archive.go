// Package archive reads and writes quest packages in their on-disk format: a
// directory named after the package holding six fixed YAML files and one file
// per conversation,
//
//	<package>/main.yml
//	<package>/events.yml
//	<package>/conditions.yml
//	<package>/objectives.yml
//	<package>/journal.yml
//	<package>/items.yml
//	<package>/conversations/<conversation>.yml
//
// delivered either as a zip archive ([Load], [Save]) or unpacked on disk
// ([LoadDir], [SaveDir]).
//
// Loading flattens every file into dotted keys with package flatten and maps
// the keys onto a [quest.Package], creating entities on first mention so that
// references may point forward. Saving walks every registry in index order
// and writes a layout that loads back into an equal package.
//
// A load either returns a complete package or an error, never both.
// Recoverable anomalies such as a non-numeric priority or an unknown key are
// reported as warnings (see [WithWarningHandler]) and the load continues.
package archive

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/questpack/internal/observe"
)

// ErrPackageNotFound is returned by the loaders when one of the six fixed
// files is missing.
var ErrPackageNotFound = errors.New("archive: package not found")

// ErrUnknownKey is wrapped by the [KeyError] warning reported for a key the
// package format does not define.
var ErrUnknownKey = errors.New("unknown key")

// NumericFormatError is the warning reported for a numeric field that does
// not hold an integer. The field keeps its zero value.
type NumericFormatError struct {
	File  string
	Key   string
	Value string
	Err   error
}

// Error implements the error interface.
func (e *NumericFormatError) Error() string {
	return fmt.Sprintf("archive: %s: %s: %q is not an integer", e.File, e.Key, e.Value)
}

// Unwrap returns the strconv error.
func (e *NumericFormatError) Unwrap() error { return e.Err }

// KeyError reports a problem with a single key of a file. As a warning it
// wraps [ErrUnknownKey] or, for skipped reference tokens,
// [quest.ErrInvalidIdentifier]; a KeyError returned from a loader wraps the
// fatal cause.
type KeyError struct {
	File string
	Key  string
	Err  error
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return fmt.Sprintf("archive: %s: %s: %v", e.File, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *KeyError) Unwrap() error { return e.Err }

// ── options ──────────────────────────────────────────────────────────────────

// Option configures a load or save.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *observe.Metrics
	warn    func(error)
	modTime time.Time
}

// WithLogger sets the logger used for warnings and debug output. Default:
// [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the instruments load and save durations and entity counts
// are recorded to. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithWarningHandler registers fn to receive every recovered anomaly of a
// load, in file order. Warnings are logged either way.
func WithWarningHandler(fn func(error)) Option {
	return func(o *options) { o.warn = fn }
}

// WithModTime sets the modification time stamped on zip entries. The default
// is a fixed date, which makes saving the same package twice produce
// byte-identical archives.
func WithModTime(t time.Time) Option {
	return func(o *options) { o.modTime = t }
}

// archiveEpoch is the default entry modification time.
var archiveEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

func buildOptions(opts []Option) options {
	o := options{modTime: archiveEpoch}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// ── layout ───────────────────────────────────────────────────────────────────

// File roles, in the order their contents are applied to a package.
const (
	roleJournal    = "journal"
	roleItems      = "items"
	roleConditions = "conditions"
	roleEvents     = "events"
	roleObjectives = "objectives"
	roleMain       = "main"
)

// fixedRoles lists the six required files in load order. Conversations are
// applied after objectives and before main.
var fixedRoles = []string{roleJournal, roleItems, roleConditions, roleEvents, roleObjectives, roleMain}

// saveRoles is the order files are written in.
var saveRoles = []string{roleMain, roleEvents, roleConditions, roleObjectives, roleJournal, roleItems}

const (
	ymlExt          = ".yml"
	conversationDir = "conversations"

	// orderFile sits in the conversations directory of an unpacked package and
	// lists its conversation IDs one per line, in index order.
	orderFile = "order"
)

// entry is one file of a package. Its content is only read once the entry is
// known to be needed.
type entry struct {
	// name is the path the content is read from, used in errors.
	name string
	read func() ([]byte, error)
}

// source is a package's files sorted by role, before any of them is parsed.
type source struct {
	pkg           string
	roles         map[string]entry
	conversations []conversationEntry
}

type conversationEntry struct {
	id string
	entry
}

func newSource() *source {
	return &source{roles: make(map[string]entry, len(fixedRoles))}
}

// classify files the archive entry called name under its role. Path segments
// are separated by '/' or '\', in any mix. Names without a separator or
// without the ".yml" extension are ignored, as are files with an unknown base
// name. When a role is found twice the first entry wins.
func (s *source) classify(name string, read func() ([]byte, error)) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if !strings.Contains(slashed, "/") || !strings.HasSuffix(slashed, ymlExt) {
		return
	}
	segments := strings.Split(slashed, "/")
	base := strings.TrimSuffix(segments[len(segments)-1], ymlExt)
	parent := ""
	if len(segments) >= 2 {
		parent = segments[len(segments)-2]
	}

	if parent == conversationDir && len(segments) >= 3 {
		if base == "" {
			return
		}
		for _, c := range s.conversations {
			if c.id == base {
				return
			}
		}
		s.conversations = append(s.conversations, conversationEntry{id: base, entry: entry{name: name, read: read}})
		return
	}

	switch base {
	case roleMain, roleEvents, roleConditions, roleObjectives, roleJournal, roleItems:
	default:
		return
	}
	if _, ok := s.roles[base]; ok {
		return
	}
	s.roles[base] = entry{name: name, read: read}
	if base == roleMain {
		s.pkg = segments[0]
	}
}

// complete returns [ErrPackageNotFound] naming the missing roles, if any.
func (s *source) complete() error {
	var missing []string
	for _, r := range fixedRoles {
		if _, ok := s.roles[r]; !ok {
			missing = append(missing, r+ymlExt)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrPackageNotFound, strings.Join(missing, ", "))
	}
	return nil
}
