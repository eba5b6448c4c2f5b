package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/questpack/pkg/quest"
	"github.com/MrWong99/questpack/pkg/quest/archive"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// writeVillage saves a small package to dir/village.zip. With broken set the
// innkeeper greets with an event that does not exist.
func writeVillage(t *testing.T, dir string, broken bool) string {
	t.Helper()
	p := quest.NewPackage("village")
	p.DefaultLanguage = "en"
	must(p.Events.Define("give_beer", quest.NewEvent)).SetInstruction("give beer:1")

	inn := must(p.Conversations.Define("innkeeper", p.NewConversation))
	inn.Quester.SetDefault("Innkeeper")
	inn.Quester.Set("de", "Wirt")
	inn.Start = must(quest.ParseLocalRefs("greet", inn.NpcOptions, quest.NewNpcOption))
	greet := must(inn.NpcOptions.Define("greet", quest.NewNpcOption))
	greet.Text.SetDefault("Hello")
	events := "give_beer"
	if broken {
		events = "giv_beer"
	}
	greet.Events = must(quest.ParseRefs(events, p.Events, quest.NewEvent))
	p.Normalize()

	path := filepath.Join(dir, "village.zip")
	if err := archive.SaveFile(context.Background(), path, p); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	return path
}

// runCLI runs the command line with a config file that does not exist, so
// every test starts from the defaults.
func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	args = append([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, args...)
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Inspect(t *testing.T) {
	t.Parallel()
	path := writeVillage(t, t.TempDir(), false)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "default language",
			args: []string{"inspect", path},
			want: []string{"village", "default language:", "conversation", "innkeeper", `"Innkeeper"`, "start: greet"},
		},
		{
			name: "other language",
			args: []string{"inspect", "--lang", "de", path},
			want: []string{`"Wirt"`},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			code, out, stderr := runCLI(t, tc.args...)
			if code != exitOK {
				t.Fatalf("exit code = %d, want %d; stderr: %s", code, exitOK, stderr)
			}
			for _, w := range tc.want {
				if !strings.Contains(out, w) {
					t.Errorf("output lacks %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestRun_Lint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		broken   bool
		extra    []string
		wantCode int
		want     string
	}{
		{name: "clean", wantCode: exitOK, want: "village: 0 errors, 0 warnings, 0 infos"},
		{name: "undefined event", broken: true, wantCode: exitFindings, want: `did you mean "give_beer"?`},
		{name: "fail on warning", extra: []string{"--fail-on", "warning"}, wantCode: exitOK},
		{name: "unknown severity", extra: []string{"--fail-on", "fatal"}, wantCode: exitFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeVillage(t, t.TempDir(), tc.broken)
			code, out, stderr := runCLI(t, append([]string{"lint", path}, tc.extra...)...)
			if code != tc.wantCode {
				t.Fatalf("exit code = %d, want %d; stdout: %s; stderr: %s", code, tc.wantCode, out, stderr)
			}
			if !strings.Contains(out, tc.want) {
				t.Errorf("output lacks %q:\n%s", tc.want, out)
			}
		})
	}
}

func TestRun_LintWorkspace(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	village := writeVillage(t, dir, false)

	castle := quest.NewPackage("castle")
	must(castle.Events.Define("open_gate", quest.NewEvent)).SetInstruction("folder village.give_beer")
	c := must(castle.Cancelers.Define("siege", quest.NewQuestCanceler))
	c.Name.SetDefault("Siege")
	c.Events = must(quest.ParseRefs("village.give_beer", castle.Events, quest.NewEvent))
	castle.Normalize()
	castlePath := filepath.Join(dir, "castle")
	if err := archive.SaveDir(context.Background(), castlePath, castle); err != nil {
		t.Fatalf("SaveDir: %v", err)
	}

	code, out, _ := runCLI(t, "lint", castlePath)
	if code != exitFindings || !strings.Contains(out, "not loaded") {
		t.Errorf("without workspace: exit code = %d, output:\n%s", code, out)
	}
	code, out, _ = runCLI(t, "lint", castlePath, "--workspace", village)
	if code != exitOK {
		t.Errorf("with workspace: exit code = %d, output:\n%s", code, out)
	}
}

func TestRun_Convert(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeVillage(t, dir, false)
	unpacked := filepath.Join(dir, "out", "village")
	repacked := filepath.Join(dir, "repacked.ZIP")

	for _, args := range [][]string{
		{"convert", src, unpacked},
		{"convert", unpacked, repacked},
	} {
		if code, _, stderr := runCLI(t, args...); code != exitOK {
			t.Fatalf("%v: exit code = %d; stderr: %s", args, code, stderr)
		}
	}

	if _, err := os.Stat(filepath.Join(unpacked, "main.yml")); err != nil {
		t.Errorf("directory output lacks main.yml: %v", err)
	}
	want := must(archive.LoadFile(context.Background(), src))
	got := must(archive.LoadFile(context.Background(), repacked))
	if got.Name != want.Name {
		t.Errorf("package name = %q, want %q", got.Name, want.Name)
	}
	if diff := cmp.Diff(want.Counts(), got.Counts()); diff != "" {
		t.Errorf("entity counts changed (-want +got):\n%s", diff)
	}
}

func TestRun_ConvertIntoOtherDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeVillage(t, dir, false)
	out := filepath.Join(dir, "unpacked")

	if code, _, stderr := runCLI(t, "convert", src, out); code != exitOK {
		t.Fatalf("exit code = %d; stderr: %s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(out, "main.yml")); err == nil {
		t.Errorf("package written directly into %s, whose name differs from the package", out)
	}
	got, err := archive.LoadPath(context.Background(), filepath.Join(out, "village"))
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	if got.Name != "village" {
		t.Errorf("package name = %q, want village", got.Name)
	}
}

// TestRun_WatchStopsCleanly installs global telemetry providers, so it does
// not run in parallel.
func TestRun_WatchStopsCleanly(t *testing.T) {
	origMP, origTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})
	dir := t.TempDir()
	path := writeVillage(t, dir, false)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	var out, errOut bytes.Buffer
	args := []string{
		"--config", filepath.Join(dir, "absent.yaml"),
		"watch", "--interval", "50ms", "--listen", "127.0.0.1:0", path,
	}
	if code := run(ctx, args, &out, &errOut); code != exitOK {
		t.Fatalf("exit code = %d, want %d; stderr: %s", code, exitOK, errOut.String())
	}
	for _, want := range []string{"watch: package loaded", "watch: http server stopped"} {
		if !strings.Contains(errOut.String(), want) {
			t.Errorf("log lacks %q:\n%s", want, errOut.String())
		}
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	badConfig := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(badConfig, []byte("colour: blue\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing package", args: []string{"inspect", filepath.Join(dir, "nope.zip")}, want: "nope.zip"},
		{name: "unknown command", args: []string{"explode"}, want: "unknown command"},
		{name: "bad log level", args: []string{"--log-level", "loud", "inspect", "x"}, want: "--log-level"},
		{name: "bad config", args: []string{"--config", badConfig, "inspect", "x"}, want: "colour"},
		{name: "store without dsn", args: []string{"store", "list"}, want: "no database configured"},
		{name: "wrong arg count", args: []string{"convert", "only-one"}, want: "accepts 2 arg(s)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			code, _, stderr := runCLI(t, tc.args...)
			if code != exitFailure {
				t.Errorf("exit code = %d, want %d", code, exitFailure)
			}
			if !strings.Contains(stderr, tc.want) {
				t.Errorf("stderr lacks %q:\n%s", tc.want, stderr)
			}
		})
	}
}
