// Command questpack inspects, lints, converts, watches and stores quest
// packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/questpack/internal/config"
	"github.com/MrWong99/questpack/pkg/quest/archive"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitFindings = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitError carries a non-zero exit code out of a command without printing
// anything further.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "questpack: %v\n", err)
	return exitFailure
}

// cli is the state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	log    *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "questpack",
		Short: "Work with quest package archives",
		Long: `questpack reads and writes quest packages stored as zip archives or as
unpacked directories.

Examples:
  questpack inspect village.zip
  questpack lint village.zip --workspace castle.zip
  questpack convert village.zip village/
  questpack watch village/ --listen :9090
  questpack store put village.zip`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&c.configPath, "config", "questpack.yaml", "path to the YAML configuration file; a missing file means defaults")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level override: debug, info, warn or error")

	root.AddCommand(
		c.inspectCmd(),
		c.lintCmd(),
		c.convertCmd(),
		c.watchCmd(),
		c.storeCmd(),
	)
	return root
}

// setup loads the configuration and builds the logger before any subcommand
// runs.
func (c *cli) setup(*cobra.Command, []string) error {
	cfg, err := config.LoadOptional(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		lvl := config.LogLevel(c.logLevel)
		if !lvl.IsValid() {
			return fmt.Errorf("invalid --log-level %q", c.logLevel)
		}
		cfg.LogLevel = lvl
	}
	c.cfg = cfg
	c.log = newLogger(c.stderr, cfg.LogLevel)
	return nil
}

// archiveOptions returns the codec options every command passes to loads
// and saves.
func (c *cli) archiveOptions() []archive.Option {
	return []archive.Option{archive.WithLogger(c.log)}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, level config.LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.Level()}))
}
