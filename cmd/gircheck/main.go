package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/jward/gircheck"
	"github.com/jward/gircheck/internal/config"
	"github.com/jward/gircheck/internal/report"
	"github.com/jward/gircheck/internal/runtime"
	"github.com/jward/gircheck/internal/scan"
	"github.com/jward/gircheck/internal/store"
	"github.com/spf13/cobra"
)

// errChecksFailed is returned once the "failed" line has been printed.
var errChecksFailed = errors.New("checks failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errChecksFailed) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// rootFlags holds the flags that are not settings keys.
type rootFlags struct {
	config         string
	noManualTraits bool
	noLicense      bool
	noIndent       bool
}

func newRootCmd() *cobra.Command {
	var rf rootFlags
	cmd := &cobra.Command{
		Use:   "gircheck [flags] <folder>... [--gir-file <name>] <folder>...",
		Short: "Check that manual extension traits are registered in Gir.toml",
		Long: `gircheck checks gtk-rs style crate folders. Every "pub trait XExtManual" in
<folder>/src must be listed in the manual_traits of the [[object]] entry for X
in the folder's Gir.toml, source files must start with the license header and
TOML files must be indented by multiples of four.

--gir-file changes the manifest for every folder after it. A relative value
is resolved inside each folder, an absolute one is used as is.

A folder named "history" must be written as ./history.`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, rf)
		},
	}

	fs := cmd.Flags()
	// Folders end flag parsing; later flags are handled by parseTargets.
	fs.SetInterspersed(false)
	fs.StringVar(&rf.config, "config", "", "settings file (default: ./"+config.FileName+" if present)")
	fs.String("gir-file", "Gir.toml", "manifest name or absolute path for the following folders")
	fs.String("extractor", scan.KindHeuristic, "trait extractor: heuristic|treesitter|script")
	fs.String("script", "", "Risor extraction script for --extractor script (default: embedded)")
	fs.Bool("continue-on-error", false, "skip unreadable source files instead of stopping the folder")
	fs.Int("parallel", 1, "number of folders checked at once")
	fs.String("db", "", "record the run in this SQLite database")
	fs.String("color", string(report.ColorAuto), "colour output: auto|always|never")
	fs.BoolP("verbose", "v", false, "debug logging on stderr")
	fs.String("license-header", "", "first line every source file must have")
	fs.String("indent-pattern", "", "glob of files whose indentation is checked")
	fs.BoolVar(&rf.noManualTraits, "no-manual-traits", false, "skip the manual traits check")
	fs.BoolVar(&rf.noLicense, "no-license", false, "skip the license header check")
	fs.BoolVar(&rf.noIndent, "no-indent", false, "skip the indentation check")

	cmd.AddCommand(newHistoryCmd())
	return cmd
}

func runCheck(cmd *cobra.Command, args []string, rf rootFlags) error {
	// Help after a folder skips everything, even broken settings.
	if wantsHelp(args) {
		return cmd.Help()
	}

	settings, path, err := config.Load(config.LoadOptions{File: rf.config, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	if rf.noManualTraits {
		settings.Checks.ManualTraits = false
	}
	if rf.noLicense {
		settings.Checks.License = false
	}
	if rf.noIndent {
		settings.Checks.Indent = false
	}

	parsed, err := parseTargets(args, settings.GirFile)
	if err != nil {
		return err
	}
	if len(parsed.targets) == 0 {
		return fmt.Errorf("no folder given\n\n%s", cmd.UsageString())
	}

	logger := newLogger(cmd.ErrOrStderr(), settings.Verbose)
	if path != "" {
		logger.Debug("settings loaded", "path", path)
	}

	color, err := report.ParseColor(settings.Color)
	if err != nil {
		return err
	}
	rep := report.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), color)

	extractor, err := scan.NewExtractor(settings.Extractor, settings.Script, runtime.WithRuntimeLogger(logger))
	if err != nil {
		return err
	}

	opts := []gircheck.Option{
		gircheck.WithExtractor(extractor),
		gircheck.WithContinueOnError(settings.ContinueOnError),
		gircheck.WithParallel(settings.Parallel),
		gircheck.WithLicenseHeader(settings.License.Header),
		gircheck.WithIndentPattern(settings.Indent.Pattern),
		gircheck.WithChecks(gircheck.CheckSet{
			ManualTraits: settings.Checks.ManualTraits,
			License:      settings.Checks.License,
			Indent:       settings.Checks.Indent,
		}),
		gircheck.WithLogger(logger),
		gircheck.WithReporter(rep),
	}

	if settings.DB != "" {
		s, err := openHistory(settings.DB)
		if err != nil {
			logger.Error("run history disabled", "db", settings.DB, "err", err)
		} else {
			defer s.Close()
			opts = append(opts, gircheck.WithHistory(s, args))
		}
	}

	checker := gircheck.New(opts...)
	res, err := checker.Run(cmd.Context(), parsed.targets)
	if err != nil {
		return err
	}
	checker.Finish(res)
	if !res.Passed {
		return errChecksFailed
	}
	return nil
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "gircheck",
		Level:  level,
	})
}

// openHistory opens and migrates the run history database.
func openHistory(path string) (*store.Store, error) {
	s, err := store.NewStore(path)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
