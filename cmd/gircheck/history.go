package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jward/gircheck/internal/config"
	"github.com/jward/gircheck/internal/store"
	"github.com/spf13/cobra"
)

type historyFlags struct {
	config  string
	db      string
	limit   int
	format  string
	byTrait bool
	keep    int
}

func newHistoryCmd() *cobra.Command {
	var hf historyFlags
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List runs recorded with --db",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(hf.format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, hf)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&hf.config, "config", "", "settings file (default: ./"+config.FileName+" if present)")
	fs.StringVar(&hf.db, "db", "", "history database (default: db from settings)")
	fs.IntVar(&hf.limit, "limit", 10, "number of runs to show, 0 for all")
	fs.StringVar(&hf.format, "format", "text", "output format: text|json")
	fs.BoolVar(&hf.byTrait, "by-trait", false, "count violations per trait over all runs instead")
	fs.IntVar(&hf.keep, "keep", 0, "delete all but the newest N runs before listing")
	return cmd
}

func runHistory(cmd *cobra.Command, hf historyFlags) error {
	dbPath := hf.db
	if dbPath == "" {
		settings, _, err := config.Load(config.LoadOptions{File: hf.config})
		if err != nil {
			return err
		}
		dbPath = settings.DB
	}
	if dbPath == "" {
		return errors.New("no history database: pass --db or set db in " + config.FileName)
	}

	s, err := openHistory(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	logger := newLogger(cmd.ErrOrStderr(), false)
	if hf.keep > 0 {
		n, err := s.PruneRuns(hf.keep)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("pruned runs", "count", n, "kept", hf.keep)
		}
	}

	w := cmd.OutOrStdout()
	if hf.byTrait {
		counts, err := traitCounts(s)
		if err != nil {
			return err
		}
		if hf.format == "json" {
			return outputJSON(w, "history", counts)
		}
		formatTraitCountsText(w, counts)
		return nil
	}

	runs, err := loadRuns(s, hf.limit)
	if err != nil {
		return err
	}
	if hf.format == "json" {
		return outputJSON(w, "history", runs)
	}
	formatRunsText(w, runs)
	return nil
}

// loadRuns reads the newest runs with their folders and violations.
func loadRuns(s *store.Store, limit int) ([]CLIRun, error) {
	runs, err := s.RecentRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	out := make([]CLIRun, 0, len(runs))
	for _, r := range runs {
		cr := CLIRun{
			ID:        r.ID,
			StartedAt: r.StartedAt,
			Args:      r.Args,
			Passed:    r.Passed,
		}
		if r.Finished {
			finished := r.FinishedAt
			cr.FinishedAt = &finished
		}
		folders, err := s.FolderResults(r.ID)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		for _, f := range folders {
			cf := CLIFolder{
				Folder:     f.Folder,
				GirFile:    f.GirFile,
				Passed:     f.Passed,
				Error:      f.Error,
				Findings:   f.Findings,
				Candidates: f.Candidates,
			}
			vs, err := s.Violations(f.ID)
			if err != nil {
				return nil, fmt.Errorf("history: %w", err)
			}
			for _, v := range vs {
				cf.Violations = append(cf.Violations, CLIViolation{Trait: v.Trait, Object: v.Object, File: v.File, Line: v.Line})
			}
			cr.Folders = append(cr.Folders, cf)
		}
		out = append(out, cr)
	}
	return out, nil
}

// traitCounts returns violation counts, most frequent first.
func traitCounts(s *store.Store) ([]CLITraitCount, error) {
	m, err := s.ViolationCountsByTrait()
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	counts := make([]CLITraitCount, 0, len(m))
	for trait, n := range m {
		counts = append(counts, CLITraitCount{Trait: trait, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Trait < counts[j].Trait
	})
	return counts, nil
}
