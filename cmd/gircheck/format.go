package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// validFormats lists accepted values for --format.
var validFormats = []string{"text", "json"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

func outputJSON(w io.Writer, command string, results any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(CLIResult{Command: command, Results: results})
}

func verdict(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}

// formatRunsText prints each run header followed by its folders and their
// violations.
func formatRunsText(w io.Writer, runs []CLIRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for i, r := range runs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		status := verdict(r.Passed)
		if r.FinishedAt == nil {
			status = "unfinished"
		}
		fmt.Fprintf(w, "Run #%d  %s  %s\n", r.ID, r.StartedAt.Local().Format(time.DateTime), status)
		if len(r.Args) > 0 {
			fmt.Fprintf(w, "  args: %s\n", strings.Join(r.Args, " "))
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  FOLDER\tGIR FILE\tRESULT\tTRAITS\tVIOLATIONS")
		for _, f := range r.Folders {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\t%d\n", f.Folder, f.GirFile, verdict(f.Passed), f.Candidates, len(f.Violations))
		}
		tw.Flush()

		for _, f := range r.Folders {
			if f.Error != "" {
				fmt.Fprintf(w, "  %s: error: %s\n", f.Folder, f.Error)
			}
			for _, v := range f.Violations {
				fmt.Fprintf(w, "  %s: %s (%s:%d)\n", f.Folder, v.Trait, v.File, v.Line)
			}
			for _, finding := range f.Findings {
				fmt.Fprintf(w, "  %s: %s\n", f.Folder, finding)
			}
		}
	}
}

// formatTraitCountsText formats --by-trait as aligned columns.
func formatTraitCountsText(w io.Writer, counts []CLITraitCount) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRAIT\tCOUNT")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\n", c.Trait, c.Count)
	}
	tw.Flush()
}
