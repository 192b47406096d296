package main

import "time"

// CLIResult is the JSON envelope of the history command.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIRun is a recorded run with its folders.
type CLIRun struct {
	ID         int64       `json:"id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Args       []string    `json:"args"`
	Passed     bool        `json:"passed"`
	Folders    []CLIFolder `json:"folders"`
}

// CLIFolder is the stored outcome for one folder.
type CLIFolder struct {
	Folder     string         `json:"folder"`
	GirFile    string         `json:"gir_file"`
	Passed     bool           `json:"passed"`
	Error      string         `json:"error,omitempty"`
	Findings   []string       `json:"findings,omitempty"`
	Candidates int            `json:"candidates"`
	Violations []CLIViolation `json:"violations,omitempty"`
}

// CLIViolation is a manual trait that was missing from the gir file.
type CLIViolation struct {
	Trait  string `json:"trait"`
	Object string `json:"object"`
	File   string `json:"file"`
	Line   int    `json:"line"`
}

// CLITraitCount is one row of --by-trait.
type CLITraitCount struct {
	Trait string `json:"trait"`
	Count int    `json:"count"`
}
