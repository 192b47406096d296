package store

import "time"

// Run is one gircheck invocation.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time // zero until FinishRun
	Args       []string
	Finished   bool
	Passed     bool
}

// FolderResult is the outcome of all checks on one folder.
type FolderResult struct {
	ID      int64
	RunID   int64
	Folder  string
	GirFile string
	Passed  bool

	// Error is set when the folder could not be checked at all.
	Error string

	// Findings are the license and indent messages.
	Findings []string

	// Candidates counts the manual traits found in source.
	Candidates int
}

// Violation is a manual trait missing from the gir file.
type Violation struct {
	ID             int64
	FolderResultID int64
	Trait          string
	Object         string
	File           string
	Line           int
}
