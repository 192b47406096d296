// Package scan lists the files of a source directory and extracts the
// manual extension traits they declare.
package scan

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// ManualSuffix ends every manual extension trait name.
const ManualSuffix = "ExtManual"

// Candidate is a manual trait declaration found by a scan.
type Candidate struct {
	Name string
	File string
	Line int
}

// FileError reports a file that could not be read or extracted.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("scan: %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Result is the outcome of Scan.
type Result struct {
	// Candidates in file-then-line order.
	Candidates []Candidate

	// Skipped holds the files given up on when ContinueOnError is set.
	Skipped []*FileError
}

// Scanner walks one directory level.
type Scanner struct {
	// Extractor defaults to Heuristic.
	Extractor Extractor

	// ContinueOnError records unreadable files in Result.Skipped instead
	// of aborting the scan on the first one.
	ContinueOnError bool

	Logger *log.Logger
}

// Scan reads every regular file directly under dir in lexical order and
// returns the ExtManual traits they declare. Subdirectories are skipped.
func (s *Scanner) Scan(ctx context.Context, dir string) (*Result, error) {
	extractor := s.Extractor
	if extractor == nil {
		extractor = Heuristic{}
	}
	logger := s.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan: read directory %s: %w", dir, err)
	}

	res := &Result{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, entry.Name())
		if isDir(path, entry) {
			continue
		}

		decls, err := s.extractFile(ctx, extractor, path)
		if err != nil {
			ferr := &FileError{Path: path, Err: err}
			if !s.ContinueOnError {
				return nil, ferr
			}
			logger.Warn("skipping file", "path", path, "err", err)
			res.Skipped = append(res.Skipped, ferr)
			continue
		}

		for _, d := range decls {
			if !strings.HasSuffix(d.Name, ManualSuffix) {
				continue
			}
			res.Candidates = append(res.Candidates, Candidate{Name: d.Name, File: path, Line: d.Line})
		}
		logger.Debug("scanned file", "path", path, "declarations", len(decls))
	}
	return res, nil
}

func (s *Scanner) extractFile(ctx context.Context, extractor Extractor, path string) ([]Declaration, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return extractor.ExtractDeclaredTraitNames(ctx, path, text)
}

// isDir follows symlinks, so a link to a directory is skipped too.
func isDir(path string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
