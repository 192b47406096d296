// Package checks holds the two textual sibling checks run next to the
// manual traits check: license headers and manifest indentation.
package checks

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultLicenseHeader is the first line every source file must carry.
const DefaultLicenseHeader = "// Take a look at the license at the top of the repository in the LICENSE file."

// DefaultIndentPattern selects the files whose indentation is checked.
const DefaultIndentPattern = "**/*.toml"

// IndentWidth is the unit leading whitespace must be a multiple of.
const IndentWidth = 4

// Problem identifies what a Finding is about.
type Problem int

const (
	MissingHeader Problem = iota
	MissingBlankLine
	BadIndent
)

// Finding is one failing file.
type Finding struct {
	Problem Problem
	Path    string
	Line    int // set for BadIndent
}

func (f Finding) String() string {
	switch f.Problem {
	case MissingHeader:
		return fmt.Sprintf("Missing header in `%s`", f.Path)
	case MissingBlankLine:
		return fmt.Sprintf("Expected empty line after license header in `%s`", f.Path)
	case BadIndent:
		return fmt.Sprintf("Invalid indent in `%s:%d`: it must be a multiple of %d!", f.Path, f.Line, IndentWidth)
	default:
		return fmt.Sprintf("unknown problem in `%s`", f.Path)
	}
}

// License checks every regular file directly under dir. The first line
// must equal header and the second must be empty.
func License(dir, header string) ([]Finding, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("checks: read directory %s: %w", dir, err)
	}
	var findings []Finding
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if isDir(path, entry) {
			continue
		}
		f, ok, err := licenseFile(path, header)
		if err != nil {
			return nil, err
		}
		if !ok {
			findings = append(findings, f)
		}
	}
	return findings, nil
}

func licenseFile(path, header string) (Finding, bool, error) {
	lines, err := firstLines(path, 2)
	if err != nil {
		return Finding{}, false, err
	}
	switch {
	case len(lines) != 2 || lines[0] != header:
		return Finding{Problem: MissingHeader, Path: path}, false, nil
	case lines[1] != "":
		return Finding{Problem: MissingBlankLine, Path: path}, false, nil
	}
	return Finding{}, true, nil
}

// Indent walks root recursively and checks every file whose path relative
// to root matches pattern. A file yields at most one finding, for its
// first badly indented line.
func Indent(root, pattern string) ([]Finding, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("checks: invalid indent pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return indentDir(root, root, pattern)
}

func indentDir(root, dir, pattern string) ([]Finding, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("checks: read directory %s: %w", dir, err)
	}
	var findings []Finding
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		// Symlinked directories are not followed, so cycles cannot occur.
		if entry.IsDir() {
			sub, err := indentDir(root, path, pattern)
			if err != nil {
				return nil, err
			}
			findings = append(findings, sub...)
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, fmt.Errorf("checks: %w", err)
		}
		if matched, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); !matched {
			continue
		}
		line, err := badIndentLine(path)
		if err != nil {
			return nil, err
		}
		if line > 0 {
			findings = append(findings, Finding{Problem: BadIndent, Path: path, Line: line})
		}
	}
	return findings, nil
}

// badIndentLine returns the 1-based first line whose leading whitespace is
// not a multiple of IndentWidth, or 0.
func badIndentLine(path string) (int, error) {
	bad := 0
	err := eachLine(path, func(n int, line string) bool {
		if (len(line)-len(strings.TrimLeftFunc(line, unicode.IsSpace)))%IndentWidth != 0 {
			bad = n
			return false
		}
		return true
	})
	return bad, err
}

func firstLines(path string, n int) ([]string, error) {
	var lines []string
	err := eachLine(path, func(_ int, line string) bool {
		lines = append(lines, line)
		return len(lines) < n
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// eachLine calls fn with every line of path, without its "\n" or "\r\n",
// until fn returns false. Lines have no length limit.
func eachLine(path string, fn func(n int, line string) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("checks: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for n := 1; ; n++ {
		line, err := r.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			if !fn(n, line) {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("checks: read %s: %w", path, err)
		}
	}
}

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
