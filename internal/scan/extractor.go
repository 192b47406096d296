package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/jward/gircheck/internal/runtime"
)

// Declaration is a trait name found in a file, with its 1-based line.
type Declaration = runtime.Declaration

// Extractor finds declared trait names in the text of one file. It may
// report traits of any name; the Scanner keeps the ExtManual ones.
type Extractor interface {
	ExtractDeclaredTraitNames(ctx context.Context, path string, text []byte) ([]Declaration, error)
}

// Extractor kinds accepted by NewExtractor.
const (
	KindHeuristic  = "heuristic"
	KindTreeSitter = "treesitter"
	KindScript     = "script"
)

// NewExtractor returns the extractor for kind. scriptPath is only used by
// the script extractor; empty selects the embedded Rust script.
func NewExtractor(kind, scriptPath string, opts ...runtime.RuntimeOption) (Extractor, error) {
	switch kind {
	case "", KindHeuristic:
		return Heuristic{}, nil
	case KindTreeSitter:
		return TreeSitter{}, nil
	case KindScript:
		return NewScript(scriptPath, opts...), nil
	default:
		return nil, fmt.Errorf("scan: unknown extractor %q (want %s, %s or %s)", kind, KindHeuristic, KindTreeSitter, KindScript)
	}
}

const declPrefix = "pub trait "

// Heuristic is the line-based extractor. A declaration is a line that,
// once trimmed, starts with "pub trait "; the name runs up to the first
// '{', '<' or ':' (or the end of the line).
type Heuristic struct{}

// ExtractDeclaredTraitNames implements Extractor. It never fails.
func (Heuristic) ExtractDeclaredTraitNames(_ context.Context, _ string, text []byte) ([]Declaration, error) {
	var decls []Declaration
	for i, line := range strings.Split(string(text), "\n") {
		if name, ok := declaredName(line); ok {
			decls = append(decls, Declaration{Name: name, Line: i + 1})
		}
	}
	return decls, nil
}

func declaredName(line string) (string, bool) {
	line = strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(line, declPrefix)
	if !ok {
		return "", false
	}
	if end := strings.IndexAny(rest, "{<:"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimRight(rest, " \t"), true
}
