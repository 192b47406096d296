package scan

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/jward/gircheck/internal/runtime"
	"github.com/jward/gircheck/scripts"
)

// Script runs a Risor extraction script once per file. The script sees
// the globals source, file_path and emit(name, line) in addition to the
// runtime host functions, and the emitted names are its result. Files
// with no tree-sitter grammar fall back to Heuristic.
type Script struct {
	path string
	dir  string
	opts []runtime.RuntimeOption

	once   sync.Once
	source string
	err    error
}

// NewScript returns a Script extractor for the Risor file at path. An
// empty path selects the embedded extract/rust.risor.
func NewScript(path string, opts ...runtime.RuntimeOption) *Script {
	s := &Script{path: path}
	if path == "" {
		s.path = runtime.ExtractionScriptPath("rust")
		s.opts = append(s.opts, runtime.WithRuntimeFS(scripts.FS))
	} else {
		// LoadScript joins relative paths onto the scripts dir, and imports
		// resolve next to the user's script.
		if abs, err := filepath.Abs(path); err == nil {
			s.path = abs
		}
		s.dir = filepath.Dir(s.path)
	}
	s.opts = append(s.opts, opts...)
	return s
}

func (s *Script) newRuntime() *runtime.Runtime {
	return runtime.NewRuntime(s.dir, s.opts...)
}

func (s *Script) load() (string, error) {
	s.once.Do(func() {
		s.source, s.err = s.newRuntime().LoadScript(s.path)
	})
	return s.source, s.err
}

// ExtractDeclaredTraitNames implements Extractor.
func (s *Script) ExtractDeclaredTraitNames(ctx context.Context, path string, text []byte) ([]Declaration, error) {
	if _, ok := runtime.LanguageForFile(path); !ok {
		return Heuristic{}.ExtractDeclaredTraitNames(ctx, path, text)
	}
	src, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	// A Runtime per file keeps the parsed-tree index from growing across
	// the scan.
	rt := s.newRuntime()
	c := runtime.NewCollector()
	globals := c.Globals()
	globals["source"] = string(text)
	globals["file_path"] = path
	if err := rt.RunSource(ctx, src, globals); err != nil {
		return nil, fmt.Errorf("scan: extract %s: %w", path, err)
	}
	return c.Declarations(), nil
}
