// Package manifest loads a gir configuration manifest (Gir.toml) into a
// read-only tree of tagged Nodes with dotted-path lookups.
package manifest

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// DefaultFileName is the manifest looked up in a crate folder when no
// override is given.
const DefaultFileName = "Gir.toml"

// Document is a decoded manifest. The embedded root Node is always a table.
type Document struct {
	*Node
	Path string
}

// ParseError reports a manifest whose content is not valid TOML. It is a
// configuration error: the folder cannot be checked.
type ParseError struct {
	Path string
	Line int // 0 when the decoder did not report a position
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid manifest %s (line %d): %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("invalid manifest %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads and decodes the manifest at path. Read failures are returned
// wrapped (errors.Is(err, fs.ErrNotExist) holds for a missing file);
// malformed content is returned as *ParseError.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes manifest text. name is only used in error messages and as
// Document.Path.
func Parse(name string, data []byte) (*Document, error) {
	var raw map[string]any
	_, err := toml.Decode(string(data), &raw)
	if err != nil {
		perr := &ParseError{Path: name, Err: err}
		var tomlErr toml.ParseError
		if errors.As(err, &tomlErr) {
			perr.Line = tomlErr.Position.Line
		}
		return nil, perr
	}
	return &Document{Node: table(raw), Path: name}, nil
}

func node(v any) *Node {
	switch t := v.(type) {
	case map[string]any:
		return table(t)
	case []map[string]any:
		items := make([]*Node, len(t))
		for i, m := range t {
			items[i] = table(m)
		}
		return &Node{Kind: KindArray, items: items}
	case []any:
		items := make([]*Node, len(t))
		for i, elem := range t {
			items[i] = node(elem)
		}
		return &Node{Kind: KindArray, items: items}
	case string:
		return &Node{Kind: KindString, str: t}
	default:
		return &Node{Kind: KindOther}
	}
}

func table(m map[string]any) *Node {
	n := &Node{Kind: KindTable, fields: make(map[string]*Node, len(m))}
	for key, val := range m {
		n.fields[key] = node(val)
	}
	return n
}
