package scan

import (
	"context"
	"fmt"

	"github.com/jward/gircheck/internal/runtime"
	sitter "github.com/smacker/go-tree-sitter"
)

const pubTraitQuery = `(trait_item
  (visibility_modifier) @vis
  (#eq? @vis "pub")
  name: (type_identifier) @name)`

// TreeSitter parses Rust files with the tree-sitter grammar and reports
// every trait declared with plain `pub` visibility, wherever it sits in
// the file. Files the grammar registry does not know fall back to
// Heuristic.
type TreeSitter struct{}

// ExtractDeclaredTraitNames implements Extractor.
func (TreeSitter) ExtractDeclaredTraitNames(ctx context.Context, path string, text []byte) ([]Declaration, error) {
	lang, ok := runtime.LanguageForFile(path)
	if !ok {
		return Heuristic{}.ExtractDeclaredTraitNames(ctx, path, text)
	}

	tree, grammar, err := runtime.Parse(ctx, text, lang)
	if err != nil {
		return nil, fmt.Errorf("scan: parse %s: %w", path, err)
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(pubTraitQuery), grammar)
	if err != nil {
		return nil, fmt.Errorf("scan: compile trait query: %w", err)
	}
	defer q.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, tree.RootNode())

	var decls []Declaration
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		match = cursor.FilterPredicates(match, text)
		for _, c := range match.Captures {
			if q.CaptureNameForId(c.Index) != "name" {
				continue
			}
			decls = append(decls, Declaration{
				Name: c.Node.Content(text),
				Line: int(c.Node.StartPoint().Row) + 1,
			})
		}
	}
	return decls, nil
}
