package runtime

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/charmbracelet/log"
	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
)

// parsedTree is what node_text and query need to know about the tree a
// node came from.
type parsedTree struct {
	src  []byte
	lang *sitter.Language
}

// sourceStore maps root nodes to their parsedTree. smacker/go-tree-sitter
// has no Node.Tree(), so a node is resolved by walking Parent() to the root
// and using the root pointer as key. The binding caches *Node per tree, so
// the pointer returned by RootNode() at parse time is stable.
type sourceStore struct {
	mu    sync.RWMutex
	trees map[uintptr]parsedTree
}

func newSourceStore() *sourceStore {
	return &sourceStore{trees: make(map[uintptr]parsedTree)}
}

func rootKey(node *sitter.Node) uintptr {
	for node.Parent() != nil {
		node = node.Parent()
	}
	return uintptr(unsafe.Pointer(node))
}

func (s *sourceStore) store(tree *sitter.Tree, src []byte, lang *sitter.Language) {
	key := uintptr(unsafe.Pointer(tree.RootNode()))
	s.mu.Lock()
	s.trees[key] = parsedTree{src: src, lang: lang}
	s.mu.Unlock()
}

func (s *sourceStore) lookup(node *sitter.Node) (parsedTree, bool) {
	key := rootKey(node)
	s.mu.RLock()
	pt, ok := s.trees[key]
	s.mu.RUnlock()
	return pt, ok
}

// Parse parses src with the grammar registered for lang. The caller owns
// the returned tree.
func Parse(ctx context.Context, src []byte, lang string) (*sitter.Tree, *sitter.Language, error) {
	grammar, found := ParserForLanguage(lang)
	if !found {
		return nil, nil, fmt.Errorf("runtime: unsupported language %q", lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("runtime: tree-sitter parse: %w", err)
	}
	return tree, grammar, nil
}

func stringArg(fn, what string, obj object.Object) (string, *object.Error) {
	s, ok := obj.(*object.String)
	if !ok {
		return "", object.Errorf("%s: %s must be a string, got %s", fn, what, obj.Type())
	}
	return s.Value(), nil
}

func nodeArg(fn string, obj object.Object) (*sitter.Node, *object.Error) {
	proxy, ok := obj.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected a node, got %s", fn, obj.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", fn, proxy.Interface())
	}
	return node, nil
}

// makeParseFn builds both "parse" (first argument is a path) and
// "parse_src" (first argument is the source text).
//
// parse(path, language) -> Tree
// parse_src(source, language) -> Tree
func makeParseFn(ss *sourceStore, name string, fromFile bool) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError(name, 2, len(args))
		}
		first, oerr := stringArg(name, "first argument", args[0])
		if oerr != nil {
			return oerr
		}
		langName, oerr := stringArg(name, "language", args[1])
		if oerr != nil {
			return oerr
		}

		src := []byte(first)
		if fromFile {
			data, err := os.ReadFile(first)
			if err != nil {
				return object.Errorf("%s: reading %s: %v", name, first, err)
			}
			src = data
		}

		tree, lang, err := Parse(ctx, src, langName)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		ss.store(tree, src, lang)

		proxy, err := object.NewProxy(tree)
		if err != nil {
			return object.Errorf("%s: proxy error: %v", name, err)
		}
		return proxy
	})
}

// makeNodeTextFn creates "node_text". Risor proxies cannot hand a []byte to
// Node.Content, so the source is looked up here.
//
// node_text(node) -> string
func makeNodeTextFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, oerr := nodeArg("node_text", args[0])
		if oerr != nil {
			return oerr
		}
		pt, ok := ss.lookup(node)
		if !ok {
			return object.Errorf("node_text: node does not belong to a parsed tree")
		}
		return object.NewString(node.Content(pt.src))
	})
}

// makeQueryFn creates "query". Each match becomes a map from capture name
// to node. Predicates such as #eq? are applied.
//
// query(pattern, node) -> [{capture: Node}]
func makeQueryFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, oerr := stringArg("query", "pattern", args[0])
		if oerr != nil {
			return oerr
		}
		node, oerr := nodeArg("query", args[1])
		if oerr != nil {
			return oerr
		}
		pt, ok := ss.lookup(node)
		if !ok {
			return object.Errorf("query: node does not belong to a parsed tree")
		}

		captures, err := runQuery(pattern, pt, node)
		if err != nil {
			return object.Errorf("query: %v", err)
		}

		results := make([]object.Object, 0, len(captures))
		for _, m := range captures {
			entry := make(map[string]object.Object, len(m))
			for capName, capNode := range m {
				p, err := object.NewProxy(capNode)
				if err != nil {
					return object.Errorf("query: proxy error for capture %q: %v", capName, err)
				}
				entry[capName] = p
			}
			results = append(results, object.NewMap(entry))
		}
		return object.NewList(results)
	})
}

// runQuery executes pattern under node and returns the captures of every
// match that survives predicate filtering.
func runQuery(pattern string, pt parsedTree, node *sitter.Node) ([]map[string]*sitter.Node, error) {
	q, err := sitter.NewQuery([]byte(pattern), pt.lang)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	defer q.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, node)

	var out []map[string]*sitter.Node
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		match = cursor.FilterPredicates(match, pt.src)
		if len(match.Captures) == 0 {
			continue
		}
		m := make(map[string]*sitter.Node, len(match.Captures))
		for _, c := range match.Captures {
			m[q.CaptureNameForId(c.Index)] = c.Node
		}
		out = append(out, m)
	}
	return out, nil
}

// makeNodeChildFn creates "node_child", a ChildByFieldName that yields
// Risor nil rather than a proxied nil pointer.
//
// node_child(node, field) -> Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, oerr := nodeArg("node_child", args[0])
		if oerr != nil {
			return oerr
		}
		field, oerr := stringArg("node_child", "field", args[1])
		if oerr != nil {
			return oerr
		}

		child := node.ChildByFieldName(field)
		if child == nil {
			return object.Nil
		}
		p, err := object.NewProxy(child)
		if err != nil {
			return object.Errorf("node_child: proxy error: %v", err)
		}
		return p
	})
}

// logObject exposes log.Info/Warn/Error to scripts.
type logObject struct {
	logger *log.Logger
}

func (l *logObject) Info(msg string)  { l.logger.Info(msg, "source", "script") }
func (l *logObject) Warn(msg string)  { l.logger.Warn(msg, "source", "script") }
func (l *logObject) Error(msg string) { l.logger.Error(msg, "source", "script") }
