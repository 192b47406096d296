package runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rustTestSource = `// Take a look at the license at the top of the repository in the LICENSE file.

use glib::prelude::*;

pub trait WidgetExtManual: IsA<Widget> + 'static {
    fn set_name(&self, name: &str);
}

pub(crate) trait Hidden {}

trait Private {}

impl<O: IsA<Widget>> WidgetExtManual for O {
    fn set_name(&self, name: &str) {}
}
`

// --- Language detection tests ---

func TestLanguageForFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"widget.rs", "rust", true},
		{"src/auto/mod.RS", "rust", true}, // case insensitive
		{"Gir.toml", "", false},
		{"Makefile", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, ok := LanguageForFile(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParserForLanguage(t *testing.T) {
	t.Parallel()

	l, ok := ParserForLanguage("rust")
	require.True(t, ok)
	require.NotNil(t, l)

	_, ok = ParserForLanguage("cobol")
	assert.False(t, ok)
}

// --- Parse tests ---

func TestParse_RustRootNode(t *testing.T) {
	t.Parallel()

	tree, lang, err := Parse(context.Background(), []byte(rustTestSource), "rust")
	require.NoError(t, err)
	defer tree.Close()

	require.NotNil(t, lang)
	assert.Equal(t, "source_file", tree.RootNode().Type())
}

func TestParse_UnsupportedLanguage(t *testing.T) {
	t.Parallel()

	_, _, err := Parse(context.Background(), []byte("x"), "cobol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cobol")
}

func TestParse_InvalidSourceStillReturnsTree(t *testing.T) {
	t.Parallel()

	tree, _, err := Parse(context.Background(), []byte("pub trait {{{ <"), "rust")
	require.NoError(t, err)
	defer tree.Close()
	assert.True(t, tree.RootNode().HasError())
}

// --- Risor integration tests (via RunSource) ---

func TestRunSource_ParseSrcAndQuery(t *testing.T) {
	rt := NewRuntime("")

	script := `
tree := parse_src(src, "rust")
root := tree.RootNode()
assert(root.Type() == "source_file", "expected source_file")

matches := query("(trait_item name: (type_identifier) @name)", root)
assert(len(matches) == 3, 'expected 3 traits, got {len(matches)}')
first := node_text(matches[0]["name"])
assert(first == "WidgetExtManual", 'expected WidgetExtManual, got {first}')
`
	err := rt.RunSource(context.Background(), script, map[string]any{
		"src": rustTestSource,
	})
	require.NoError(t, err)
}

func TestRunSource_ParseFromDisk(t *testing.T) {
	dir := t.TempDir()
	rsFile := filepath.Join(dir, "widget.rs")
	require.NoError(t, os.WriteFile(rsFile, []byte(rustTestSource), 0o644))

	rt := NewRuntime("")

	script := `
tree := parse(path, "rust")
root := tree.RootNode()
names := []
count := int(root.NamedChildCount())
for i := 0; i < count; i++ {
    child := root.NamedChild(i)
    if child.Type() == "trait_item" {
        names.append(node_text(node_child(child, "name")))
    }
}
assert(len(names) == 3, 'expected 3 names, got {len(names)}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, map[string]any{"path": rsFile}))
}

func TestRunSource_NodeChildMissingFieldIsNil(t *testing.T) {
	rt := NewRuntime("")

	script := `
tree := parse_src("trait Marker {}", "rust")
item := tree.RootNode().NamedChild(0)
assert(node_child(item, "type_parameters") == nil, "expected nil")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_QueryInvalidPattern(t *testing.T) {
	rt := NewRuntime("")

	script := `
tree := parse_src("trait Marker {}", "rust")
query("(not_a_real_node_type @x)", tree.RootNode())
`
	err := rt.RunSource(context.Background(), script, nil)
	require.Error(t, err)
}

func TestRunSource_EmitCollectsDeclarations(t *testing.T) {
	rt := NewRuntime("")
	c := NewCollector()

	script := `
tree := parse_src(src, "rust")
for _, m := range query("(trait_item name: (type_identifier) @name)", tree.RootNode()) {
    n := m["name"]
    emit(node_text(n), int(n.StartPoint().Row) + 1)
}
emit("Bare")
`
	globals := c.Globals()
	globals["src"] = rustTestSource
	require.NoError(t, rt.RunSource(context.Background(), script, globals))

	assert.Equal(t, []Declaration{
		{Name: "WidgetExtManual", Line: 5},
		{Name: "Hidden", Line: 9},
		{Name: "Private", Line: 11},
		{Name: "Bare", Line: 0},
	}, c.Declarations())
}

func TestRunSource_EmitRejectsBadArguments(t *testing.T) {
	rt := NewRuntime("")

	for _, script := range []string{`emit()`, `emit(1)`, `emit("a", "b")`, `emit("a", 1, 2)`} {
		err := rt.RunSource(context.Background(), script, NewCollector().Globals())
		assert.Error(t, err, script)
	}
}

func TestRunSource_LogGoesToLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	rt := NewRuntime("", WithRuntimeLogger(logger))

	require.NoError(t, rt.RunSource(context.Background(), `log.Warn("careful")`, nil))
	assert.Contains(t, buf.String(), "careful")
}

// --- Script loading tests ---

func TestLoadScript_RelativeToScriptsDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(`result := 1 + 1`), 0o644))

	rt := NewRuntime(dir)
	src, err := rt.LoadScript("test.risor")
	require.NoError(t, err)
	require.NoError(t, rt.RunSource(context.Background(), src, nil))
}

func TestLoadScript_MissingFile(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(t.TempDir())
	_, err := rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
}

func TestLoadScript_AbsolutePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.risor")
	require.NoError(t, os.WriteFile(path, []byte(`x := 42`), 0o644))

	rt := NewRuntime("/elsewhere")
	got, err := rt.LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, `x := 42`, got)
}

func TestExtractionScriptPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("extract", "rust.risor"), ExtractionScriptPath("rust"))
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()

	mapFS := fstest.MapFS{
		"extract/rust.risor": &fstest.MapFile{Data: []byte(`x := 42`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("extract/rust.risor")
	require.NoError(t, err)
	assert.Equal(t, `x := 42`, got)

	// Absolute-style path should be resolved within the FS.
	got, err = rt.LoadScript("/extract/rust.risor")
	require.NoError(t, err)
	assert.Equal(t, `x := 42`, got)

	_, err = rt.LoadScript("missing.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestImport_FSImporter(t *testing.T) {
	// Risor's FSImporter resolves "traits" by trying name + ".risor".
	mapFS := fstest.MapFS{
		"traits.risor": &fstest.MapFile{Data: []byte(`
func is_manual(name) {
	return strings.has_suffix(name, "ExtManual")
}
`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	script := `
import traits
assert(traits.is_manual("WidgetExtManual"), "expected manual trait")
assert(!traits.is_manual("WidgetExt"), "expected plain trait")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestImport_LocalImporter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math_utils.risor"), []byte(`
func double(x) {
	return x * 2
}
`), 0o644))

	rt := NewRuntime(dir)

	script := `
import math_utils
result := math_utils.double(21)
assert(result == 42, 'expected 42, got {result}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestNewRuntime_Defaults(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("/some/dir")
	require.NotNil(t, rt)
	assert.Nil(t, rt.fsys)
	assert.NotNil(t, rt.logger)
	assert.Equal(t, "/some/dir", rt.scriptsDir)
}
