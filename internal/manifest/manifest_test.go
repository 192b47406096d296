package manifest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gtkManifest = `
[options]
girs_directories = ["../gir-files"]
library = "Gtk"
version = "4.0"
min_cfg_version = "4.0"
target_path = "."
work_mode = "normal"
single_version_file = true

generate = [
    "Gtk.Align",
    "Gtk.Orientation",
]

builders = ["Gtk.AboutDialogBuilder"]

manual = [
    "Gdk.Rectangle",
    "Gtk.TreeIter",
]

[[object]]
name = "Gtk.Widget"
status = "generate"
manual_traits = ["WidgetExtManual"]

[[object]]
name = "Gtk.Window"
status = "generate"
`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse("Gir.toml", []byte(src))
	require.NoError(t, err)
	return doc
}

func TestParse_RootIsTable(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, gtkManifest)

	assert.Equal(t, KindTable, doc.Kind)
	assert.Equal(t, "Gir.toml", doc.Path)
	_, ok := doc.Field("options")
	assert.True(t, ok)
	_, ok = doc.Field("object")
	assert.True(t, ok)
}

func TestLookupString(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, gtkManifest)

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"options.library", "Gtk", true},
		{"options.work_mode", "normal", true},
		{"options.single_version_file", "", false}, // bool, not a string
		{"options.generate", "", false},            // array, not a string
		{"options.missing", "", false},
		{"options.library.deeper", "", false}, // descends into a string
		{"nope", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, ok := doc.LookupString(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupArray(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, gtkManifest)

	gen, ok := doc.LookupArray("options.generate")
	require.True(t, ok)
	require.Len(t, gen, 2)
	s, ok := gen[1].Str()
	require.True(t, ok)
	assert.Equal(t, "Gtk.Orientation", s)

	_, ok = doc.LookupArray("options.library")
	assert.False(t, ok)

	_, ok = doc.LookupArray("options.absent")
	assert.False(t, ok)
}

func TestItemsAt_MissingIsEmpty(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, `[options]
library = "Foo"
`)

	items := doc.ItemsAt("object")
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Empty(t, doc.Strings("options.generate"))
	assert.Empty(t, doc.Strings("options.library"))
}

func TestStrings_SkipsNonStrings(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, `[options]
generate = ["Foo.A", 3, "Foo.B", true]
`)

	assert.Equal(t, []string{"Foo.A", "Foo.B"}, doc.Strings("options.generate"))
}

func TestArrayOfTables(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, gtkManifest)

	objs := doc.ItemsAt("object")
	require.Len(t, objs, 2)

	assert.Equal(t, KindTable, objs[0].Kind)
	name, ok := objs[0].LookupString("name")
	require.True(t, ok)
	assert.Equal(t, "Gtk.Widget", name)
	assert.Equal(t, []string{"WidgetExtManual"}, objs[0].Strings("manual_traits"))

	assert.Empty(t, objs[1].Strings("manual_traits"))
}

func TestInlineArrayOfTables(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, `object = [{ name = "foo.Bar", manual_traits = ["BarExtManual"] }]`)

	objs := doc.ItemsAt("object")
	require.Len(t, objs, 1)
	name, ok := objs[0].LookupString("name")
	require.True(t, ok)
	assert.Equal(t, "foo.Bar", name)
}

func TestScalarValues(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, gtkManifest)

	v, ok := doc.Lookup("options.single_version_file")
	require.True(t, ok)
	assert.Equal(t, KindOther, v.Kind)
	assert.Nil(t, v.Items())
	_, isString := v.Str()
	assert.False(t, isString)
}

func TestParse_MalformedIsParseError(t *testing.T) {
	t.Parallel()
	_, err := Parse("broken.toml", []byte("[options]\nlibrary = \"Gtk\"\ngenerate = [\n"))
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "broken.toml", perr.Path)
	assert.Contains(t, err.Error(), "broken.toml")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	var perr *ParseError
	assert.False(t, errors.As(err, &perr), "a read failure is not a parse error")
}

func TestLoad_FromDisk(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(gtkManifest), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)
	lib, ok := doc.LookupString("options.library")
	require.True(t, ok)
	assert.Equal(t, "Gtk", lib)
}

func TestKindString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "table", KindTable.String())
	assert.Equal(t, "array", KindArray.String())
	assert.Equal(t, "string", KindString.String())
	assert.Equal(t, "other", KindOther.String())
}
