package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jward/gircheck"
	"github.com/jward/gircheck/internal/checks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGir = `[options]
library = "foo"
generate = ["foo.Bar"]
`

// writeFolder creates a crate folder that passes every check unless src
// adds an unregistered manual trait.
func writeFolder(t *testing.T, girName, gir string, src map[string]string) string {
	t.Helper()
	folder := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(folder, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(folder, girName), []byte(gir), 0o644))
	for name, content := range src {
		content = checks.DefaultLicenseHeader + "\n\n" + content
		require.NoError(t, os.WriteFile(filepath.Join(folder, "src", name), []byte(content), 0o644))
	}
	return folder
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errw bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errw)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errw.String(), err
}

// =============================================================================
// Argument parsing
// =============================================================================

func TestParseTargets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    []gircheck.Target
		help    bool
		wantErr bool
	}{
		{
			name: "plain folders",
			args: []string{"gtk4", "gdk4"},
			want: []gircheck.Target{{Folder: "gtk4", GirFile: "Gir.toml"}, {Folder: "gdk4", GirFile: "Gir.toml"}},
		},
		{
			name: "sticky gir file",
			args: []string{"gtk4", "--gir-file", "Gir_Gdk.toml", "gdk4", "gdk4-x11"},
			want: []gircheck.Target{
				{Folder: "gtk4", GirFile: "Gir.toml"},
				{Folder: "gdk4", GirFile: "Gir_Gdk.toml"},
				{Folder: "gdk4-x11", GirFile: "Gir_Gdk.toml"},
			},
		},
		{
			name: "equals form and reset",
			args: []string{"--gir-file=A.toml", "a", "--gir-file", "Gir.toml", "b"},
			want: []gircheck.Target{{Folder: "a", GirFile: "A.toml"}, {Folder: "b", GirFile: "Gir.toml"}},
		},
		{name: "help anywhere", args: []string{"gtk4", "--bogus", "-h"}, help: true},
		{name: "long help", args: []string{"gtk4", "--help"}, help: true},
		{name: "help before bad gir file", args: []string{"--gir-file", "-h"}, help: true},
		{name: "missing value", args: []string{"gtk4", "--gir-file"}, wantErr: true},
		{name: "empty value", args: []string{"--gir-file=", "gtk4"}, wantErr: true},
		{name: "unknown flag", args: []string{"gtk4", "--parallel", "2"}, wantErr: true},
		{name: "no folders", args: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseTargets(tt.args, "Gir.toml")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.help, got.help)
			assert.Equal(t, tt.want, got.targets)
		})
	}
}

// =============================================================================
// Check command
// =============================================================================

func TestRoot_Success(t *testing.T) {
	t.Parallel()
	folder := writeFolder(t, "Gir.toml", testGir, map[string]string{"lib.rs": "pub mod bar;\n"})

	out, _, err := execute(t, "--color", "never", folder)
	require.NoError(t, err)
	assert.Contains(t, out, "=> Running for "+folder+"\n")
	assert.Contains(t, out, "<= done\nsuccess!\n")
}

func TestRoot_ViolationFails(t *testing.T) {
	t.Parallel()
	folder := writeFolder(t, "Gir.toml", testGir, map[string]string{"bar.rs": "pub trait BarExtManual {}\n"})

	out, errw, err := execute(t, "--color", "never", folder)
	require.ErrorIs(t, err, errChecksFailed)
	assert.Contains(t, out, "xx> Some manual traits are missing from the Gir.toml file:\nBarExtManual\n")
	assert.NotContains(t, out, "success!")
	assert.Contains(t, errw, "failed\n")
}

func TestRoot_StickyGirFile(t *testing.T) {
	t.Parallel()
	plain := writeFolder(t, "Gir.toml", testGir, map[string]string{"lib.rs": ""})
	custom := writeFolder(t, "Gir_Foo.toml", testGir, map[string]string{"lib.rs": ""})

	_, _, err := execute(t, plain, "--gir-file", "Gir_Foo.toml", custom)
	require.NoError(t, err)

	_, _, err = execute(t, "--gir-file=Gir_Foo.toml", custom, plain)
	require.ErrorIs(t, err, errChecksFailed, "plain has no Gir_Foo.toml")
}

func TestRoot_HelpSkipsChecks(t *testing.T) {
	t.Parallel()
	folder := writeFolder(t, "Gir.toml", testGir, map[string]string{"bar.rs": "pub trait BarExtManual {}\n"})

	for _, args := range [][]string{{"-h"}, {folder, "--help"}} {
		out, _, err := execute(t, args...)
		require.NoError(t, err)
		assert.Contains(t, out, "Usage:")
		assert.NotContains(t, out, "Running for")
	}
}

func TestRoot_HelpIgnoresBrokenSettings(t *testing.T) {
	t.Parallel()
	settings := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(settings, []byte("parallel = 0\n"), 0o644))

	out, _, err := execute(t, "--config", settings, "somefolder", "-h")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")

	_, _, err = execute(t, "--config", settings, "somefolder")
	require.Error(t, err, "the same settings fail a real run")
}

func TestRoot_AbsoluteGirFile(t *testing.T) {
	t.Parallel()
	folder := writeFolder(t, "Gir.toml", "", map[string]string{"bar.rs": "pub trait BarExtManual {}\n"})
	shared := filepath.Join(t.TempDir(), "Other.toml")
	require.NoError(t, os.WriteFile(shared, []byte(testGir), 0o644))

	out, _, err := execute(t, "--no-indent", "--gir-file", shared, folder)
	require.ErrorIs(t, err, errChecksFailed)
	assert.Contains(t, out, "BarExtManual\n")
	assert.NotContains(t, out, "no such file")
}

func TestRoot_NoFolders(t *testing.T) {
	t.Parallel()
	_, _, err := execute(t)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errChecksFailed)
}

func TestRoot_DisableChecks(t *testing.T) {
	t.Parallel()
	folder := writeFolder(t, "Gir.toml", testGir+"  bad = 1\n", map[string]string{"bar.rs": "pub trait BarExtManual {}\n"})

	out, _, err := execute(t, "--no-manual-traits", "--no-indent", folder)
	require.NoError(t, err)
	assert.NotContains(t, out, "manual traits")
	assert.Contains(t, out, "Checking license headers")
}

func TestRoot_InvalidSettings(t *testing.T) {
	t.Parallel()
	_, _, err := execute(t, "--extractor", "regex", "gtk4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regex")
}

func TestRoot_TreeSitterAndParallel(t *testing.T) {
	t.Parallel()
	a := writeFolder(t, "Gir.toml", testGir, map[string]string{"bar.rs": "// pub trait BarExtManual {}\n"})
	b := writeFolder(t, "Gir.toml", testGir, map[string]string{"lib.rs": ""})

	out, _, err := execute(t, "--extractor", "treesitter", "--parallel", "2", a, b)
	require.NoError(t, err, out)
	assert.Less(t, bytes.Index([]byte(out), []byte(a)), bytes.Index([]byte(out), []byte(b)))
}

// =============================================================================
// History
// =============================================================================

func TestHistory_RecordsAndLists(t *testing.T) {
	t.Parallel()
	db := filepath.Join(t.TempDir(), "history.db")
	good := writeFolder(t, "Gir.toml", testGir, map[string]string{"lib.rs": ""})
	bad := writeFolder(t, "Gir.toml", testGir, map[string]string{"bar.rs": "pub trait BarExtManual {}\n"})

	_, _, err := execute(t, "--db", db, good)
	require.NoError(t, err)
	_, _, err = execute(t, "--db", db, good, bad)
	require.ErrorIs(t, err, errChecksFailed)

	out, _, err := execute(t, "history", "--db", db, "--format", "json")
	require.NoError(t, err)

	var res struct {
		Command string   `json:"command"`
		Results []CLIRun `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "history", res.Command)
	require.Len(t, res.Results, 2)

	latest := res.Results[0]
	assert.False(t, latest.Passed)
	assert.NotNil(t, latest.FinishedAt)
	assert.Equal(t, []string{good, bad}, latest.Args)
	require.Len(t, latest.Folders, 2)
	assert.True(t, latest.Folders[0].Passed)
	require.Len(t, latest.Folders[1].Violations, 1)
	assert.Equal(t, "BarExtManual", latest.Folders[1].Violations[0].Trait)
	assert.Equal(t, 3, latest.Folders[1].Violations[0].Line)
	assert.True(t, res.Results[1].Passed)

	out, _, err = execute(t, "history", "--db", db, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "fail")
	assert.Contains(t, out, "BarExtManual")

	out, _, err = execute(t, "history", "--db", db, "--by-trait")
	require.NoError(t, err)
	assert.Contains(t, out, "BarExtManual")

	_, _, err = execute(t, "history", "--db", db, "--keep", "1")
	require.NoError(t, err)
	out, _, err = execute(t, "history", "--db", db, "--limit", "0", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Results, 1)
}

func TestHistory_Empty(t *testing.T) {
	t.Parallel()
	out, _, err := execute(t, "history", "--db", filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", out)
}

func TestHistory_BadFormat(t *testing.T) {
	t.Parallel()
	_, _, err := execute(t, "history", "--db", filepath.Join(t.TempDir(), "h.db"), "--format", "yaml")
	require.Error(t, err)
}
