// Package registry builds, from a gir manifest, the set of objects that
// belong to the current library and the set of manual traits registered
// for them.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jward/gircheck/internal/manifest"
)

// ErrMissingLibrary is returned when the manifest has no options.library.
var ErrMissingLibrary = errors.New("registry: options.library is not set")

// QualifiedNameError reports a "<library>.<name>" entry without a dot.
type QualifiedNameError struct {
	Source string // manifest key the entry came from
	Value  string
}

func (e *QualifiedNameError) Error() string {
	return fmt.Sprintf("registry: %s entry %q is not of the form <library>.<name>", e.Source, e.Value)
}

// Registry is the reference side of the manual traits check.
type Registry struct {
	// Library is the current library (options.library).
	Library string

	// ListedObjects holds local object names of the current library.
	ListedObjects map[string]struct{}

	// DeclaredTraits holds every manual trait registered through an
	// object's manual_traits list.
	DeclaredTraits map[string]struct{}
}

// New returns an empty Registry for library.
func New(library string) *Registry {
	return &Registry{
		Library:        library,
		ListedObjects:  make(map[string]struct{}),
		DeclaredTraits: make(map[string]struct{}),
	}
}

// IsListed reports whether object is part of the current library.
func (r *Registry) IsListed(object string) bool {
	_, ok := r.ListedObjects[object]
	return ok
}

// IsDeclared reports whether trait is registered as a manual trait.
func (r *Registry) IsDeclared(trait string) bool {
	_, ok := r.DeclaredTraits[trait]
	return ok
}

// Objects returns the listed objects sorted.
func (r *Registry) Objects() []string { return sortedKeys(r.ListedObjects) }

// Traits returns the declared traits sorted.
func (r *Registry) Traits() []string { return sortedKeys(r.DeclaredTraits) }

// Build walks doc and fills a Registry. Every list is processed to
// completion before the object array; the object array needs the current
// library resolved first.
func Build(doc *manifest.Document) (*Registry, error) {
	library, ok := doc.LookupString("options.library")
	if !ok {
		return nil, ErrMissingLibrary
	}
	reg := New(library)

	for _, key := range []string{"options.generate", "options.builders"} {
		for _, entry := range doc.Strings(key) {
			name, err := LocalName(entry)
			if err != nil {
				return nil, &QualifiedNameError{Source: key, Value: entry}
			}
			reg.ListedObjects[name] = struct{}{}
		}
	}

	for _, entry := range doc.Strings("options.manual") {
		lib, name, err := SplitQualified(entry)
		if err != nil {
			return nil, &QualifiedNameError{Source: "options.manual", Value: entry}
		}
		if lib != library {
			continue
		}
		reg.ListedObjects[name] = struct{}{}
	}

	for _, obj := range doc.ItemsAt("object") {
		full, ok := obj.LookupString("name")
		if !ok {
			continue
		}
		lib, name, err := SplitQualified(full)
		if err != nil {
			return nil, &QualifiedNameError{Source: "object.name", Value: full}
		}
		if lib != library {
			continue
		}
		reg.ListedObjects[name] = struct{}{}
		for _, trait := range obj.Strings("manual_traits") {
			reg.DeclaredTraits[trait] = struct{}{}
		}
	}

	return reg, nil
}

// SplitQualified splits "<library>.<name>" on the first dot. The name keeps
// any further dots.
func SplitQualified(s string) (lib, name string, err error) {
	lib, name, found := strings.Cut(s, ".")
	if !found {
		return "", "", &QualifiedNameError{Value: s}
	}
	return lib, name, nil
}

// LocalName returns the second dot-separated segment of a qualified name,
// so "Gtk.Widget" and "Gtk.Widget.extra" both give "Widget".
func LocalName(s string) (string, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) < 2 {
		return "", &QualifiedNameError{Value: s}
	}
	return parts[1], nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
