// Package reconcile matches scanned manual traits against a registry.
package reconcile

import (
	"strings"

	"github.com/jward/gircheck/internal/registry"
	"github.com/jward/gircheck/internal/scan"
)

// Violation is a manual trait declared in source for a listed object but
// missing from that object's manual_traits.
type Violation struct {
	Trait  string
	Object string
	File   string
	Line   int
}

// OwningObject strips the ExtManual suffix: "WidgetExtManual" -> "Widget".
// Names without the suffix are returned unchanged.
func OwningObject(trait string) string {
	return strings.TrimSuffix(trait, scan.ManualSuffix)
}

// Reconcile returns the violations among candidates, in candidate order.
// Candidates whose owning object is not listed are ignored. Duplicates are
// reported as many times as they appear.
func Reconcile(reg *registry.Registry, candidates []scan.Candidate) []Violation {
	var out []Violation
	for _, c := range candidates {
		obj := OwningObject(c.Name)
		if !reg.IsListed(obj) || reg.IsDeclared(c.Name) {
			continue
		}
		out = append(out, Violation{Trait: c.Name, Object: obj, File: c.File, Line: c.Line})
	}
	return out
}
