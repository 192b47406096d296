// Package gircheck verifies that gtk-rs style crates register every
// manually written extension trait in their Gir.toml manifest.
//
// # Manual traits
//
// A trait named XExtManual declared with `pub trait` in <folder>/src is
// the hand-written companion of the generated trait for object X. When X
// is listed in the manifest (objects, generate or manual), the trait must
// appear in the manual_traits of the [[object]] entry for X. Anything else
// is reported as a violation.
//
// # Sibling checks
//
// Each folder is also checked for the license header at the top of every
// file in src and for TOML indentation that is a multiple of four.
//
// # Usage
//
//	c := gircheck.New(gircheck.WithParallel(4))
//	res, err := c.Run(ctx, []gircheck.Target{{Folder: "gtk4"}})
//	if err != nil { ... }
//	c.Finish(res)
//
// The gircheck command wraps Checker with command-line parsing, settings
// files and an optional SQLite history of past runs.
package gircheck
