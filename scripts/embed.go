// Package scripts holds the Risor extraction scripts shipped with gircheck.
package scripts

import "embed"

// FS contains extract/*.risor. Paths are relative to this directory, so
// the Rust script lives at "extract/rust.risor".
//
//go:embed extract/*.risor
var FS embed.FS
