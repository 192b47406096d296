package gircheck

import (
	"github.com/jward/gircheck/internal/checks"
	"github.com/jward/gircheck/internal/reconcile"
	"github.com/jward/gircheck/internal/scan"
	"github.com/jward/gircheck/internal/store"
)

// Public aliases for internal types that appear in the Checker API.

type Candidate = scan.Candidate
type FileError = scan.FileError
type Extractor = scan.Extractor
type Violation = reconcile.Violation
type Finding = checks.Finding
type Store = store.Store
