package gircheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jward/gircheck/internal/checks"
	"github.com/jward/gircheck/internal/manifest"
	"github.com/jward/gircheck/internal/reconcile"
	"github.com/jward/gircheck/internal/registry"
	"github.com/jward/gircheck/internal/report"
	"github.com/jward/gircheck/internal/scan"
	"github.com/jward/gircheck/internal/store"
)

// SourceDir is the directory of a target folder holding the crate sources.
const SourceDir = "src"

// Checker runs the manual traits check and its sibling checks over
// target folders.
type Checker struct {
	extractor       scan.Extractor
	continueOnError bool
	parallel        int
	licenseHeader   string
	indentPattern   string
	checks          CheckSet

	logger   *log.Logger
	reporter *report.Reporter

	history *store.Store
	args    []string
}

// CheckSet enables individual checks.
type CheckSet struct {
	ManualTraits bool
	License      bool
	Indent       bool
}

// AllChecks enables every check.
func AllChecks() CheckSet {
	return CheckSet{ManualTraits: true, License: true, Indent: true}
}

// Option configures a Checker.
type Option func(*Checker)

// WithExtractor replaces the default Heuristic extractor.
func WithExtractor(e scan.Extractor) Option {
	return func(c *Checker) {
		c.extractor = e
	}
}

// WithContinueOnError keeps scanning a folder past unreadable source
// files. Skipped files are reported and still fail the folder.
func WithContinueOnError(on bool) Option {
	return func(c *Checker) {
		c.continueOnError = on
	}
}

// WithParallel checks up to n folders at once. Output is still written
// in target order. n <= 1 means sequential.
func WithParallel(n int) Option {
	return func(c *Checker) {
		c.parallel = n
	}
}

// WithLicenseHeader sets the line every source file must start with.
func WithLicenseHeader(header string) Option {
	return func(c *Checker) {
		c.licenseHeader = header
	}
}

// WithIndentPattern sets the doublestar pattern of files whose indentation
// is checked, relative to the folder.
func WithIndentPattern(pattern string) Option {
	return func(c *Checker) {
		c.indentPattern = pattern
	}
}

// WithChecks selects the checks to run.
func WithChecks(set CheckSet) Option {
	return func(c *Checker) {
		c.checks = set
	}
}

// WithLogger sets the logger for debug and error records. The default
// discards everything.
func WithLogger(logger *log.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// WithReporter sets where progress and the final verdict are printed.
func WithReporter(r *report.Reporter) Option {
	return func(c *Checker) {
		c.reporter = r
	}
}

// WithHistory records every Run in s. args is stored with the run.
func WithHistory(s *store.Store, args []string) Option {
	return func(c *Checker) {
		c.history = s
		c.args = args
	}
}

// New returns a Checker. Without options it runs all checks sequentially
// with the heuristic extractor and prints to stdout and stderr.
func New(opts ...Option) *Checker {
	c := &Checker{
		extractor:     scan.Heuristic{},
		parallel:      1,
		licenseHeader: checks.DefaultLicenseHeader,
		indentPattern: checks.DefaultIndentPattern,
		checks:        AllChecks(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	if c.reporter == nil {
		c.reporter = report.New(os.Stdout, os.Stderr, report.ColorAuto)
	}
	return c
}

// Target is one folder to check and the manifest file name to use for it.
type Target struct {
	Folder  string
	GirFile string
}

// GirPath is the manifest path of t. An absolute GirFile is used as is.
func (t Target) GirPath() string {
	gir := t.GirFile
	if gir == "" {
		gir = manifest.DefaultFileName
	}
	if filepath.IsAbs(gir) {
		return gir
	}
	return filepath.Join(t.Folder, gir)
}

// FolderResult is the outcome of every enabled check on one folder.
type FolderResult struct {
	Target

	Candidates []scan.Candidate
	Violations []reconcile.Violation
	Findings   []checks.Finding
	Skipped    []*scan.FileError

	// Err is the error that stopped the folder, if any.
	Err error

	Passed bool
}

// CheckResult aggregates a Run.
type CheckResult struct {
	Folders []*FolderResult
	Passed  bool
	RunID   int64 // set when history is recorded
}

// CheckFolder runs the enabled checks on t and prints progress.
func (c *Checker) CheckFolder(ctx context.Context, t Target) *FolderResult {
	return c.checkFolder(ctx, t, c.reporter)
}

func (c *Checker) checkFolder(ctx context.Context, t Target, rep *report.Reporter) *FolderResult {
	res := &FolderResult{Target: t}
	if res.GirFile == "" {
		res.GirFile = manifest.DefaultFileName
	}
	logger := c.logger.With("folder", t.Folder)

	rep.FolderStart(t.Folder)
	defer rep.FolderDone()

	res.Err = c.runChecks(ctx, res, rep, logger)
	if res.Err != nil {
		rep.Failure("%v", res.Err)
		if IsConfigError(res.Err) {
			logger.Error("invalid gir file", "path", t.GirPath(), "err", res.Err)
		} else {
			logger.Error("folder check failed", "err", res.Err)
		}
	}
	res.Passed = res.Err == nil && len(res.Violations) == 0 && len(res.Findings) == 0 && len(res.Skipped) == 0
	logger.Debug("folder checked", "passed", res.Passed, "violations", len(res.Violations), "findings", len(res.Findings))
	return res
}

// runChecks returns the first error that prevents checking the folder.
// Later checks are skipped once one fails that way.
func (c *Checker) runChecks(ctx context.Context, res *FolderResult, rep *report.Reporter, logger *log.Logger) error {
	srcDir := filepath.Join(res.Folder, SourceDir)

	if c.checks.ManualTraits {
		if err := c.manualTraits(ctx, res, srcDir, rep, logger); err != nil {
			return err
		}
	}

	if c.checks.License {
		rep.SectionStart("Checking license headers from %q", srcDir)
		findings, err := checks.License(srcDir, c.licenseHeader)
		if err != nil {
			return err
		}
		c.reportFindings(res, findings, rep)
		rep.SectionDone()
	}

	if c.checks.Indent {
		rep.SectionStart("Checking gir files indent in `%s`", res.Folder)
		findings, err := checks.Indent(res.Folder, c.indentPattern)
		if err != nil {
			return err
		}
		c.reportFindings(res, findings, rep)
		rep.SectionDone()
	}
	return nil
}

func (c *Checker) manualTraits(ctx context.Context, res *FolderResult, srcDir string, rep *report.Reporter, logger *log.Logger) error {
	girPath := res.GirPath()
	rep.SectionStart("Getting objects from %q", girPath)
	doc, err := manifest.Load(girPath)
	if err != nil {
		return err
	}
	reg, err := registry.Build(doc)
	if err != nil {
		return err
	}
	logger.Debug("registry built", "library", reg.Library, "objects", reg.Objects(), "traits", reg.Traits())
	rep.SectionDone()

	rep.SectionStart("Getting manual traits from %q", srcDir)
	scanner := &scan.Scanner{
		Extractor:       c.extractor,
		ContinueOnError: c.continueOnError,
		Logger:          logger,
	}
	scanned, err := scanner.Scan(ctx, srcDir)
	if err != nil {
		return err
	}
	for _, skipped := range scanned.Skipped {
		rep.Failure("Skipped `%s`: %v", skipped.Path, skipped.Err)
	}
	res.Skipped = scanned.Skipped
	res.Candidates = scanned.Candidates
	rep.SectionDone()

	res.Violations = reconcile.Reconcile(reg, scanned.Candidates)
	traits := make([]string, 0, len(res.Violations))
	for _, v := range res.Violations {
		traits = append(traits, v.Trait)
	}
	rep.Violations(res.GirFile, traits)
	return nil
}

func (c *Checker) reportFindings(res *FolderResult, findings []checks.Finding, rep *report.Reporter) {
	for _, f := range findings {
		rep.Failure("%s", f)
	}
	res.Findings = append(res.Findings, findings...)
}

// Run checks every target and ANDs the folder verdicts. It does not print
// the final line; see Finish. The returned error is only set for problems
// outside any folder, such as a canceled context.
func (c *Checker) Run(ctx context.Context, targets []Target) (*CheckResult, error) {
	if len(targets) == 0 {
		return nil, errors.New("gircheck: no folders to check")
	}
	runID := c.beginRun()

	var folders []*FolderResult
	if c.parallel > 1 && len(targets) > 1 {
		folders = c.runParallel(ctx, targets)
	} else {
		for _, t := range targets {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			folders = append(folders, c.CheckFolder(ctx, t))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &CheckResult{Folders: folders, Passed: true, RunID: runID}
	for _, f := range folders {
		res.Passed = res.Passed && f.Passed
	}
	c.finishRun(runID, res)
	return res, nil
}

// Finish prints the final verdict line.
func (c *Checker) Finish(res *CheckResult) {
	c.reporter.Final(res != nil && res.Passed)
}

func (c *Checker) beginRun() int64 {
	if c.history == nil {
		return 0
	}
	id, err := c.history.BeginRun(time.Now(), c.args)
	if err != nil {
		c.logger.Error("cannot record run", "err", err)
		return 0
	}
	return id
}

func (c *Checker) finishRun(runID int64, res *CheckResult) {
	if c.history == nil || runID == 0 {
		return
	}
	for _, f := range res.Folders {
		fr, vs := toHistory(runID, f)
		if err := c.history.RecordFolder(fr, vs); err != nil {
			c.logger.Error("cannot record folder", "folder", f.Folder, "err", err)
		}
	}
	if err := c.history.FinishRun(runID, time.Now(), res.Passed); err != nil {
		c.logger.Error("cannot record run", "err", err)
	}
}

func toHistory(runID int64, f *FolderResult) (*store.FolderResult, []*store.Violation) {
	fr := &store.FolderResult{
		RunID:      runID,
		Folder:     f.Folder,
		GirFile:    f.GirFile,
		Passed:     f.Passed,
		Candidates: len(f.Candidates),
	}
	if f.Err != nil {
		fr.Error = f.Err.Error()
	}
	for _, finding := range f.Findings {
		fr.Findings = append(fr.Findings, finding.String())
	}
	for _, s := range f.Skipped {
		fr.Findings = append(fr.Findings, fmt.Sprintf("Skipped `%s`: %v", s.Path, s.Err))
	}
	vs := make([]*store.Violation, 0, len(f.Violations))
	for _, v := range f.Violations {
		vs = append(vs, &store.Violation{Trait: v.Trait, Object: v.Object, File: v.File, Line: v.Line})
	}
	return fr, vs
}

// IsConfigError reports whether err comes from a malformed gir file, as
// opposed to an I/O failure.
func IsConfigError(err error) bool {
	var perr *manifest.ParseError
	var qerr *registry.QualifiedNameError
	return errors.As(err, &perr) || errors.As(err, &qerr) || errors.Is(err, registry.ErrMissingLibrary)
}
