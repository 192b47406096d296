// Package report prints check progress with the marker convention used by
// gircheck:
//
//	=> Running for <folder>     folder start
//	<= done                     folder end
//	==> <section>               section start
//	<== done                    section end
//	xx> <message>               failure
//
// Markers are plain text so that output can be grepped; colour, when
// enabled, never changes the characters printed.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Color selects when output is styled.
type Color string

const (
	ColorAuto   Color = "auto"
	ColorAlways Color = "always"
	ColorNever  Color = "never"
)

// ParseColor validates a --color value.
func ParseColor(s string) (Color, error) {
	switch c := Color(strings.ToLower(s)); c {
	case ColorAuto, ColorAlways, ColorNever:
		return c, nil
	case "":
		return ColorAuto, nil
	default:
		return "", fmt.Errorf("report: invalid color mode %q (want auto, always or never)", s)
	}
}

// Palette shared with the rest of the CLI.
const (
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorPrimary = lipgloss.Color("#7C3AED")
)

type styles struct {
	folder  lipgloss.Style
	section lipgloss.Style
	failure lipgloss.Style
	success lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		folder:  r.NewStyle().Bold(true).Foreground(colorPrimary),
		section: r.NewStyle().Foreground(colorMuted),
		failure: r.NewStyle().Bold(true).Foreground(colorError),
		success: r.NewStyle().Foreground(colorSuccess),
	}
}

// Reporter writes progress to Out and the final failure line to Err.
type Reporter struct {
	out io.Writer
	err io.Writer
	st  styles

	// failed is rendered for the error stream's own terminal.
	failed lipgloss.Style
}

// New returns a Reporter. With ColorAuto, styling follows whether out is a
// terminal.
func New(out, errw io.Writer, color Color) *Reporter {
	outR := lipgloss.NewRenderer(out)
	errR := lipgloss.NewRenderer(errw)
	switch color {
	case ColorNever:
		outR.SetColorProfile(termenv.Ascii)
		errR.SetColorProfile(termenv.Ascii)
	case ColorAlways:
		outR.SetColorProfile(termenv.TrueColor)
		errR.SetColorProfile(termenv.TrueColor)
	}
	return &Reporter{
		out:    out,
		err:    errw,
		st:     newStyles(outR),
		failed: newStyles(errR).failure,
	}
}

// Out is the progress stream.
func (r *Reporter) Out() io.Writer { return r.out }

// Err is the error stream.
func (r *Reporter) Err() io.Writer { return r.err }

func (r *Reporter) line(style lipgloss.Style, s string) {
	fmt.Fprintln(r.out, style.Render(s))
}

// FolderStart prints "=> Running for <folder>".
func (r *Reporter) FolderStart(folder string) {
	r.line(r.st.folder, "=> Running for "+folder)
}

// FolderDone prints "<= done".
func (r *Reporter) FolderDone() {
	r.line(r.st.folder, "<= done")
}

// SectionStart prints "==> <title>".
func (r *Reporter) SectionStart(format string, args ...any) {
	r.line(r.st.section, "==> "+fmt.Sprintf(format, args...))
}

// SectionDone prints "<== done".
func (r *Reporter) SectionDone() {
	r.line(r.st.section, "<== done")
}

// Failure prints an "xx> " line.
func (r *Reporter) Failure(format string, args ...any) {
	r.line(r.st.failure, "xx> "+fmt.Sprintf(format, args...))
}

// Violations lists the traits missing from the gir file and reports
// whether there were none.
func (r *Reporter) Violations(girFile string, traits []string) bool {
	if len(traits) == 0 {
		return true
	}
	r.Failure("Some manual traits are missing from the %s file:", girFile)
	for _, t := range traits {
		fmt.Fprintln(r.out, t)
	}
	return false
}

// Final prints "success!" on Out or "failed" on Err.
func (r *Reporter) Final(ok bool) {
	if ok {
		fmt.Fprintln(r.out, r.st.success.Render("success!"))
		return
	}
	fmt.Fprintln(r.err, r.failed.Render("failed"))
}

// Fork returns a Reporter with the same styles writing progress to out.
// The error stream is shared.
func (r *Reporter) Fork(out io.Writer) *Reporter {
	f := *r
	f.out = out
	return &f
}
