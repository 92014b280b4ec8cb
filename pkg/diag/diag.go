// Package diag collects the recoverable diagnostics the extraction pipeline
// produces: semantic warnings from the metadata pass and dropped references
// from the compiler façade. Diagnostics never abort the pipeline; fatal
// invariant breaches and input errors are plain Go errors instead.
package diag

import "fmt"

// Severity classifies a Diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Code identifies the kind of condition a Diagnostic reports.
type Code string

const (
	CodeMissingReleaseTag      Code = "missing-release-tag"
	CodeIncompatibleReleaseTag Code = "incompatible-release-tags"
	CodeTypeLeak               Code = "type-leak"
	CodeInvalidOverride        Code = "invalid-override"
	CodeForgottenExport        Code = "forgotten-export"
	CodeUnresolvedReference    Code = "unresolved-reference"
)

// Diagnostic is a single recoverable condition, keyed to the declaration
// that produced it.
type Diagnostic struct {
	Code            Code
	Severity        Severity
	Message         string
	File            string
	Line            int
	Column          int
	DeclarationName string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: [%s] %s (%s)", d.File, d.Line, d.Column, d.Severity, d.Code, d.Message, d.DeclarationName)
}

// Bag accumulates diagnostics in the order they are reported. It is not
// safe for concurrent writes — the pipeline that owns it is single
// threaded per §5.
type Bag struct {
	items []Diagnostic
}

// Add appends a diagnostic.
func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

// Warnf appends a warning-severity diagnostic.
func (b *Bag) Warnf(code Code, declName, file string, line, col int, format string, args ...any) {
	b.Add(Diagnostic{
		Code:            code,
		Severity:        SeverityWarning,
		Message:         fmt.Sprintf(format, args...),
		File:            file,
		Line:            line,
		Column:          col,
		DeclarationName: declName,
	})
}

// All returns every collected diagnostic, in report order.
func (b *Bag) All() []Diagnostic {
	return b.items
}

// HasErrors reports whether any diagnostic has error severity.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Escalate promotes every warning of the given codes to error severity.
// Used by the CLI's local-build flag: outside of local builds, a missing
// release tag on a top-level export becomes a build-breaking error.
func (b *Bag) Escalate(codes ...Code) {
	set := make(map[Code]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	for i := range b.items {
		if set[b.items[i].Code] {
			b.items[i].Severity = SeverityError
		}
	}
}
