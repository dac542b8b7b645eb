// Package diag separates fatal errors from recoverable issues. Fatal errors are
// returned as Go errors wrapping ErrIntegrity or ErrInvariant; recoverable
// issues are recorded on a Report, logged, and the run continues.
package diag

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrIntegrity marks malformed input: the run must stop with no output.
	ErrIntegrity = errors.New("input integrity")
	// ErrInvariant marks a broken internal invariant.
	ErrInvariant = errors.New("invariant violated")
)

// Integrityf builds an ErrIntegrity error.
func Integrityf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIntegrity, fmt.Sprintf(format, args...))
}

// Invariantf builds an ErrInvariant error.
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrIntegrity) || errors.Is(err, ErrInvariant)
}

// Kind classifies a recoverable issue.
type Kind string

const (
	KindConstraint     Kind = "constraint_violation" // best-effort result kept
	KindUnattainable   Kind = "unattainable_target"  // treated as distributing zero
	KindRetryExhausted Kind = "retry_exhausted"      // mismatch accepted
)

// Issue is one recoverable condition met during a run.
type Issue struct {
	Kind    Kind   `json:"kind"`
	Year    int    `json:"year,omitempty"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Report collects issues for one run. A nil *Report still logs.
type Report struct {
	Year    int
	Issues  []Issue
	OnIssue func(Issue)
}

// Add records and logs an issue.
func (r *Report) Add(kind Kind, subject, format string, args ...any) {
	issue := Issue{Kind: kind, Subject: subject, Message: fmt.Sprintf(format, args...)}
	if r != nil {
		issue.Year = r.Year
		r.Issues = append(r.Issues, issue)
		if r.OnIssue != nil {
			r.OnIssue(issue)
		}
	}
	slog.Warn(issue.Message, "kind", string(kind), "subject", subject, "year", issue.Year)
}

// Count returns the number of recorded issues of a kind.
func (r *Report) Count(kind Kind) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, is := range r.Issues {
		if is.Kind == kind {
			n++
		}
	}
	return n
}
