package diag

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsFatal(t *testing.T) {
	if !IsFatal(Integrityf("territory %d missing", 3)) {
		t.Fatal("integrity error must be fatal")
	}
	if !IsFatal(fmt.Errorf("wrap: %w", Invariantf("age 0 not empty"))) {
		t.Fatal("wrapped invariant error must be fatal")
	}
	if IsFatal(errors.New("disk full")) {
		t.Fatal("plain errors are not classified as fatal input errors")
	}
}

func TestReportAdd(t *testing.T) {
	var seen []Issue
	r := &Report{Year: 2031, OnIssue: func(is Issue) { seen = append(seen, is) }}
	r.Add(KindUnattainable, "district 4", "no living area for %d people", 120)
	r.Add(KindConstraint, "district 5", "negative population")

	if len(r.Issues) != 2 || len(seen) != 2 {
		t.Fatalf("expected 2 issues, got %d recorded and %d observed", len(r.Issues), len(seen))
	}
	if r.Issues[0].Year != 2031 || r.Issues[0].Message != "no living area for 120 people" {
		t.Fatalf("unexpected issue: %+v", r.Issues[0])
	}
	if r.Count(KindUnattainable) != 1 || r.Count(KindRetryExhausted) != 0 {
		t.Fatal("count by kind mismatch")
	}
}

func TestNilReport(t *testing.T) {
	var r *Report
	r.Add(KindConstraint, "x", "still logged")
	if r.Count(KindConstraint) != 0 {
		t.Fatal("nil report must count zero")
	}
}
