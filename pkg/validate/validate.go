// Package validate defines the severity, violation, and result vocabulary
// shared by the survey and picklist checks. Concrete rules live beside the
// models they inspect and report through these types; blocking violations
// abort the operation, warnings reach the caller's diagnostic sink.
package validate

import (
	"fmt"
	"strings"
)

// Severity captures check outcomes.
type Severity string

// Check severities determine whether an operation proceeds.
const (
	// SeverityBlock rejects the document or operation.
	SeverityBlock Severity = "block"
	// SeverityWarn reports a finding but allows the operation.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed check.
type Violation struct {
	Rule      string
	Severity  Severity
	Message   string
	Subject   string
	SubjectID string
}

// Result aggregates violations from a set of checks.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking violations.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity != SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	var blocking []string
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			blocking = append(blocking, fmt.Sprintf("%s: %s", v.Rule, v.Message))
		}
	}
	if len(blocking) == 0 {
		return "blocked by checks"
	}
	return "blocked by checks: " + strings.Join(blocking, "; ")
}
