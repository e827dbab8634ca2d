package survey

import (
	"fmt"

	"echocore/pkg/diag"
	"echocore/pkg/validate"
)

// ExpectedDataFormatVersion is the platesurvey revision this package is
// exercised against. Other versions still parse; the format has stayed
// attribute-compatible across firmware releases.
const ExpectedDataFormatVersion = 1

// Rule is one cross-field check over a parsed survey.
type Rule interface {
	Name() string
	Evaluate(s *EchoPlateSurvey) validate.Result
}

// DefaultRules returns the checks every parse and serialize runs.
func DefaultRules() []Rule {
	return []Rule{wellCountRule{}, formatVersionRule{}}
}

// Check evaluates the default rules and merges their findings.
func Check(s *EchoPlateSurvey) validate.Result {
	var result validate.Result
	for _, rule := range DefaultRules() {
		result.Merge(rule.Evaluate(s))
	}
	return result
}

// runChecks logs advisory findings and converts blocking ones into an
// error.
func (s *EchoPlateSurvey) runChecks(logger diag.Logger) error {
	result := Check(s)
	for _, v := range result.Warnings() {
		logger.Warn(v.Message, "rule", v.Rule, "plate_type", v.SubjectID)
	}
	if result.HasBlocking() {
		return validate.RuleViolationError{Result: result}
	}
	return nil
}

// wellCountRule enforces the declared-total invariant. A survey whose
// well list disagrees with totalWells is treated as corrupt, not
// partially usable.
type wellCountRule struct{}

func (wellCountRule) Name() string { return "well_count" }

func (r wellCountRule) Evaluate(s *EchoPlateSurvey) validate.Result {
	if len(s.Wells) == s.SurveyTotalWells {
		return validate.Result{}
	}
	return validate.Result{Violations: []validate.Violation{{
		Rule:      r.Name(),
		Severity:  validate.SeverityBlock,
		Message:   fmt.Sprintf("%d well records do not match the declared total of %d", len(s.Wells), s.SurveyTotalWells),
		Subject:   "platesurvey",
		SubjectID: s.PlateType,
	}}}
}

type formatVersionRule struct{}

func (formatVersionRule) Name() string { return "format_version" }

func (r formatVersionRule) Evaluate(s *EchoPlateSurvey) validate.Result {
	if s.DataFormatVersion == ExpectedDataFormatVersion {
		return validate.Result{}
	}
	return validate.Result{Violations: []validate.Violation{{
		Rule:      r.Name(),
		Severity:  validate.SeverityWarn,
		Message:   fmt.Sprintf("data format version %d has not been exercised, expected %d", s.DataFormatVersion, ExpectedDataFormatVersion),
		Subject:   "platesurvey",
		SubjectID: s.PlateType,
	}}}
}
