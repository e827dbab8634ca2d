package picklist

import (
	"fmt"
	"math"

	"echocore/pkg/diag"
	"echocore/pkg/labware"
	"echocore/pkg/validate"
)

// Rule is one check of a pick list against a labware definition. Rules
// that need no labware ignore it; all rules tolerate a nil labware so
// a list can be checked before definitions are loaded.
type Rule interface {
	Name() string
	Evaluate(p *PickList, lw *labware.Labware) validate.Result
}

// DefaultRules returns the checks Validate runs.
func DefaultRules() []Rule {
	return []Rule{
		plateTypeConsistencyRule{},
		labwareUsageRule{},
		dropVolumeRule{},
		transferCycleRule{},
	}
}

// Validate evaluates the default rules and merges their findings.
func (p *PickList) Validate(lw *labware.Labware) validate.Result {
	var result validate.Result
	for _, rule := range DefaultRules() {
		result.Merge(rule.Evaluate(p, lw))
	}
	return result
}

// Option configures a Check call.
type Option func(*config)

type config struct {
	logger diag.Logger
}

// WithLogger routes advisory findings to the given sink.
func WithLogger(logger diag.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Check validates the pick list, logs warnings, and converts blocking
// findings into an error.
func (p *PickList) Check(lw *labware.Labware, opts ...Option) error {
	cfg := config{logger: diag.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	result := p.Validate(lw)
	for _, v := range result.Warnings() {
		cfg.logger.Warn(v.Message, "rule", v.Rule)
	}
	if result.HasBlocking() {
		return validate.RuleViolationError{Result: result}
	}
	return nil
}

// platePart selects the source or destination half of a transfer.
type platePart struct {
	role  string
	name  func(Transfer) string
	ptype func(Transfer) string
}

var (
	sourcePart = platePart{
		role:  "source",
		name:  func(t Transfer) string { return t.SourcePlateName },
		ptype: func(t Transfer) string { return t.SourcePlateType },
	}
	destPart = platePart{
		role:  "destination",
		name:  func(t Transfer) string { return t.DestPlateName },
		ptype: func(t Transfer) string { return t.DestPlateType },
	}
)

// typesByName maps each plate name to its declared type, reporting a
// violation when a name appears with conflicting types. Rows without a
// type column leave the name unconstrained.
func typesByName(rule string, transfers []Transfer, part platePart) (map[string]string, []validate.Violation) {
	types := map[string]string{}
	var violations []validate.Violation
	for _, t := range transfers {
		name, ptype := part.name(t), part.ptype(t)
		if ptype == "" {
			continue
		}
		known, ok := types[name]
		if !ok {
			types[name] = ptype
			continue
		}
		if known != ptype {
			violations = append(violations, validate.Violation{
				Rule:     rule,
				Severity: validate.SeverityBlock,
				Message: fmt.Sprintf("%s plate %q appears with multiple plate types (%q and %q)",
					part.role, name, known, ptype),
				Subject:   "picklist",
				SubjectID: name,
			})
		}
	}
	return types, violations
}

// plateTypeConsistencyRule requires each plate name to carry a single
// plate type across the list.
type plateTypeConsistencyRule struct{}

func (plateTypeConsistencyRule) Name() string { return "plate_type_consistency" }

func (r plateTypeConsistencyRule) Evaluate(p *PickList, _ *labware.Labware) validate.Result {
	var result validate.Result
	for _, part := range []platePart{sourcePart, destPart} {
		_, violations := typesByName(r.Name(), p.Transfers, part)
		result.Violations = append(result.Violations, violations...)
	}
	return result
}

// labwareUsageRule requires every referenced plate type to exist in
// the labware definition with the usage its position implies.
type labwareUsageRule struct{}

func (labwareUsageRule) Name() string { return "labware_usage" }

func (r labwareUsageRule) Evaluate(p *PickList, lw *labware.Labware) validate.Result {
	if lw == nil {
		return validate.Result{}
	}
	var result validate.Result
	checks := []struct {
		part  platePart
		usage labware.Usage
	}{
		{sourcePart, labware.UsageSource},
		{destPart, labware.UsageDest},
	}
	for _, check := range checks {
		seen := map[string]bool{}
		for _, t := range p.Transfers {
			ptype := check.part.ptype(t)
			if ptype == "" || seen[ptype] {
				continue
			}
			seen[ptype] = true
			plate, err := lw.Get(ptype)
			if err != nil {
				result.Violations = append(result.Violations, validate.Violation{
					Rule:      r.Name(),
					Severity:  validate.SeverityBlock,
					Message:   fmt.Sprintf("plate type %q is not in the labware definition", ptype),
					Subject:   "picklist",
					SubjectID: ptype,
				})
				continue
			}
			if plate.Usage != check.usage {
				result.Violations = append(result.Violations, validate.Violation{
					Rule:     r.Name(),
					Severity: validate.SeverityBlock,
					Message: fmt.Sprintf("plate type %q is not a %s plate (usage %s)",
						ptype, check.part.role, plate.Usage),
					Subject:   "picklist",
					SubjectID: ptype,
				})
			}
		}
	}
	return result
}

// dropVolumeRule requires each transfer volume to be a whole number of
// the source plate's droplets. The instrument cannot split a droplet;
// a non-multiple volume is silently rounded at run time, which is
// exactly the surprise this check exists to catch.
type dropVolumeRule struct{}

func (dropVolumeRule) Name() string { return "drop_volume" }

// dropTolerance absorbs float noise from summed or scaled volumes.
const dropTolerance = 1e-9

func (r dropVolumeRule) Evaluate(p *PickList, lw *labware.Labware) validate.Result {
	if lw == nil {
		return validate.Result{}
	}
	types, _ := typesByName(r.Name(), p.Transfers, sourcePart)
	var result validate.Result
	for _, t := range p.Transfers {
		ptype := t.SourcePlateType
		if ptype == "" {
			ptype = types[t.SourcePlateName]
		}
		if ptype == "" {
			continue
		}
		plate, err := lw.Get(ptype)
		if err != nil || plate.DropVolume == nil || *plate.DropVolume <= 0 {
			continue
		}
		drop := *plate.DropVolume
		rem := math.Mod(t.TransferVolume, drop)
		if rem > dropTolerance && drop-rem > dropTolerance {
			result.Violations = append(result.Violations, validate.Violation{
				Rule:     r.Name(),
				Severity: validate.SeverityBlock,
				Message: fmt.Sprintf("transfer of %g nL from %s %s is not a multiple of the %g nL drop volume",
					t.TransferVolume, t.SourcePlateName, t.SourceWell, drop),
				Subject:   "picklist",
				SubjectID: t.SourcePlateName + " " + t.SourceWell,
			})
		}
	}
	return result
}

// transferCycleRule warns when the plate transfer graph is cyclic. A
// cycle is not always wrong, but it means a plate is surveyed both
// before and after being a destination, which reorders poorly.
type transferCycleRule struct{}

func (transferCycleRule) Name() string { return "transfer_cycle" }

func (r transferCycleRule) Evaluate(p *PickList, _ *labware.Labware) validate.Result {
	adjacent := map[string]map[string]bool{}
	var order []string
	seen := map[string]bool{}
	for _, t := range p.Transfers {
		if adjacent[t.SourcePlateName] == nil {
			adjacent[t.SourcePlateName] = map[string]bool{}
		}
		adjacent[t.SourcePlateName][t.DestPlateName] = true
		for _, name := range []string{t.SourcePlateName, t.DestPlateName} {
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		}
	}
	const (
		visiting = 1
		done     = 2
	)
	state := map[string]int{}
	var visit func(string) bool
	visit = func(name string) bool {
		state[name] = visiting
		for next := range adjacent[name] {
			switch state[next] {
			case visiting:
				return true
			case 0:
				if visit(next) {
					return true
				}
			}
		}
		state[name] = done
		return false
	}
	for _, name := range order {
		if state[name] == 0 && visit(name) {
			return validate.Result{Violations: []validate.Violation{{
				Rule:      r.Name(),
				Severity:  validate.SeverityWarn,
				Message:   "plate transfer graph is not acyclic",
				Subject:   "picklist",
				SubjectID: name,
			}}}
		}
	}
	return validate.Result{}
}
