package triage

import (
	"fmt"
)

// DefaultPatientClass is the threshold table used when none is configured.
const DefaultPatientClass = "adult"

// Rule is one entry of the ordered rule table. Rules are evaluated in order
// and the first match decides the class.
type Rule struct {
	Name    string
	Class   Class
	Match   func(t *Thresholds, v Vitals) bool
	Reasons func(v Vitals) []string
}

// RuleStable is reported when no rule matched.
const RuleStable = "stable"

// Rules returns the triage rule table in precedence order. An untrustworthy
// signal masks everything else, then Immediate conditions, then Delayed.
func Rules() []Rule {
	return []Rule{
		{
			Name:  "unreliable_signal",
			Class: ClassAssess,
			Match: func(t *Thresholds, v Vitals) bool {
				return v.signalTrust() < t.SignalTrustUnreliableLT
			},
			Reasons: func(Vitals) []string { return []string{"Signal unreliable"} },
		},
		{
			Name:  "tachypnea",
			Class: ClassImmediate,
			Match: func(t *Thresholds, v Vitals) bool {
				return v.rr() >= t.RRImmediateHighGE
			},
			Reasons: func(v Vitals) []string { return []string{rrReason(v)} },
		},
		{
			Name:  "hypoxia",
			Class: ClassImmediate,
			Match: func(t *Thresholds, v Vitals) bool {
				return v.spo2() < t.SpO2ImmediateLT
			},
			Reasons: func(v Vitals) []string { return []string{spo2Reason(v)} },
		},
		{
			// elevated tau alone is not enough, it must come with tachycardia or very low perfusion
			Name:  "perfusion",
			Class: ClassImmediate,
			Match: func(t *Thresholds, v Vitals) bool {
				return v.tauUS() > t.BFITauImmediateGTUS &&
					(v.hr() >= t.HRTachyGE || v.pi() < t.PIVeryLowLT)
			},
			Reasons: func(v Vitals) []string {
				return []string{
					"BFI low",
					"HR " + formatValue(v.hr()),
					"PI " + formatValue(v.pi()) + "%",
				}
			},
		},
		{
			Name:  "borderline",
			Class: ClassDelayed,
			Match: func(t *Thresholds, v Vitals) bool {
				return t.SpO2Borderline.Contains(v.spo2()) || t.RRBorderline.Contains(v.rr())
			},
			Reasons: func(v Vitals) []string { return []string{rrReason(v), spo2Reason(v)} },
		},
	}
}

func rrReason(v Vitals) string   { return "RR " + formatValue(v.rr()) }
func spo2Reason(v Vitals) string { return "SpO2 " + formatValue(v.spo2()) + "%" }

// EngineHooks lets callers observe classifications without coupling the
// engine to a metrics backend. Nil hooks are skipped.
type EngineHooks struct {
	OnClassify func(class Class, rule string)
}

// Engine classifies vitals against a fixed threshold table. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	version      string
	patientClass string
	thresholds   Thresholds
	rules        []Rule
	hooks        EngineHooks
}

// NewEngine resolves the rule set for patientClass once. A rule set missing
// any threshold is rejected.
func NewEngine(rs *RuleSet, patientClass string, hooks EngineHooks) (*Engine, error) {
	if rs == nil {
		return nil, fmt.Errorf("%w: rule set is required", ErrInvalidRuleSet)
	}
	if patientClass == "" {
		patientClass = DefaultPatientClass
	}
	t, err := rs.Resolve(patientClass)
	if err != nil {
		return nil, err
	}
	return &Engine{
		version:      rs.Version,
		patientClass: patientClass,
		thresholds:   t,
		rules:        Rules(),
		hooks:        hooks,
	}, nil
}

// Version returns the loaded rule set version.
func (e *Engine) Version() string { return e.version }

// PatientClass returns the threshold table the engine uses.
func (e *Engine) PatientClass() string { return e.patientClass }

// Thresholds returns a copy of the resolved thresholds.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// Classify returns the class and reasons of the first matching rule.
func (e *Engine) Classify(v Vitals) Result {
	res := Result{Class: ClassMinor, Reasons: []string{"Stable vitals"}, Rule: RuleStable}
	for i := range e.rules {
		r := &e.rules[i]
		if r.Match(&e.thresholds, v) {
			res = Result{Class: r.Class, Reasons: r.Reasons(v), Rule: r.Name}
			break
		}
	}
	if e.hooks.OnClassify != nil {
		e.hooks.OnClassify(res.Class, res.Rule)
	}
	return res
}
