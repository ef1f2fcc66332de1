package triage

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRuleSet marks a rule file that cannot drive the engine. It is a
// startup error, never a per-classification one.
var ErrInvalidRuleSet = errors.New("invalid rule set")

// RuleSet is the parsed rule file. The file may be JSON or YAML.
type RuleSet struct {
	Version    string                   `yaml:"version"`
	Thresholds map[string]rawThresholds `yaml:"thresholds"`
}

// rawThresholds mirrors one patient class in the rule file. Pointers tell a
// missing key from a zero value.
type rawThresholds struct {
	SignalTrust struct {
		UnreliableLT *float64 `yaml:"unreliable_lt"`
	} `yaml:"SignalTrust"`
	RR struct {
		ImmediateHighGE *float64  `yaml:"immediate_high_ge"`
		BorderlineRange []float64 `yaml:"borderline_range"`
	} `yaml:"RR"`
	SpO2 struct {
		ImmediateLT     *float64  `yaml:"immediate_lt"`
		BorderlineRange []float64 `yaml:"borderline_range"`
	} `yaml:"SpO2"`
	BFI struct {
		TauImmediateGTUS *float64 `yaml:"tau_immediate_gt_us"`
	} `yaml:"BFI"`
	HR struct {
		TachyGE *float64 `yaml:"tachy_ge"`
	} `yaml:"HR"`
	PI struct {
		VeryLowLT *float64 `yaml:"veryLow_lt"`
	} `yaml:"PI"`
}

// Range is an inclusive [Low, High] interval.
type Range struct {
	Low  float64
	High float64
}

// Contains reports whether v lies within the range, endpoints included.
func (r Range) Contains(v float64) bool {
	return r.Low <= v && v <= r.High
}

// Thresholds is the resolved boundary table for one patient class.
type Thresholds struct {
	SignalTrustUnreliableLT float64
	RRImmediateHighGE       float64
	RRBorderline            Range
	SpO2ImmediateLT         float64
	SpO2Borderline          Range
	BFITauImmediateGTUS     float64
	HRTachyGE               float64
	PIVeryLowLT             float64
}

// LoadRuleSet reads and parses the rule file at path.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator config
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidRuleSet, path, err)
	}
	rs, err := ParseRuleSet(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// ParseRuleSet parses rule file contents.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("%w: parse: %w", ErrInvalidRuleSet, err)
	}
	if rs.Version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidRuleSet)
	}
	if len(rs.Thresholds) == 0 {
		return nil, fmt.Errorf("%w: thresholds are required", ErrInvalidRuleSet)
	}
	return &rs, nil
}

// Resolve returns the thresholds for a patient class. Every key is required;
// all missing or malformed keys are reported together.
func (rs *RuleSet) Resolve(patientClass string) (Thresholds, error) {
	raw, ok := rs.Thresholds[patientClass]
	if !ok {
		return Thresholds{}, fmt.Errorf("%w: no thresholds for patient class %q", ErrInvalidRuleSet, patientClass)
	}

	var errs []error
	prefix := "thresholds." + patientClass + "."
	need := func(key string, p *float64) float64 {
		if p == nil {
			errs = append(errs, fmt.Errorf("%w: %s%s is required", ErrInvalidRuleSet, prefix, key))
			return 0
		}
		return *p
	}
	needRange := func(key string, v []float64) Range {
		switch {
		case v == nil:
			errs = append(errs, fmt.Errorf("%w: %s%s is required", ErrInvalidRuleSet, prefix, key))
		case len(v) != 2:
			errs = append(errs, fmt.Errorf("%w: %s%s must be [low, high], got %d values", ErrInvalidRuleSet, prefix, key, len(v)))
		case v[0] > v[1]:
			errs = append(errs, fmt.Errorf("%w: %s%s low %v exceeds high %v", ErrInvalidRuleSet, prefix, key, v[0], v[1]))
		default:
			return Range{Low: v[0], High: v[1]}
		}
		return Range{}
	}

	t := Thresholds{
		SignalTrustUnreliableLT: need("SignalTrust.unreliable_lt", raw.SignalTrust.UnreliableLT),
		RRImmediateHighGE:       need("RR.immediate_high_ge", raw.RR.ImmediateHighGE),
		RRBorderline:            needRange("RR.borderline_range", raw.RR.BorderlineRange),
		SpO2ImmediateLT:         need("SpO2.immediate_lt", raw.SpO2.ImmediateLT),
		SpO2Borderline:          needRange("SpO2.borderline_range", raw.SpO2.BorderlineRange),
		BFITauImmediateGTUS:     need("BFI.tau_immediate_gt_us", raw.BFI.TauImmediateGTUS),
		HRTachyGE:               need("HR.tachy_ge", raw.HR.TachyGE),
		PIVeryLowLT:             need("PI.veryLow_lt", raw.PI.VeryLowLT),
	}
	if len(errs) > 0 {
		return Thresholds{}, errors.Join(errs...)
	}
	return t, nil
}
