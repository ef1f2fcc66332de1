package triage

import (
	"math"
	"strconv"

	"github.com/linnemanlabs/triageq/internal/vitals"
)

// Class is a triage category.
type Class string

const (
	// ClassImmediate means life-threatening, treat first
	ClassImmediate Class = "Immediate"

	// ClassDelayed means urgent but can wait for Immediate patients
	ClassDelayed Class = "Delayed"

	// ClassMinor means stable vitals
	ClassMinor Class = "Minor"

	// ClassAssess means the reading cannot be trusted and the patient needs manual assessment
	ClassAssess Class = "Assess"
)

// Vitals is the classifier input. A nil field means the value is absent and
// the rule sees its safe default instead.
type Vitals struct {
	HR          *float64 `json:"HR,omitempty"`
	SpO2        *float64 `json:"SpO2,omitempty"`
	PI          *float64 `json:"PI,omitempty"`
	RR          *float64 `json:"RR,omitempty"`
	TauUS       *float64 `json:"tau_us,omitempty"`
	SignalTrust *float64 `json:"SignalTrust,omitempty"`
}

// FromRecord converts a complete sensor reading into classifier input.
func FromRecord(r vitals.Record) Vitals {
	return Vitals{
		HR:          &r.HR,
		SpO2:        &r.SpO2,
		PI:          &r.PI,
		RR:          &r.RR,
		TauUS:       &r.TauUS,
		SignalTrust: &r.SignalTrust,
	}
}

// Defaults for absent fields. Values whose abnormality shows as a low number
// default to healthy, values whose abnormality shows as a high number default
// to zero, so an incomplete record never raises an alarm on its own.
const (
	defaultHR          = 0
	defaultRR          = 0
	defaultTauUS       = 0
	defaultSpO2        = 100
	defaultPI          = 100
	defaultSignalTrust = 100
)

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func (v Vitals) hr() float64          { return valueOr(v.HR, defaultHR) }
func (v Vitals) rr() float64          { return valueOr(v.RR, defaultRR) }
func (v Vitals) tauUS() float64       { return valueOr(v.TauUS, defaultTauUS) }
func (v Vitals) spo2() float64        { return valueOr(v.SpO2, defaultSpO2) }
func (v Vitals) pi() float64          { return valueOr(v.PI, defaultPI) }
func (v Vitals) signalTrust() float64 { return valueOr(v.SignalTrust, defaultSignalTrust) }

// Result is the outcome of a classification.
type Result struct {
	Class   Class    `json:"class"`
	Reasons []string `json:"reasons"`
	Rule    string   `json:"-"`
}

// Snapshot is one served reading with its classification.
type Snapshot struct {
	Timestamp float64       `json:"timestamp"`
	Vitals    vitals.Record `json:"vitals"`
	Triage    Result        `json:"triage"`
	Profile   string        `json:"-"`
}

// formatValue renders a vital for a reason string: two decimals at most, no
// trailing zeros.
func formatValue(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
