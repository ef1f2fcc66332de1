package vitals

// Archetype is the clinical picture a profile name resolves to.
type Archetype string

const (
	// ArchetypeStable is a healthy patient with a clean, respiration-modulated pulse.
	ArchetypeStable Archetype = "stable"

	// ArchetypeDelayed is a borderline patient with a slightly irregular pulse.
	ArchetypeDelayed Archetype = "delayed"

	// ArchetypeShock is a patient in shock: fast, shallow and noisy pulse.
	ArchetypeShock Archetype = "shock"

	// ArchetypeUnreliable is a sensor decoupled from tissue. All vitals read zero.
	ArchetypeUnreliable Archetype = "unreliable"

	// ArchetypeOcclusion simulates a vascular occlusion test (finger squeeze).
	ArchetypeOcclusion Archetype = "occlusion"
)

// DefaultProfile is the profile a new Sensor starts with.
const DefaultProfile = "Minor"

// profileNames maps accepted profile names, including the aliases the
// front-end sends, to their archetype.
var profileNames = map[string]Archetype{
	"Minor":            ArchetypeStable,
	"Stable":           ArchetypeStable,
	"Delayed":          ArchetypeDelayed,
	"Immediate":        ArchetypeShock,
	"Shock":            ArchetypeShock,
	"Assess":           ArchetypeUnreliable,
	"UnreliableSignal": ArchetypeUnreliable,
	"VOT_Occlusion":    ArchetypeOcclusion,
}

// Resolve returns the archetype for a profile name. Unknown names resolve to
// ArchetypeStable and ok is false.
func Resolve(name string) (a Archetype, ok bool) {
	a, ok = profileNames[name]
	if !ok {
		return ArchetypeStable, false
	}
	return a, true
}

// baseline holds the hand-authored central values for an archetype.
type baseline struct {
	HR, SpO2, PI, RR, TauUS, SignalTrust float64
}

var baselines = map[Archetype]baseline{
	ArchetypeStable:     {HR: 78, SpO2: 98, PI: 2.5, RR: 16, TauUS: 70, SignalTrust: 98},
	ArchetypeDelayed:    {HR: 110, SpO2: 92, PI: 1.2, RR: 24, TauUS: 95, SignalTrust: 90},
	ArchetypeShock:      {HR: 124, SpO2: 88, PI: 0.4, RR: 32, TauUS: 135, SignalTrust: 78},
	ArchetypeUnreliable: {HR: 0, SpO2: 0, PI: 0, RR: 0, TauUS: 0, SignalTrust: 25},
	ArchetypeOcclusion:  {HR: 75, SpO2: 85, PI: 0.1, RR: 16, TauUS: 150, SignalTrust: 95},
}

func baselineFor(a Archetype) baseline {
	if b, ok := baselines[a]; ok {
		return b
	}
	return baselines[ArchetypeStable]
}
