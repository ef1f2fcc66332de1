package vitals

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Jitter bounds applied to every archetype except ArchetypeUnreliable.
const (
	hrJitterMin = -2  // inclusive
	hrJitterMax = 2   // exclusive
	piJitter    = 0.1 // PI offset in [-piJitter, piJitter)
)

// Change describes the active profile and when it was set.
type Change struct {
	ID        string    `json:"change_id,omitempty"`
	Profile   string    `json:"profile"`
	Archetype Archetype `json:"archetype"`
	Known     bool      `json:"known"`
	ChangedAt time.Time `json:"changed_at"`
}

// Sensor is a virtual PPG sensor. It is safe for concurrent use.
type Sensor struct {
	rnd   Rand
	now   func() time.Time
	start time.Time

	mu      sync.RWMutex
	current Change
}

// Option configures a Sensor.
type Option func(*Sensor)

// WithRand sets the random source used for jitter and noise.
func WithRand(r Rand) Option {
	return func(s *Sensor) { s.rnd = r }
}

// WithClock sets the wall clock. The waveform phase is measured from the
// clock's value at construction.
func WithClock(now func() time.Time) Option {
	return func(s *Sensor) { s.now = now }
}

// NewSensor creates a sensor on DefaultProfile.
func NewSensor(opts ...Option) *Sensor {
	s := &Sensor{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.rnd == nil {
		s.rnd = NewRand(0)
	}
	s.start = s.now()
	s.current = Change{
		Profile:   DefaultProfile,
		Archetype: ArchetypeStable,
		Known:     true,
		ChangedAt: s.start,
	}
	return s
}

// SetProfile replaces the active profile. Unknown names are accepted and
// read as the stable archetype.
func (s *Sensor) SetProfile(name string) Change {
	a, known := Resolve(name)
	c := Change{
		ID:        ulid.Make().String(),
		Profile:   name,
		Archetype: a,
		Known:     known,
		ChangedAt: s.now(),
	}

	s.mu.Lock()
	s.current = c
	s.mu.Unlock()
	return c
}

// Profile returns the active profile.
func (s *Sensor) Profile() Change {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Read produces a fresh reading for the active profile at the current time.
func (s *Sensor) Read() Record {
	a := s.Profile().Archetype
	b := baselineFor(a)

	r := Record{
		HR:          b.HR,
		SpO2:        b.SpO2,
		PI:          b.PI,
		RR:          b.RR,
		TauUS:       b.TauUS,
		SignalTrust: b.SignalTrust,
	}

	// zeros must stay zero so the reading remains diagnostic of no signal
	if a != ArchetypeUnreliable {
		r.HR += float64(hrJitterMin + s.rnd.IntN(hrJitterMax-hrJitterMin))
		r.PI += (s.rnd.Float64()*2 - 1) * piJitter
	}

	r.PPGPoint = ppgSample(a, r.HR, r.RR, r.PI, s.now().Sub(s.start), s.rnd)
	return r
}
