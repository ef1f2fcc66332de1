package vitals

import (
	"math"
	"time"
)

// wavePeriod bounds the phase so long-running sensors keep float precision.
const wavePeriod = 60 * time.Second

// Noise standard deviations per waveform shape.
const (
	shockNoise      = 0.15
	unreliableNoise = 0.05
	stableNoise     = 0.05
)

// ppgSample returns one PPG sample at elapsed time since the sensor started.
// The shaped pulse rides on a unit DC baseline scaled by the perfusion index.
func ppgSample(a Archetype, hr, rr, pi float64, elapsed time.Duration, rnd Rand) float64 {
	if a == ArchetypeUnreliable {
		// flat line: sensor is not on tissue
		return 1.0 + rnd.NormFloat64()*unreliableNoise
	}

	t := math.Mod(elapsed.Seconds(), wavePeriod.Seconds())
	fHeart := hr / 60.0
	fResp := rr / 60.0

	ppg := math.Sin(2 * math.Pi * fHeart * t)

	switch a {
	case ArchetypeShock:
		ppg *= 0.6
		ppg += rnd.NormFloat64() * shockNoise
	case ArchetypeDelayed:
		ppg += 0.3 * math.Sin(2*math.Pi*fHeart*1.5*t+1)
	default:
		ppg += 0.2 * math.Sin(2*math.Pi*fResp*t)
		ppg += rnd.NormFloat64() * stableNoise
	}

	const dc = 1.0
	ac := (pi / 100.0) * dc
	return dc + ac*ppg
}
