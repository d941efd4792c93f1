package simulate

import "math"

// gearRatios are the transmission ratios the scenario model's gear lookup
// uses (spec.md §4.4.1 "Gear model"). The physics strategy uses its own
// final-drive and wheel geometry in physics.go and does not share this
// table, since the two models are calibrated independently.
var gearRatios = map[uint8]float64{
	1: 3.5,
	2: 2.1,
	3: 1.4,
	4: 1.0,
	5: 0.8,
	6: 0.65,
}

const (
	finalDrive        = 3.73
	wheelCircumference = 2.07 // meters
)

// gearForSpeed bins a km/h speed into the 1-6 gear range.
func gearForSpeed(speedKmh float64) uint8 {
	switch {
	case speedKmh < 20:
		return 1
	case speedKmh < 40:
		return 2
	case speedKmh < 60:
		return 3
	case speedKmh < 80:
		return 4
	case speedKmh < 110:
		return 5
	default:
		return 6
	}
}

// gearForSpeedOrNeutral applies the §3 invariant gear==0 iff speed<epsilon
// (epsilon=0.1 km/h) on top of gearForSpeed, for callers whose speed can
// fall near zero (gearForSpeed alone would report gear 1 there).
func gearForSpeedOrNeutral(speedKmh float64) uint8 {
	if speedKmh < 0.1 {
		return 0
	}
	return gearForSpeed(speedKmh)
}

// rpmForSpeed converts a speed into an engine RPM via the gear model,
// clamped to the engine's operating range.
func rpmForSpeed(speedKmh float64) float64 {
	gear := gearForSpeed(speedKmh)
	ratio := gearRatios[gear]

	wheelRPM := (speedKmh * 1000 / 60) / wheelCircumference
	rpm := wheelRPM * ratio * finalDrive

	return clamp(rpm, 800, 7000)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
