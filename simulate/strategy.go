// Package simulate advances vehicle state at a fixed tick rate using one of
// two interchangeable strategies, mirroring the way the teacher's ecu
// package offers two interface implementations selected by a type enum
// (see ecu.ECUInterface / ecu.NewECU). Unlike the teacher's ECUs, which
// decode inbound CAN frames, a Strategy here is a pure writer: it is ticked
// by the supervisor's physics loop and never sees a CAN frame directly.
package simulate

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"obd-ecu-sim/vehicle"
)

// Kind selects which strategy New constructs.
type Kind int

const (
	KindScenario Kind = iota
	KindPhysics
)

func (k Kind) String() string {
	switch k {
	case KindScenario:
		return "scenario"
	case KindPhysics:
		return "physics"
	default:
		return "unknown"
	}
}

// ParseKind maps a CLI --model value onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "scenario":
		return KindScenario, nil
	case "physics":
		return KindPhysics, nil
	default:
		return 0, fmt.Errorf("unknown model %q (want scenario or physics)", s)
	}
}

// Config bundles what a Strategy needs to initialize.
type Config struct {
	Store *vehicle.Store
	RNG   *rand.Rand
	NoDTC bool
}

// Strategy advances the shared vehicle state at a fixed cadence. Initialize
// is called once before the first Advance; Cleanup once after the last.
type Strategy interface {
	Initialize(config Config) error
	Advance(tick uint64, dt time.Duration)
	Cleanup()
	Name() string
}

// New constructs the requested strategy, unconfigured; call Initialize
// before the first Advance.
func New(kind Kind) Strategy {
	switch kind {
	case KindScenario:
		return &ScenarioStrategy{}
	case KindPhysics:
		return &PhysicsStrategy{}
	default:
		return nil
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func gaussian(rng *rand.Rand, mean, stddev float64) float64 {
	return rng.NormFloat64()*stddev + mean
}

// recomputeDTCFields keeps dtc_count/mil_status consistent with the DTC
// list after any mutation that can add or remove entries (spec.md §3
// invariants).
func recomputeDTCFields(snap *vehicle.Snapshot) {
	confirmed := 0
	for _, d := range snap.DTCs {
		if d.Status == vehicle.DTCConfirmed {
			confirmed++
		}
	}
	snap.Vehicle.DTCCount = uint8(confirmed)
	snap.Vehicle.MILStatus = confirmed > 0
}

// applyAmbientElectricals updates the fields spec.md §4.4.1 defines as
// "correlated updates" but that are independent of which strategy drives
// speed/RPM/coolant: O2 sensor voltages, fuel trims, timing advance,
// battery voltage, intake air temp, and fuel-level depletion while
// running. Both strategies call this so PIDs 0x06/0x07/0x0E/0x0F/0x14/0x2F/
// 0x42 stay populated with plausible values regardless of §4.4.2's silence
// on them for the physics model.
func applyAmbientElectricals(snap *vehicle.Snapshot, rng *rand.Rand, t, deltaSeconds float64) {
	snap.Engine.IntakeAirTemp = clamp(snap.Vehicle.AmbientTemperature+snap.Engine.EngineLoad/100*30+gaussian(rng, 0, 3), -40, 215)

	baseVoltage := 12.6
	if snap.Engine.IsRunning {
		baseVoltage = 14.2
	}
	snap.Vehicle.BatteryVoltage = clamp(baseVoltage+gaussian(rng, 0, 0.2), 0, 65.535)

	osc := 0.1 * math.Sin(0.2*t)
	snap.Vehicle.O2Sensor1Voltage = clamp(0.45+osc+gaussian(rng, 0, 0.02), 0, 1.275)
	snap.Vehicle.O2Sensor2Voltage = clamp(0.47+osc+gaussian(rng, 0, 0.02), 0, 1.275)

	snap.Vehicle.ShortFuelTrimBank1 = clamp(gaussian(rng, 0, 3), -100, 99.21875)
	snap.Vehicle.LongFuelTrimBank1 = clamp(gaussian(rng, 0, 5), -100, 99.21875)

	snap.Engine.TimingAdvance = clamp(15+snap.Engine.RPM/6000*25, -64, 63.5)

	if snap.Engine.IsRunning {
		snap.Vehicle.FuelLevel = clamp(snap.Vehicle.FuelLevel-snap.Engine.EngineLoad/100*1e-4*deltaSeconds*100, 0, 100)

		// runtime_since_start is seconds (spec.md §3 / PID 0x1F), but
		// Advance is ticked at 100Hz: accumulate the fractional
		// deltaSeconds and only bump the counter once a whole second has
		// elapsed, instead of incrementing once per 10ms tick.
		snap.Engine.RuntimeCarrySeconds += deltaSeconds
		for snap.Engine.RuntimeCarrySeconds >= 1 && snap.Engine.RuntimeSinceStart < 65535 {
			snap.Engine.RuntimeSinceStart++
			snap.Engine.RuntimeCarrySeconds--
		}
	}
}

// maybeInjectDTC implements spec.md §4.4.1's random fault injection, shared
// by both strategies so physics-mode runs also exercise the DTC catalog.
func maybeInjectDTC(snap *vehicle.Snapshot, rng *rand.Rand, now time.Time) {
	const injectionProbability = 1e-4
	if len(snap.DTCs) >= 5 {
		return
	}
	if rng.Float64() >= injectionProbability {
		return
	}

	entry := vehicle.DTCCatalog[rng.Intn(len(vehicle.DTCCatalog))]
	for _, existing := range snap.DTCs {
		if existing.Code == entry.Code {
			return
		}
	}

	status := vehicle.DTCPending
	if rng.Float64() < 0.3 {
		status = vehicle.DTCConfirmed
	}

	snap.DTCs = append(snap.DTCs, vehicle.DTC{
		Code:            entry.Code,
		Description:     entry.Description,
		Status:          status,
		FirstDetected:   now,
		LastDetected:    now,
		OccurrenceCount: 1,
	})

	recomputeDTCFields(snap)
}
