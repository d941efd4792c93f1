package simulate

import (
	"math"
	"math/rand"
	"time"

	"obd-ecu-sim/vehicle"
)

const (
	scenarioIdle       = "idle"
	scenarioCity       = "city"
	scenarioHighway    = "highway"
	scenarioAggressive = "aggressive"
	scenarioEco        = "eco"
	scenarioParking    = "parking"
	scenarioTrafficJam = "traffic_jam"
)

// scenarioWeights is the sampling distribution for reselection (spec.md
// §4.4.1). The current scenario is always excluded from the draw.
var scenarioWeights = map[string]float64{
	scenarioIdle:       20,
	scenarioCity:       35,
	scenarioHighway:    20,
	scenarioAggressive: 5,
	scenarioEco:        10,
	scenarioParking:    5,
	scenarioTrafficJam: 5,
}

// ScenarioStrategy is the weighted-random driving model (spec.md §4.4.1):
// a small set of named scenarios, each with its own update rule, selected
// by weighted sampling every 30-120 seconds.
type ScenarioStrategy struct {
	store *vehicle.Store
	rng   *rand.Rand
	noDTC bool

	current       string
	sinceReselect time.Duration
	reselectAfter time.Duration

	// parkedSeconds tracks how long the vehicle has continuously been in
	// the parking scenario with the engine still running, to drive the
	// key-off transition in applyParking.
	parkedSeconds float64
}

func (s *ScenarioStrategy) Name() string { return "scenario" }

func (s *ScenarioStrategy) Initialize(config Config) error {
	s.store = config.Store
	s.rng = config.RNG
	s.noDTC = config.NoDTC
	s.current = s.pickScenario("")
	s.reselectAfter = time.Duration(uniform(s.rng, 30, 120)) * time.Second
	s.store.Apply(func(snap *vehicle.Snapshot) {
		snap.Scenario = s.current
	})
	return nil
}

func (s *ScenarioStrategy) Cleanup() {}

// pickScenario draws a weighted sample excluding the given scenario (pass
// "" to sample from the full set, used at startup).
func (s *ScenarioStrategy) pickScenario(exclude string) string {
	// A fixed order keeps the draw a function of the RNG alone; ranging over
	// the weights map would follow Go's randomized map order.
	order := []string{scenarioIdle, scenarioCity, scenarioHighway, scenarioAggressive, scenarioEco, scenarioParking, scenarioTrafficJam}

	total := 0.0
	for _, name := range order {
		if name == exclude {
			continue
		}
		total += scenarioWeights[name]
	}

	r := s.rng.Float64() * total
	for _, name := range order {
		if name == exclude {
			continue
		}
		w := scenarioWeights[name]
		if r < w {
			return name
		}
		r -= w
	}
	// Floating-point fallback; should not normally be reached.
	return scenarioIdle
}

func (s *ScenarioStrategy) Advance(tick uint64, dt time.Duration) {
	s.sinceReselect += dt
	if s.sinceReselect >= s.reselectAfter {
		s.current = s.pickScenario(s.current)
		s.sinceReselect = 0
		s.reselectAfter = time.Duration(uniform(s.rng, 30, 120)) * time.Second
	}

	t := float64(tick)
	deltaSeconds := dt.Seconds()
	now := time.Now()

	s.store.Apply(func(snap *vehicle.Snapshot) {
		snap.Scenario = s.current

		// Every scenario but parking requires the engine running (you
		// cannot drive with it off); parking is the only scenario that
		// can key the engine off, and does so itself in applyParking.
		if s.current != scenarioParking {
			snap.Engine.IsRunning = true
			s.parkedSeconds = 0
		}

		switch s.current {
		case scenarioIdle:
			s.applyIdle(snap)
		case scenarioCity:
			s.applyCity(snap, t)
		case scenarioHighway:
			s.applyHighway(snap, t)
		case scenarioAggressive:
			s.applyAggressive(snap)
		case scenarioEco:
			s.applyEco(snap)
		case scenarioTrafficJam:
			s.applyTrafficJam(snap)
		case scenarioParking:
			s.applyParking(snap, deltaSeconds)
		}

		s.applyCorrelatedUpdates(snap, t, deltaSeconds)

		if !s.noDTC {
			maybeInjectDTC(snap, s.rng, now)
		}
	})
}

func (s *ScenarioStrategy) applyIdle(snap *vehicle.Snapshot) {
	snap.Vehicle.Speed = 0
	snap.Vehicle.Gear = 0
	snap.Engine.RPM = clamp(gaussian(s.rng, 800, 30), 800, 7000)
	snap.Engine.ThrottlePosition = 0
	snap.Engine.EngineLoad = uniform(s.rng, 15, 25)
	snap.Engine.MAFFlow = uniform(s.rng, 2, 4)
}

func (s *ScenarioStrategy) applyCity(snap *vehicle.Snapshot, t float64) {
	speed := math.Max(0, 40+15*math.Sin(0.01*t)+gaussian(s.rng, 0, 5))
	snap.Vehicle.Speed = speed
	snap.Vehicle.Gear = gearForSpeedOrNeutral(speed)
	snap.Vehicle.SpeedLimit = []float64{40, 50, 60}[s.rng.Intn(3)]
	snap.Engine.RPM = rpmForSpeed(speed)
	snap.Engine.ThrottlePosition = uniform(s.rng, 20, 60)
	snap.Engine.EngineLoad = uniform(s.rng, 30, 70)
	snap.Engine.MAFFlow = uniform(s.rng, 8, 25)
}

func (s *ScenarioStrategy) applyHighway(snap *vehicle.Snapshot, t float64) {
	speed := 110 + 10*math.Sin(0.005*t) + gaussian(s.rng, 0, 3)
	snap.Vehicle.Speed = speed
	snap.Vehicle.Gear = 6
	snap.Vehicle.SpeedLimit = []float64{90, 110, 130}[s.rng.Intn(3)]
	snap.Engine.RPM = rpmForSpeed(speed)
	snap.Engine.ThrottlePosition = uniform(s.rng, 40, 70)
	snap.Engine.EngineLoad = uniform(s.rng, 40, 80)
	snap.Engine.MAFFlow = uniform(s.rng, 15, 35)
}

func (s *ScenarioStrategy) applyAggressive(snap *vehicle.Snapshot) {
	speed := uniform(s.rng, 60, 140)
	snap.Vehicle.Speed = speed
	snap.Vehicle.Gear = gearForSpeedOrNeutral(speed)
	snap.Engine.RPM = uniform(s.rng, 3000, 6500)
	snap.Engine.ThrottlePosition = uniform(s.rng, 70, 100)
	snap.Engine.EngineLoad = uniform(s.rng, 70, 95)
	snap.Engine.MAFFlow = uniform(s.rng, 25, 50)
}

func (s *ScenarioStrategy) applyEco(snap *vehicle.Snapshot) {
	speed := uniform(s.rng, 50, 90)
	snap.Vehicle.Speed = speed
	snap.Vehicle.Gear = gearForSpeedOrNeutral(speed)
	snap.Engine.RPM = math.Min(2500, rpmForSpeed(speed))
	snap.Engine.ThrottlePosition = uniform(s.rng, 10, 40)
	snap.Engine.EngineLoad = uniform(s.rng, 20, 50)
	snap.Engine.MAFFlow = uniform(s.rng, 5, 20)
}

func (s *ScenarioStrategy) applyTrafficJam(snap *vehicle.Snapshot) {
	if s.rng.Float64() < 0.3 {
		s.applyIdle(snap)
		return
	}
	speed := uniform(s.rng, 5, 25)
	snap.Vehicle.Speed = speed
	snap.Vehicle.Gear = gearForSpeedOrNeutral(speed)
	snap.Engine.RPM = rpmForSpeed(speed)
	snap.Engine.ThrottlePosition = uniform(s.rng, 10, 30)
	snap.Engine.EngineLoad = uniform(s.rng, 25, 45)
	snap.Engine.MAFFlow = uniform(s.rng, 5, 15)
}

// applyParking implements spec.md §4.4.1's "parking: speed=0; if running ->
// idle else all zeros". Reaching the engine-off branch requires an actual
// key-off transition: once the vehicle has sat parked with the engine
// running for more than 10 seconds, each tick turns it off with probability
// 0.01, after which it stays off until the next scenario reselects away
// from parking.
func (s *ScenarioStrategy) applyParking(snap *vehicle.Snapshot, deltaSeconds float64) {
	snap.Vehicle.Speed = 0
	snap.Vehicle.Gear = 0

	if snap.Engine.IsRunning {
		s.parkedSeconds += deltaSeconds
		const minParkedBeforeKeyOff = 10.0
		const keyOffProbabilityPerTick = 0.01
		if s.parkedSeconds > minParkedBeforeKeyOff && s.rng.Float64() < keyOffProbabilityPerTick {
			snap.Engine.IsRunning = false
			snap.Engine.RPM = 0
			snap.Engine.ThrottlePosition = 0
			snap.Engine.EngineLoad = 0
			snap.Engine.MAFFlow = 0
			return
		}
		s.applyIdle(snap)
		return
	}

	snap.Engine.RPM = 0
	snap.Engine.ThrottlePosition = 0
	snap.Engine.EngineLoad = 0
	snap.Engine.MAFFlow = 0
}

// applyCorrelatedUpdates applies the per-tick updates common to every
// scenario (spec.md §4.4.1 "Correlated updates").
func (s *ScenarioStrategy) applyCorrelatedUpdates(snap *vehicle.Snapshot, t, deltaSeconds float64) {
	coolantTarget := 85 + snap.Engine.EngineLoad/100*20
	if snap.Vehicle.Speed > 50 {
		coolantTarget -= 5
	}
	snap.Engine.CoolantTemp += (coolantTarget - snap.Engine.CoolantTemp) * 0.01
	snap.Engine.CoolantTemp = clamp(snap.Engine.CoolantTemp, -40, 215)

	snap.Engine.OilTemp = clamp(snap.Engine.CoolantTemp+uniform(s.rng, 5, 15), -40, 215)
	snap.Engine.FuelPressure = clamp((3.5+snap.Engine.EngineLoad/100*1.5)*100, 0, 765)

	applyAmbientElectricals(snap, s.rng, t, deltaSeconds)

	snap.Vehicle.Odometer += snap.Vehicle.Speed / 3600 * deltaSeconds
}
