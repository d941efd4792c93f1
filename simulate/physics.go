package simulate

import (
	"math"
	"math/rand"
	"time"

	"obd-ecu-sim/vehicle"
)

// drivingPhase is one leg of the repeating cycle spec.md §4.4.2 describes.
type drivingPhase int

const (
	phaseCity1 drivingPhase = iota
	phaseLight1
	phaseCity2
	phaseLight2
	phaseHighway
	phaseParking
)

var phaseOrder = []drivingPhase{phaseCity1, phaseLight1, phaseCity2, phaseLight2, phaseHighway, phaseParking}

var phaseDurations = map[drivingPhase]time.Duration{
	phaseCity1:   180 * time.Second,
	phaseLight1:  30 * time.Second,
	phaseCity2:   180 * time.Second,
	phaseLight2:  30 * time.Second,
	phaseHighway: 300 * time.Second,
	phaseParking: 60 * time.Second,
}

func (p drivingPhase) String() string {
	switch p {
	case phaseCity1:
		return "city_1"
	case phaseLight1:
		return "light_1"
	case phaseCity2:
		return "city_2"
	case phaseLight2:
		return "light_2"
	case phaseHighway:
		return "highway"
	case phaseParking:
		return "parking"
	default:
		return "unknown"
	}
}

func nextPhase(p drivingPhase) drivingPhase {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return phaseOrder[(i+1)%len(phaseOrder)]
		}
	}
	return phaseCity1
}

const (
	physicsMass       = 1500.0 // kg
	physicsDragCoeff  = 0.3
	physicsFrontArea  = 2.2 // m^2
	physicsMaxPowerKW = 150.0
	physicsMaxTorque  = 350.0 // N*m
	physicsGearFinal  = 4.1
	physicsWheelDiam  = 0.65 // m
)

// physicsGearRatios mirrors the teacher-adjacent scenario model's table but
// is kept distinct (spec.md Design Notes §9): the physics model is
// calibrated against its own final drive and wheel diameter, not the
// scenario model's.
var physicsGearRatios = map[uint8]float64{
	1: 3.5,
	2: 2.1,
	3: 1.4,
	4: 1.0,
	5: 0.8,
	6: 0.65,
}

// PhysicsStrategy is the longitudinal single-degree-of-freedom vehicle
// model (spec.md §4.4.2): a phased driving cycle drives a target speed, a
// proportional controller maps that onto throttle/brake, and Newtonian
// dynamics integrate speed and RPM from there.
type PhysicsStrategy struct {
	store *vehicle.Store
	rng   *rand.Rand
	noDTC bool

	phase        drivingPhase
	phaseElapsed time.Duration
	brake        float64
}

func (p *PhysicsStrategy) Name() string { return "physics" }

func (p *PhysicsStrategy) Initialize(config Config) error {
	p.store = config.Store
	p.rng = config.RNG
	p.noDTC = config.NoDTC
	p.phase = phaseCity1
	p.phaseElapsed = 0
	p.brake = 0

	p.store.Apply(func(snap *vehicle.Snapshot) {
		snap.Scenario = p.phase.String()
	})
	return nil
}

func (p *PhysicsStrategy) Cleanup() {}

func (p *PhysicsStrategy) Advance(tick uint64, dt time.Duration) {
	p.phaseElapsed += dt
	if p.phaseElapsed > phaseDurations[p.phase] {
		p.phase = nextPhase(p.phase)
		p.phaseElapsed = 0
	}

	phaseTime := p.phaseElapsed.Seconds()
	deltaSeconds := dt.Seconds()
	t := float64(tick)
	now := time.Now()

	p.store.Apply(func(snap *vehicle.Snapshot) {
		snap.Scenario = p.phase.String()
		snap.Engine.IsRunning = true

		target := p.targetSpeed(phaseTime)
		p.applyThrottleController(snap, target, deltaSeconds)
		p.applyLongitudinalDynamics(snap, deltaSeconds)
		p.applyRPM(snap, deltaSeconds, t)
		if snap.Vehicle.Speed < 0.1 {
			snap.Vehicle.Gear = 0
		} else {
			snap.Vehicle.Gear = gearForSpeed(snap.Vehicle.Speed)
		}
		p.applyTemperature(snap, deltaSeconds)

		snap.Engine.EngineLoad = clamp(snap.Engine.ThrottlePosition*0.7+(snap.Engine.RPM/6000)*30, 0, 100)
		snap.Vehicle.FuelSystemStatus = 2

		applyAmbientElectricals(snap, p.rng, t, deltaSeconds)

		if !p.noDTC {
			maybeInjectDTC(snap, p.rng, now)
		}
	})
}

// targetSpeed reproduces the per-phase curves of the reference physics
// simulator (original_source/python_can_simulator/physics_obd_sim.py),
// translated phase-for-phase rather than reimplementing its control loop
// from the prose description alone.
func (p *PhysicsStrategy) targetSpeed(phaseTime float64) float64 {
	switch p.phase {
	case phaseCity1, phaseCity2:
		target := 50 + 10*math.Sin(phaseTime*0.1)
		if int(phaseTime)%30 < 5 {
			target = 20
		}
		return target
	case phaseLight1, phaseLight2:
		switch {
		case phaseTime < 10:
			return math.Max(0, 50-phaseTime*5)
		case phaseTime < 20:
			return 0
		default:
			return math.Min(50, (phaseTime-20)*5)
		}
	case phaseHighway:
		switch {
		case phaseTime < 30:
			return 50 + (phaseTime/30)*65
		case phaseTime < 270:
			return 115 + 5*math.Sin(phaseTime*0.05)
		default:
			return 115 - ((phaseTime-270)/30)*65
		}
	case phaseParking:
		if phaseTime < 10 {
			return math.Max(0, 50-phaseTime*5)
		}
		return 0
	default:
		return 0
	}
}

// applyThrottleController maps the speed error onto a target throttle and
// brake, then actuates throttle with a first-order lag.
func (p *PhysicsStrategy) applyThrottleController(snap *vehicle.Snapshot, targetSpeed, deltaSeconds float64) {
	speedDiff := targetSpeed - snap.Vehicle.Speed

	var targetThrottle float64
	switch {
	case speedDiff > 2:
		targetThrottle = math.Min(80, speedDiff*5)
		p.brake = 0
	case speedDiff < -2:
		targetThrottle = 0
		p.brake = math.Min(80, -speedDiff*5)
	default:
		if snap.Vehicle.Speed > 1 {
			targetThrottle = 20 + snap.Vehicle.Speed*0.3
		}
		p.brake = 0
	}

	snap.Engine.ThrottlePosition += (targetThrottle - snap.Engine.ThrottlePosition) * deltaSeconds * 3
	snap.Engine.ThrottlePosition = clamp(snap.Engine.ThrottlePosition, 0, 100)
}

// applyLongitudinalDynamics integrates speed and odometer from the net
// force on the vehicle (spec.md §4.4.2).
func (p *PhysicsStrategy) applyLongitudinalDynamics(snap *vehicle.Snapshot, deltaSeconds float64) {
	speedMS := snap.Vehicle.Speed / 3.6

	var engineForce float64
	if snap.Engine.ThrottlePosition > 0 {
		rpmNormalized := snap.Engine.RPM / 6000
		powerFactor := rpmNormalized * (2 - rpmNormalized)
		engineForce = (physicsMaxPowerKW * 1000 * powerFactor * snap.Engine.ThrottlePosition / 100) / math.Max(speedMS, 1)
		engineForce = math.Min(engineForce, physicsMaxTorque*10)
	}

	brakeForce := p.brake * 150
	drag := 0.5 * 1.225 * physicsDragCoeff * physicsFrontArea * speedMS * speedMS
	rolling := 0.015 * physicsMass * 9.81

	accel := (engineForce - brakeForce - drag - rolling) / physicsMass

	speedMS = math.Max(0, speedMS+accel*deltaSeconds)
	snap.Vehicle.Speed = speedMS * 3.6

	if snap.Vehicle.Speed > 0 {
		snap.Vehicle.Odometer += (snap.Vehicle.Speed / 3600) * deltaSeconds
	}
}

// applyRPM derives engine RPM from speed and gear, with first-order
// actuation and a small sinusoidal jitter (spec.md §4.4.2).
func (p *PhysicsStrategy) applyRPM(snap *vehicle.Snapshot, deltaSeconds, t float64) {
	var target float64
	if snap.Vehicle.Speed < 0.1 {
		target = 800 + snap.Engine.ThrottlePosition*20
	} else {
		gear := gearForSpeed(snap.Vehicle.Speed)
		ratio := physicsGearRatios[gear]
		wheelRPM := (snap.Vehicle.Speed * 1000 / 60) / (physicsWheelDiam * math.Pi)
		target = wheelRPM*ratio*physicsGearFinal + snap.Engine.ThrottlePosition*10
		target = clamp(target, 800, 6500)
	}

	snap.Engine.RPM += (target - snap.Engine.RPM) * deltaSeconds * 3
	snap.Engine.RPM += math.Sin(t*10) * 5
	// spec.md §8 requires rpm in [800, 6500] for the physics strategy at
	// every tick, tighter than the general [0, 7000] engine range.
	snap.Engine.RPM = clamp(snap.Engine.RPM, 800, 6500)
}

// applyTemperature drives coolant temp toward a throttle-dependent target
// (ambient temperature while RPM is at or below 800) with a slow first-order
// response, capped at 95C (spec.md §4.4.2).
func (p *PhysicsStrategy) applyTemperature(snap *vehicle.Snapshot, deltaSeconds float64) {
	var target float64
	if snap.Engine.RPM > 800 {
		target = 85 + (snap.Engine.ThrottlePosition/100)*10
	} else {
		target = snap.Vehicle.AmbientTemperature
	}

	snap.Engine.CoolantTemp += (target - snap.Engine.CoolantTemp) * deltaSeconds * 0.02
	snap.Engine.CoolantTemp = math.Min(95, snap.Engine.CoolantTemp)
	snap.Engine.CoolantTemp = clamp(snap.Engine.CoolantTemp, -40, 215)
	snap.Engine.OilTemp = clamp(snap.Engine.CoolantTemp+uniform(p.rng, 5, 15), -40, 215)
	snap.Engine.FuelPressure = clamp((3.5+snap.Engine.EngineLoad/100*1.5)*100, 0, 765)
}
