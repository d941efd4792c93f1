package simulate

import (
	"math/rand"
	"testing"
	"time"

	"obd-ecu-sim/vehicle"
)

func newTestPhysics(seed int64, noDTC bool) (*PhysicsStrategy, *vehicle.Store) {
	store := vehicle.New(vehicle.NewDefault("1HGCM82633A004352", "CAL-0001"))
	p := &PhysicsStrategy{}
	_ = p.Initialize(Config{Store: store, RNG: rand.New(rand.NewSource(seed)), NoDTC: noDTC})
	return p, store
}

func TestPhysicsStrategy_SpeedNeverNegative(t *testing.T) {
	p, store := newTestPhysics(11, true)
	for tick := uint64(0); tick < 10000; tick++ {
		p.Advance(tick, 10*time.Millisecond)
		if got := store.ReadSnapshot().Vehicle.Speed; got < 0 {
			t.Fatalf("tick %d: negative speed %v", tick, got)
		}
	}
}

func TestPhysicsStrategy_RPMStaysWithinOperatingRange(t *testing.T) {
	p, store := newTestPhysics(13, true)
	for tick := uint64(0); tick < 10000; tick++ {
		p.Advance(tick, 10*time.Millisecond)
		rpm := store.ReadSnapshot().Engine.RPM
		if rpm < 800 || rpm > 6500 {
			t.Fatalf("tick %d: rpm %v out of [800,6500]", tick, rpm)
		}
	}
}

func TestPhysicsStrategy_OdometerMonotonicNonDecreasing(t *testing.T) {
	p, store := newTestPhysics(17, true)
	last := store.ReadSnapshot().Vehicle.Odometer
	for tick := uint64(0); tick < 10000; tick++ {
		p.Advance(tick, 10*time.Millisecond)
		got := store.ReadSnapshot().Vehicle.Odometer
		if got < last {
			t.Fatalf("tick %d: odometer decreased %v -> %v", tick, last, got)
		}
		last = got
	}
}

func TestPhysicsStrategy_CyclesThroughAllPhases(t *testing.T) {
	p, store := newTestPhysics(19, true)
	seen := map[string]bool{}

	// One full cycle is 180+30+180+30+300+60 = 780s; run two cycles' worth
	// of ticks at 100 Hz so every phase is observed.
	totalTicks := uint64(780 * 100 * 2)
	for tick := uint64(0); tick < totalTicks; tick++ {
		p.Advance(tick, 10*time.Millisecond)
		seen[store.ReadSnapshot().Scenario] = true
	}

	for _, phase := range []string{"city_1", "light_1", "city_2", "light_2", "highway", "parking"} {
		if !seen[phase] {
			t.Errorf("phase %q was never observed over two full cycles", phase)
		}
	}
}

func TestPhysicsStrategy_CoolantTempNeverExceeds95(t *testing.T) {
	p, store := newTestPhysics(23, true)
	for tick := uint64(0); tick < 20000; tick++ {
		p.Advance(tick, 10*time.Millisecond)
		if got := store.ReadSnapshot().Engine.CoolantTemp; got > 95 {
			t.Fatalf("tick %d: coolant temp %v exceeds 95", tick, got)
		}
	}
}

func TestDrivingPhase_NextPhaseCyclesBackToCity1(t *testing.T) {
	if got := nextPhase(phaseParking); got != phaseCity1 {
		t.Errorf("expected parking to cycle back to city_1, got %v", got)
	}
}

func TestPhysicsStrategy_GearMatchesSpeedBin(t *testing.T) {
	p, store := newTestPhysics(29, true)
	for tick := uint64(0); tick < 5000; tick++ {
		p.Advance(tick, 10*time.Millisecond)
		snap := store.ReadSnapshot()

		want := gearForSpeed(snap.Vehicle.Speed)
		if snap.Vehicle.Speed < 0.1 {
			want = 0
		}
		if snap.Vehicle.Gear != want {
			t.Fatalf("tick %d: gear %d does not match expected %d for speed %v",
				tick, snap.Vehicle.Gear, want, snap.Vehicle.Speed)
		}
	}
}

func TestPhysicsStrategy_GearZeroIffBelowSpeedEpsilon(t *testing.T) {
	p, store := newTestPhysics(31, true)
	for tick := uint64(0); tick < 20000; tick++ {
		p.Advance(tick, 10*time.Millisecond)
		snap := store.ReadSnapshot()
		if (snap.Vehicle.Gear == 0) != (snap.Vehicle.Speed < 0.1) {
			t.Fatalf("tick %d: gear==0 (%v) does not match speed<0.1 (%v), speed=%v",
				tick, snap.Vehicle.Gear == 0, snap.Vehicle.Speed < 0.1, snap.Vehicle.Speed)
		}
	}
}
