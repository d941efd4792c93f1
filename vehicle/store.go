package vehicle

import "sync"

// Store is the single source of truth for engine/vehicle state and the DTC
// list. It is safe for concurrent use: writers take the lock for the
// duration of their mutation, readers take it only long enough to copy out
// a Snapshot (spec.md §5 "lock -> memcpy -> unlock").
type Store struct {
	mu    sync.Mutex
	state Snapshot
}

// New creates a store seeded with the given initial state.
func New(initial Snapshot) *Store {
	return &Store{state: initial}
}

// ReadSnapshot returns a torn-free copy of the current state.
func (s *Store) ReadSnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() Snapshot {
	cp := s.state
	cp.DTCs = append([]DTC(nil), s.state.DTCs...)
	return cp
}

// Apply runs fn with exclusive access to the state, letting it mutate in
// place. fn must not retain the pointer beyond the call.
func (s *Store) Apply(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// IncRequestsReceived increments the request counter. Called by the
// dispatcher for every frame it accepts for parsing.
func (s *Store) IncRequestsReceived() {
	s.mu.Lock()
	s.state.Stats.RequestsReceived++
	s.mu.Unlock()
}

// IncResponsesSent increments the successful-transmit counter.
func (s *Store) IncResponsesSent() {
	s.mu.Lock()
	s.state.Stats.ResponsesSent++
	s.mu.Unlock()
}

// IncMessagesSent increments the total-frames-transmitted counter
// (responses plus any out-of-band telemetry frames).
func (s *Store) IncMessagesSent() {
	s.mu.Lock()
	s.state.Stats.MessagesSent++
	s.mu.Unlock()
}

// IncErrors increments the transient-error counter.
func (s *Store) IncErrors() {
	s.mu.Lock()
	s.state.Stats.Errors++
	s.mu.Unlock()
}

// StatsSnapshot returns a copy of the current statistics counters.
func (s *Store) StatsSnapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Stats
}

// ClearDTCs empties the DTC list, clears MIL, and zeroes the DTC count,
// mirroring Mode 04 semantics (spec.md §4.5). Always succeeds, even if the
// list was already empty.
func (s *Store) ClearDTCs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.DTCs = nil
	s.state.Vehicle.MILStatus = false
	s.state.Vehicle.DTCCount = 0
}

// Introspect returns the nested mapping test harnesses use (spec.md §6).
// Each call returns a consistent snapshot; there is no ordering guarantee
// between sibling fields across calls.
func (s *Store) Introspect() map[string]interface{} {
	snap := s.ReadSnapshot()

	codes := make([]string, len(snap.DTCs))
	for i, d := range snap.DTCs {
		codes[i] = d.Code
	}

	return map[string]interface{}{
		"engine": map[string]interface{}{
			"rpm":                 snap.Engine.RPM,
			"coolant_temp":        snap.Engine.CoolantTemp,
			"oil_temp":            snap.Engine.OilTemp,
			"intake_air_temp":     snap.Engine.IntakeAirTemp,
			"engine_load":         snap.Engine.EngineLoad,
			"throttle_position":   snap.Engine.ThrottlePosition,
			"maf_flow":            snap.Engine.MAFFlow,
			"fuel_pressure":       snap.Engine.FuelPressure,
			"timing_advance":      snap.Engine.TimingAdvance,
			"is_running":          snap.Engine.IsRunning,
			"runtime_since_start": snap.Engine.RuntimeSinceStart,
		},
		"vehicle": map[string]interface{}{
			"speed":                 snap.Vehicle.Speed,
			"odometer":              snap.Vehicle.Odometer,
			"fuel_level":            snap.Vehicle.FuelLevel,
			"battery_voltage":       snap.Vehicle.BatteryVoltage,
			"ambient_temperature":   snap.Vehicle.AmbientTemperature,
			"barometric_pressure":   snap.Vehicle.BarometricPressure,
			"gear":                  snap.Vehicle.Gear,
			"speed_limit":           snap.Vehicle.SpeedLimit,
			"mil_status":            snap.Vehicle.MILStatus,
			"dtc_count":             snap.Vehicle.DTCCount,
			"fuel_system_status":    snap.Vehicle.FuelSystemStatus,
			"o2_sensor1_voltage":    snap.Vehicle.O2Sensor1Voltage,
			"o2_sensor2_voltage":    snap.Vehicle.O2Sensor2Voltage,
			"short_fuel_trim_bank1": snap.Vehicle.ShortFuelTrimBank1,
			"long_fuel_trim_bank1":  snap.Vehicle.LongFuelTrimBank1,
		},
		"scenario":   snap.Scenario,
		"dtc_codes":  codes,
	}
}
