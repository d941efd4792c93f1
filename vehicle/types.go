// Package vehicle holds the aggregate ECU/vehicle state — the single
// source of truth mutated by the simulation engine and read by the OBD
// dispatcher. It mediates concurrent access the way the teacher's ECU
// implementations guard their state: one mutex, short critical sections,
// plain getters/snapshots outside the lock.
package vehicle

import "time"

// DTCStatus is the lifecycle stage of a diagnostic trouble code.
type DTCStatus int

const (
	DTCPending DTCStatus = iota
	DTCConfirmed
	DTCPermanent
)

func (s DTCStatus) String() string {
	switch s {
	case DTCPending:
		return "pending"
	case DTCConfirmed:
		return "confirmed"
	case DTCPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// DTC is a single diagnostic trouble code entry.
type DTC struct {
	Code            string
	Description     string
	Status          DTCStatus
	FirstDetected   time.Time
	LastDetected    time.Time
	OccurrenceCount uint32
}

// Engine holds engine-side scalar telemetry (spec.md §3 "Engine state").
type Engine struct {
	RPM               float64
	CoolantTemp       float64
	OilTemp           float64
	IntakeAirTemp     float64
	EngineLoad        float64
	ThrottlePosition  float64
	MAFFlow           float64
	FuelPressure      float64
	TimingAdvance     float64
	IsRunning         bool
	RuntimeSinceStart uint16

	// RuntimeCarrySeconds is the fractional remainder below one whole
	// second of engine runtime, carried tick to tick so RuntimeSinceStart
	// (PID 0x1F, whole seconds) advances in real time despite being
	// updated on a 10ms cadence. Not part of the served data model; never
	// read by the codec or Introspect.
	RuntimeCarrySeconds float64
}

// Vehicle holds vehicle-side scalar telemetry (spec.md §3 "Vehicle state").
type Vehicle struct {
	Speed              float64
	Odometer           float64
	FuelLevel          float64
	BatteryVoltage     float64
	AmbientTemperature float64
	BarometricPressure float64
	Gear               uint8
	SpeedLimit         float64
	MILStatus          bool
	DTCCount           uint8
	FuelSystemStatus   uint8
	O2Sensor1Voltage   float64
	O2Sensor2Voltage   float64
	ShortFuelTrimBank1 float64
	LongFuelTrimBank1  float64
}

// Stats are the counters the supervisor reports on exit.
type Stats struct {
	RequestsReceived uint64
	ResponsesSent    uint64
	MessagesSent     uint64
	Errors           uint64
}

// Snapshot is an atomic, torn-free copy of the aggregate state, safe to
// read and encode without holding the store's lock.
type Snapshot struct {
	Engine       Engine
	Vehicle      Vehicle
	DTCs         []DTC
	VIN          string
	CalibrationID string
	Scenario     string
	Stats        Stats
}

// ConfirmedDTCCount returns the number of DTCs in the Confirmed state.
func (s Snapshot) ConfirmedDTCCount() int {
	n := 0
	for _, d := range s.DTCs {
		if d.Status == DTCConfirmed {
			n++
		}
	}
	return n
}

// NewDefault returns the calibrated default state a fresh ECU boots with.
func NewDefault(vin, calibrationID string) Snapshot {
	return Snapshot{
		Engine: Engine{
			RPM:               800,
			CoolantTemp:       20,
			OilTemp:           25,
			IntakeAirTemp:     20,
			EngineLoad:        15,
			ThrottlePosition:  0,
			MAFFlow:           2.5,
			FuelPressure:      350, // kPa, ~3.5 bar
			TimingAdvance:     15,
			IsRunning:         true,
			RuntimeSinceStart: 0,
		},
		Vehicle: Vehicle{
			Speed:              0,
			Odometer:           12345.6,
			FuelLevel:          75,
			BatteryVoltage:     14.2,
			AmbientTemperature: 20,
			BarometricPressure: 101,
			Gear:               0,
			SpeedLimit:         50,
			MILStatus:          false,
			DTCCount:           0,
			FuelSystemStatus:   2, // closed loop
			O2Sensor1Voltage:   0.45,
			O2Sensor2Voltage:   0.47,
			ShortFuelTrimBank1: 0,
			LongFuelTrimBank1:  0,
		},
		DTCs:          nil,
		VIN:           vin,
		CalibrationID: calibrationID,
		Scenario:      "idle",
	}
}
