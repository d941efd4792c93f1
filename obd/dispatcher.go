package obd

import (
	"obd-ecu-sim/canbus"
	"obd-ecu-sim/vehicle"
)

const (
	idFunctionalRequest = 0x7DF
	idPhysicalReqBase   = 0x7E0
	idPhysicalReqMax    = 0x7E7
	idPhysicalRespBase  = 0x7E8

	modeCurrentData  = 0x01
	modeReadDTCs     = 0x03
	modeClearDTCs    = 0x04
	modeVehicleInfo  = 0x09

	subFunctionVIN = 0x02
	subFunctionCal = 0x04

	nrcServiceNotSupported    = 0x11
	nrcSubFunctionNotSupported = 0x12
)

// Logger is the subset of the application logger the dispatcher needs.
type Logger interface {
	Printf(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Sender is anything a response can be transmitted through; satisfied by
// *canbus.Channel.
type Sender interface {
	Send(canbus.Frame) error
}

// Dispatcher classifies incoming CAN frames, parses Mode+PID, invokes the
// codec against a state snapshot, and sends responses (including negative
// responses). It is the only component that both reads and writes the
// state store: mode 0x04 clears DTCs through the same Store API the
// simulation engine uses.
type Dispatcher struct {
	store  *vehicle.Store
	sender Sender
	logger Logger
}

// New creates a Dispatcher bound to a store and a frame sender.
func New(store *vehicle.Store, sender Sender, logger Logger) *Dispatcher {
	return &Dispatcher{store: store, sender: sender, logger: logger}
}

// HandleFrame processes one inbound CAN frame. Frames addressed to neither
// the functional nor the physical request IDs are ignored silently, per
// spec.md §4.5.
func (d *Dispatcher) HandleFrame(frame canbus.Frame) {
	if !isRequestID(frame.ID) {
		return
	}
	if frame.Length < 3 {
		// Malformed: shorter than the minimum single-frame OBD request.
		return
	}

	pci := frame.Data[0]
	payloadLen := pci & 0x0F
	if payloadLen == 0 || payloadLen > 7 {
		return
	}

	d.store.IncRequestsReceived()

	mode := frame.Data[1]
	respID := responseID(frame.ID)

	var payload []byte
	switch mode {
	case modeCurrentData:
		payload = d.handleCurrentData(frame.Data[2])
	case modeReadDTCs:
		payload = d.handleReadDTCs()
	case modeClearDTCs:
		payload = d.handleClearDTCs()
	case modeVehicleInfo:
		payload = d.handleVehicleInfo(frame.Data[2])
	default:
		payload = negativeResponse(mode, nrcServiceNotSupported)
	}

	d.send(respID, payload)
}

func isRequestID(id uint32) bool {
	return id == idFunctionalRequest || (id >= idPhysicalReqBase && id <= idPhysicalReqMax)
}

func responseID(requestID uint32) uint32 {
	if requestID == idFunctionalRequest {
		return idPhysicalRespBase
	}
	return requestID + 8
}

func (d *Dispatcher) handleCurrentData(pidByte byte) []byte {
	pid := PID(pidByte)

	if isSupportedPIDsQuery(pid) {
		mask := SupportedPIDMask(pid)
		maskBytes := EncodeSupportedPIDMask(mask)
		return []byte{0x41, byte(pid), maskBytes[0], maskBytes[1], maskBytes[2], maskBytes[3]}
	}

	if !IsSupported(pid) {
		return negativeResponse(modeCurrentData, nrcSubFunctionNotSupported)
	}

	snap := d.store.ReadSnapshot()
	encoded := encodePID(pid, snap)
	if encoded == nil {
		// Should not happen once a PID is marked supported; treat as an
		// internal encoder failure (spec.md §7 item 5).
		d.logger.Error("encoder returned nil for supported PID 0x%02X", pidByte)
		return negativeResponse(modeCurrentData, nrcSubFunctionNotSupported)
	}

	payload := append([]byte{0x41, byte(pid)}, encoded...)
	return payload
}

func isSupportedPIDsQuery(pid PID) bool {
	return pid%0x20 == 0
}

// encodePID renders the encoded bytes (not including the 0x41/PID header)
// for a supported PID, reading from the given snapshot. Dispatch is an
// exhaustive switch over the closed PID set (Design Notes §9), with a nil
// return reserved for the "should not happen" internal-failure path.
func encodePID(pid PID, snap vehicle.Snapshot) []byte {
	switch pid {
	case PIDEngineLoad:
		return []byte{EncodeEngineLoad(snap.Engine.EngineLoad)}
	case PIDCoolantTemp:
		return []byte{EncodeTemp(snap.Engine.CoolantTemp)}
	case PIDShortFuelTrimB1:
		return []byte{EncodeFuelTrim(snap.Vehicle.ShortFuelTrimBank1)}
	case PIDLongFuelTrimB1:
		return []byte{EncodeFuelTrim(snap.Vehicle.LongFuelTrimBank1)}
	case PIDFuelPressure:
		return []byte{EncodeFuelPressure(snap.Engine.FuelPressure)}
	case PIDRPM:
		a, b := EncodeRPM(snap.Engine.RPM)
		return []byte{a, b}
	case PIDSpeed:
		return []byte{EncodeSpeed(snap.Vehicle.Speed)}
	case PIDTimingAdvance:
		return []byte{EncodeTimingAdvance(snap.Engine.TimingAdvance)}
	case PIDIntakeAirTemp:
		return []byte{EncodeTemp(snap.Engine.IntakeAirTemp)}
	case PIDMAFFlow:
		a, b := EncodeMAF(snap.Engine.MAFFlow)
		return []byte{a, b}
	case PIDThrottlePosition:
		return []byte{EncodeThrottle(snap.Engine.ThrottlePosition)}
	case PIDO2Sensor1Voltage:
		return []byte{EncodeO2Voltage(snap.Vehicle.O2Sensor1Voltage), EncodeFuelTrim(snap.Vehicle.ShortFuelTrimBank1)}
	case PIDRuntimeSinceStart:
		a, b := EncodeU16(float64(snap.Engine.RuntimeSinceStart))
		return []byte{a, b}
	case PIDDistanceWithMIL:
		// No data-model field tracks distance traveled with MIL on;
		// report a constant 0 rather than fabricate one.
		a, b := EncodeU16(0)
		return []byte{a, b}
	case PIDFuelLevel:
		return []byte{EncodeEngineLoad(snap.Vehicle.FuelLevel)}
	case PIDDistanceSinceClear:
		a, b := EncodeU16(snap.Vehicle.Odometer)
		return []byte{a, b}
	case PIDBaroPressure:
		return []byte{EncodeByteDirect(snap.Vehicle.BarometricPressure)}
	case PIDModuleVoltage:
		a, b := EncodeModuleVoltage(snap.Vehicle.BatteryVoltage)
		return []byte{a, b}
	case PIDAmbientTemp:
		return []byte{EncodeTemp(snap.Vehicle.AmbientTemperature)}
	case PIDCurrentGear:
		return []byte{snap.Vehicle.Gear}
	case PIDSpeedLimit:
		return []byte{EncodeByteDirect(snap.Vehicle.SpeedLimit)}
	default:
		return nil
	}
}

func (d *Dispatcher) handleReadDTCs() []byte {
	snap := d.store.ReadSnapshot()

	var confirmed []vehicle.DTC
	for _, dtc := range snap.DTCs {
		if dtc.Status == vehicle.DTCConfirmed {
			confirmed = append(confirmed, dtc)
		}
	}

	payload := []byte{0x43, byte(len(confirmed))}
	for _, dtc := range confirmed {
		a, b := EncodeDTC(dtc.Code)
		payload = append(payload, a, b)
	}
	return payload
}

func (d *Dispatcher) handleClearDTCs() []byte {
	d.store.ClearDTCs()
	return []byte{0x44}
}

func (d *Dispatcher) handleVehicleInfo(subFunction byte) []byte {
	snap := d.store.ReadSnapshot()

	switch subFunction {
	case subFunctionVIN:
		payload := []byte{0x49, 0x02, 0x01}
		payload = append(payload, []byte(snap.VIN)...)
		return payload
	case subFunctionCal:
		payload := []byte{0x49, 0x04, 0x01}
		payload = append(payload, []byte(snap.CalibrationID)...)
		return payload
	default:
		return negativeResponse(modeVehicleInfo, nrcSubFunctionNotSupported)
	}
}

func negativeResponse(mode byte, nrc byte) []byte {
	return []byte{0x7F, mode, nrc}
}

// send frames the payload per spec.md §4.5: full = [len(payload),
// ...payload], truncated to 8 bytes, right-padded with 0x00 to exactly 8.
func (d *Dispatcher) send(id uint32, payload []byte) {
	full := make([]byte, 0, 1+len(payload))
	full = append(full, byte(len(payload)))
	full = append(full, payload...)

	var data [8]byte
	n := copy(data[:], full)
	length := uint8(8)
	_ = n // padding with zero bytes is the default value, nothing further to do

	frame := canbus.Frame{ID: id, Data: data, Length: length}
	if err := d.sender.Send(frame); err != nil {
		d.store.IncErrors()
		d.logger.Error("failed to send OBD response on 0x%03X: %v", id, err)
		return
	}
	d.store.IncResponsesSent()
	d.store.IncMessagesSent()
}
