package obd

// supportedPIDs is the closed set of Mode 01 PIDs this ECU answers, used
// both to build the supported-PID bitmasks (PID 0x00/0x20/...) and to
// reject anything else with a negative response. Modeled as a lookup table
// rather than a switch so the supported-PID mask and the dispatcher share a
// single source of truth (see Design Notes §9 "closed tagged set").
var supportedPIDs = map[PID]bool{
	PIDEngineLoad:         true,
	PIDCoolantTemp:        true,
	PIDShortFuelTrimB1:    true,
	PIDLongFuelTrimB1:     true,
	PIDFuelPressure:       true,
	PIDRPM:                true,
	PIDSpeed:              true,
	PIDTimingAdvance:      true,
	PIDIntakeAirTemp:      true,
	PIDMAFFlow:            true,
	PIDThrottlePosition:   true,
	PIDO2Sensor1Voltage:   true,
	PIDRuntimeSinceStart:  true,
	PIDDistanceWithMIL:    true,
	PIDFuelLevel:          true,
	PIDDistanceSinceClear: true,
	PIDBaroPressure:       true,
	PIDModuleVoltage:      true,
	PIDAmbientTemp:        true,
	PIDCurrentGear:        true,
	PIDSpeedLimit:         true,
}

// IsSupported reports whether Mode 01 recognizes the given PID.
func IsSupported(pid PID) bool {
	return supportedPIDs[pid]
}

// SupportedPIDMask computes the 32-bit mask returned for the "supported
// PIDs" query whose base is the given PID (0x00, 0x20, 0x40, ...). Bit
// 31-(pid-base-1) is set iff PID pid is supported. Bit 0 (the last bit of
// the window) is set iff any PID in the next window is supported, per
// J1979 cross-window continuation.
func SupportedPIDMask(base PID) uint32 {
	var mask uint32
	for offset := 1; offset <= 32; offset++ {
		pid := PID(int(base) + offset)
		if offset == 32 {
			if nextWindowHasSupportedPID(base + 32) {
				mask |= 1
			}
			continue
		}
		if IsSupported(pid) {
			mask |= 1 << uint(32-offset)
		}
	}
	return mask
}

func nextWindowHasSupportedPID(base PID) bool {
	for offset := 1; offset <= 31; offset++ {
		if IsSupported(PID(int(base) + offset)) {
			return true
		}
	}
	return false
}

// EncodeSupportedPIDMask packs a mask into its 4 big-endian response bytes.
func EncodeSupportedPIDMask(mask uint32) [4]byte {
	return [4]byte{
		byte(mask >> 24),
		byte(mask >> 16),
		byte(mask >> 8),
		byte(mask),
	}
}
