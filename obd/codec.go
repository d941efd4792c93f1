// Package obd implements the OBD-II (SAE J1979) request/response protocol
// layer on top of single-frame ISO 15765-2 CAN transport: PID encoding,
// DTC encoding, and the mode dispatcher.
//
// Encoders are pure and stateless, the way the teacher's ecu package keeps
// fault-code mapping free of I/O (see ecu/faults.go, ecu/types.go in the
// reference ECU implementation this package is adapted from).
package obd

import "math"

// PID identifies a Mode 01 "current data" parameter.
type PID byte

const (
	PIDEngineLoad        PID = 0x04
	PIDCoolantTemp       PID = 0x05
	PIDShortFuelTrimB1   PID = 0x06
	PIDLongFuelTrimB1    PID = 0x07
	PIDFuelPressure      PID = 0x0A
	PIDRPM               PID = 0x0C
	PIDSpeed             PID = 0x0D
	PIDTimingAdvance     PID = 0x0E
	PIDIntakeAirTemp     PID = 0x0F
	PIDMAFFlow           PID = 0x10
	PIDThrottlePosition  PID = 0x11
	PIDO2Sensor1Voltage  PID = 0x14
	PIDRuntimeSinceStart PID = 0x1F
	PIDDistanceWithMIL   PID = 0x21
	PIDFuelLevel         PID = 0x2F
	PIDDistanceSinceClear PID = 0x31
	PIDBaroPressure      PID = 0x33
	PIDModuleVoltage     PID = 0x42
	PIDAmbientTemp       PID = 0x46

	// Custom PIDs recognized only by this ECU, outside the J1979 catalog.
	PIDCurrentGear  PID = 0xA5
	PIDSpeedLimit   PID = 0xA8

	PIDSupportedPIDs00 PID = 0x00
	PIDSupportedPIDs20 PID = 0x20
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EncodeEngineLoad maps 0-100% onto one byte: A*100/255.
func EncodeEngineLoad(pct float64) byte {
	pct = clamp(pct, 0, 100)
	return byte(math.Round(pct * 255 / 100))
}

// DecodeEngineLoad is the inverse of EncodeEngineLoad.
func DecodeEngineLoad(a byte) float64 {
	return float64(a) * 100 / 255
}

// EncodeTemp maps -40..+215 degC onto one byte: A-40.
func EncodeTemp(celsius float64) byte {
	celsius = clamp(celsius, -40, 215)
	return byte(celsius + 40)
}

// DecodeTemp is the inverse of EncodeTemp.
func DecodeTemp(a byte) float64 {
	return float64(a) - 40
}

// EncodeFuelTrim maps -100..+99.22% onto one byte: (A-128)*100/128.
func EncodeFuelTrim(pct float64) byte {
	pct = clamp(pct, -100, 99.2187500)
	return byte(math.Round(pct*128/100 + 128))
}

// DecodeFuelTrim is the inverse of EncodeFuelTrim.
func DecodeFuelTrim(a byte) float64 {
	return (float64(a) - 128) * 100 / 128
}

// EncodeFuelPressure maps 0-765 kPa onto one byte: A*3 kPa (J1979).
//
// The Python reference simulator this was distilled from instead divides
// bar by 3 and scales to 100 (~116 at 3.5 bar); that disagrees with J1979
// and is not reproduced here. See SPEC_FULL.md Open Questions.
func EncodeFuelPressure(kPa float64) byte {
	kPa = clamp(kPa, 0, 765)
	return byte(math.Round(kPa / 3))
}

// DecodeFuelPressure is the inverse of EncodeFuelPressure, in kPa.
func DecodeFuelPressure(a byte) float64 {
	return float64(a) * 3
}

// EncodeRPM maps 0-16383.75 rpm onto two bytes: (256A+B)/4.
func EncodeRPM(rpm float64) (a, b byte) {
	rpm = clamp(rpm, 0, 16383.75)
	raw := uint16(math.Round(rpm * 4))
	return byte(raw >> 8), byte(raw)
}

// DecodeRPM is the inverse of EncodeRPM.
func DecodeRPM(a, b byte) float64 {
	return float64(uint16(a)<<8|uint16(b)) / 4
}

// EncodeSpeed maps 0-255 km/h onto one byte: A.
func EncodeSpeed(kmh float64) byte {
	kmh = clamp(kmh, 0, 255)
	return byte(math.Round(kmh))
}

// DecodeSpeed is the inverse of EncodeSpeed.
func DecodeSpeed(a byte) float64 {
	return float64(a)
}

// EncodeTimingAdvance maps -64..+63.5 deg onto one byte: A/2 - 64.
func EncodeTimingAdvance(deg float64) byte {
	deg = clamp(deg, -64, 63.5)
	return byte(math.Round((deg + 64) * 2))
}

// DecodeTimingAdvance is the inverse of EncodeTimingAdvance.
func DecodeTimingAdvance(a byte) float64 {
	return float64(a)/2 - 64
}

// EncodeMAF maps 0-655.35 g/s onto two bytes: (256A+B)/100.
func EncodeMAF(gs float64) (a, b byte) {
	gs = clamp(gs, 0, 655.35)
	raw := uint16(math.Round(gs * 100))
	return byte(raw >> 8), byte(raw)
}

// DecodeMAF is the inverse of EncodeMAF.
func DecodeMAF(a, b byte) float64 {
	return float64(uint16(a)<<8|uint16(b)) / 100
}

// EncodeThrottle maps 0-100% onto one byte: A*100/255.
func EncodeThrottle(pct float64) byte {
	return EncodeEngineLoad(pct)
}

// DecodeThrottle is the inverse of EncodeThrottle.
func DecodeThrottle(a byte) float64 {
	return DecodeEngineLoad(a)
}

// EncodeO2Voltage maps 0-1.275V onto one byte: A/200. The second payload
// byte carries short-term fuel trim, reusing EncodeFuelTrim.
func EncodeO2Voltage(volts float64) byte {
	volts = clamp(volts, 0, 1.275)
	return byte(math.Round(volts * 200))
}

// DecodeO2Voltage is the inverse of EncodeO2Voltage.
func DecodeO2Voltage(a byte) float64 {
	return float64(a) / 200
}

// EncodeU16 maps a non-negative quantity with no fractional scaling onto
// two bytes: 256A+B. Used for runtime-since-start, distance counters.
func EncodeU16(v float64) (a, b byte) {
	v = clamp(v, 0, 65535)
	raw := uint16(math.Round(v))
	return byte(raw >> 8), byte(raw)
}

// DecodeU16 is the inverse of EncodeU16.
func DecodeU16(a, b byte) float64 {
	return float64(uint16(a)<<8 | uint16(b))
}

// EncodeByteDirect maps a 0-255 quantity directly onto one byte: A.
func EncodeByteDirect(v float64) byte {
	v = clamp(v, 0, 255)
	return byte(math.Round(v))
}

// DecodeByteDirect is the inverse of EncodeByteDirect.
func DecodeByteDirect(a byte) float64 {
	return float64(a)
}

// EncodeModuleVoltage maps 0-65.535V onto two bytes: (256A+B)/1000.
func EncodeModuleVoltage(volts float64) (a, b byte) {
	volts = clamp(volts, 0, 65.535)
	raw := uint16(math.Round(volts * 1000))
	return byte(raw >> 8), byte(raw)
}

// DecodeModuleVoltage is the inverse of EncodeModuleVoltage.
func DecodeModuleVoltage(a, b byte) float64 {
	return float64(uint16(a)<<8|uint16(b)) / 1000
}
