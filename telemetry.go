package main

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"obd-ecu-sim/vehicle"
)

const (
	telemetryInterval = 500 * time.Millisecond
	telemetryHashKey  = "obd-ecu"
	telemetryChannel  = "obd-ecu:update"
)

// TelemetryPublisher is C7 (SPEC_FULL.md §4.7): a best-effort, fire-and-
// forget mirror of state-store snapshots onto Redis, grounded on the
// teacher's IPCTx (ipc_tx.go's SendStatus1..5: pipelined HSET + PUBLISH).
// It never sits on the request/response critical path — a Redis outage is
// logged and retried on the next tick.
type TelemetryPublisher struct {
	store  *vehicle.Store
	redis  *redis.Client
	logger *LeveledLogger
	ctx    context.Context
}

// NewTelemetryPublisher dials addr lazily — go-redis connects on first
// use, so a down Redis at startup does not fail the supervisor.
func NewTelemetryPublisher(addr string, store *vehicle.Store, logger *LeveledLogger) *TelemetryPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	return &TelemetryPublisher{
		store:  store,
		redis:  client,
		logger: logger,
		ctx:    context.Background(),
	}
}

// PublishOnce reads a snapshot, HSETs its flattened fields into the
// obd-ecu hash, and publishes a change notification. Failures are logged
// at WARN and otherwise ignored, matching the teacher's "log and continue"
// IPC error handling.
func (t *TelemetryPublisher) PublishOnce() {
	snap := t.store.ReadSnapshot()

	fields := map[string]interface{}{
		"engine:rpm":                 snap.Engine.RPM,
		"engine:coolant_temp":        snap.Engine.CoolantTemp,
		"engine:oil_temp":            snap.Engine.OilTemp,
		"engine:intake_air_temp":     snap.Engine.IntakeAirTemp,
		"engine:load":                snap.Engine.EngineLoad,
		"engine:throttle_position":   snap.Engine.ThrottlePosition,
		"engine:maf_flow":            snap.Engine.MAFFlow,
		"engine:fuel_pressure":       snap.Engine.FuelPressure,
		"engine:timing_advance":      snap.Engine.TimingAdvance,
		"engine:is_running":          snap.Engine.IsRunning,
		"engine:runtime_since_start": snap.Engine.RuntimeSinceStart,
		"vehicle:speed":              snap.Vehicle.Speed,
		"vehicle:odometer":           snap.Vehicle.Odometer,
		"vehicle:fuel_level":         snap.Vehicle.FuelLevel,
		"vehicle:battery_voltage":    snap.Vehicle.BatteryVoltage,
		"vehicle:gear":               snap.Vehicle.Gear,
		"vehicle:speed_limit":        snap.Vehicle.SpeedLimit,
		"vehicle:mil_status":         snap.Vehicle.MILStatus,
		"vehicle:dtc_count":          snap.Vehicle.DTCCount,
		"scenario":                   snap.Scenario,
	}

	pipe := t.redis.Pipeline()
	pipe.HSet(t.ctx, telemetryHashKey, fields)
	pipe.Publish(t.ctx, telemetryChannel, "")

	if _, err := pipe.Exec(t.ctx); err != nil {
		t.logger.Warn("telemetry publish to %s failed: %v", telemetryHashKey, err)
	}
}

// Close releases the Redis client.
func (t *TelemetryPublisher) Close() {
	if err := t.redis.Close(); err != nil {
		t.logger.Warn("error closing telemetry redis client: %v", err)
	}
}
