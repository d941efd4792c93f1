package main

import (
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"obd-ecu-sim/canbus"
	"obd-ecu-sim/obd"
	"obd-ecu-sim/simulate"
	"obd-ecu-sim/vehicle"
)

const (
	tickInterval   = 10 * time.Millisecond // 100 Hz, spec.md §4.4
	canRecvTimeout = 100 * time.Millisecond // spec.md §5
	joinTimeout    = 2 * time.Second        // spec.md §5 "Cancellation"
)

const (
	defaultVIN           = "1HGCM82633A004352"
	defaultCalibrationID = "OBDSIM0001234567"
)

// Options bundles the supervisor's calibrated startup parameters, one per
// supervisor-facing CLI flag in SPEC_FULL.md §6; the logging flags are
// consumed by main before the supervisor is built.
type Options struct {
	Interface      string
	NoDTC          bool
	Model          string
	Seed           int64
	TelemetryRedis string
	DashboardAddr  string
}

// Supervisor owns the lifecycle spec.md §5/§6 and SPEC_FULL.md §4.6
// describe: it builds the state store and CAN channel, spawns the
// physics/scenario thread and the CAN receive thread, installs signal-
// driven shutdown, and reports final statistics. Modeled on the teacher's
// EngineApp: a single struct wiring every component, constructed once at
// startup and torn down once at shutdown.
type Supervisor struct {
	opts     Options
	logger   *LeveledLogger
	store    *vehicle.Store
	channel  *canbus.Channel
	strategy simulate.Strategy
	dispatch *obd.Dispatcher

	telemetry *TelemetryPublisher
	dashboard *Dashboard

	running atomic.Bool
	wg      sync.WaitGroup

	startedAt time.Time
}

// NewSupervisor constructs every component up front. A failure here is a
// startup failure (spec.md §7 item 4): the caller should exit 1.
func NewSupervisor(opts Options, logger *LeveledLogger) (*Supervisor, error) {
	kind, err := simulate.ParseKind(opts.Model)
	if err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	store := vehicle.New(vehicle.NewDefault(defaultVIN, defaultCalibrationID))

	channel, err := canbus.Open(opts.Interface, logger)
	if err != nil {
		return nil, err
	}

	strategy := simulate.New(kind)
	if err := strategy.Initialize(simulate.Config{Store: store, RNG: rng, NoDTC: opts.NoDTC}); err != nil {
		channel.Close()
		return nil, err
	}

	sup := &Supervisor{
		opts:     opts,
		logger:   logger,
		store:    store,
		channel:  channel,
		strategy: strategy,
		dispatch: obd.New(store, channel, logger),
	}

	if opts.TelemetryRedis != "" {
		sup.telemetry = NewTelemetryPublisher(opts.TelemetryRedis, store, logger)
	}
	if opts.DashboardAddr != "" {
		sup.dashboard = NewDashboard(opts.DashboardAddr, store, logger)
	}

	return sup, nil
}

// Run spawns both loops plus any enabled domain-stack components, blocks
// until SIGINT/SIGTERM, then shuts everything down. Returns once shutdown
// is complete.
func (s *Supervisor) Run() {
	s.startedAt = time.Now()
	s.running.Store(true)

	s.wg.Add(2)
	go s.physicsLoop()
	go s.canLoop()

	if s.telemetry != nil {
		s.wg.Add(1)
		go s.telemetryLoop()
	}
	if s.dashboard != nil {
		go s.dashboard.Run()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	s.logger.Info("shutdown signal received")

	s.shutdown()
}

// physicsLoop is C4's cadence: measure elapsed time per tick, sleep the
// remainder of the 10ms budget (spec.md §4.4/§5). The sole mutator of the
// state store besides mode-04 clears.
func (s *Supervisor) physicsLoop() {
	defer s.wg.Done()

	var tick uint64
	last := time.Now()

	for s.running.Load() {
		tickStart := time.Now()
		dt := tickStart.Sub(last)
		last = tickStart

		s.strategy.Advance(tick, dt)
		tick++

		elapsed := time.Since(tickStart)
		if remaining := tickInterval - elapsed; remaining > 0 {
			time.Sleep(remaining)
		}
	}

	s.strategy.Cleanup()
}

// canLoop is C5's cadence: block on Recv bounded by a timeout, dispatch
// whatever arrives, poll running between waits (spec.md §5 "Suspension
// points").
func (s *Supervisor) canLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		frame, ok := s.channel.Recv(canRecvTimeout)
		if !ok {
			continue
		}
		s.dispatch.HandleFrame(frame)
	}
}

// telemetryLoop drives C7 at its own fixed cadence, independent of the
// physics tick rate.
func (s *Supervisor) telemetryLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(telemetryInterval)
	defer ticker.Stop()

	for s.running.Load() {
		<-ticker.C
		if !s.running.Load() {
			return
		}
		s.telemetry.PublishOnce()
	}
}

// shutdown flips the running flag, joins both loops with a bounded
// timeout, closes the channel, and logs final statistics (spec.md §5/§6).
func (s *Supervisor) shutdown() {
	s.running.Store(false)

	joined := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(joinTimeout):
		s.logger.Warn("loops did not join within %s, proceeding with shutdown", joinTimeout)
	}

	if s.dashboard != nil {
		s.dashboard.Shutdown()
	}
	if s.telemetry != nil {
		s.telemetry.Close()
	}
	if err := s.channel.Close(); err != nil {
		s.logger.Warn("error closing CAN channel: %v", err)
	}

	stats := s.store.StatsSnapshot()
	uptime := time.Since(s.startedAt)
	s.logger.Info(
		"final stats: uptime=%s requests_received=%d responses_sent=%d messages_sent=%d errors=%d",
		uptime.Round(time.Second), stats.RequestsReceived, stats.ResponsesSent, stats.MessagesSent, stats.Errors,
	)
}
