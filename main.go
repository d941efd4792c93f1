package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

var version = "dev"

var (
	versionFlag    = flag.Bool("version", false, "Print version info")
	help           = flag.Bool("help", false, "Print help")
	interfaceName  = flag.String("interface", "vcan0", "CAN interface name")
	noDTC          = flag.Bool("no-dtc", false, "Disable random DTC injection")
	logLevelFlag   = flag.String("log-level", "INFO", "Log level: DEBUG, INFO, WARNING, ERROR")
	logFile        = flag.String("log-file", "", "Additionally append log lines to this file")
	model          = flag.String("model", "scenario", "Vehicle model: scenario or physics")
	seed           = flag.Int64("seed", 0, "RNG seed (0 derives from wall-clock time)")
	telemetryRedis = flag.String("telemetry-redis", "", "Redis address to mirror state onto (disabled if empty)")
	dashboardAddr  = flag.String("dashboard-addr", "", "Host:port to serve the diagnostics dashboard on (disabled if empty)")
)

func printVersion() {
	fmt.Printf("obd-ecu-sim %s\n", version)
}

func printHelp() {
	printVersion()
	flag.PrintDefaults()
}

func main() {
	flag.Parse()

	if *versionFlag {
		printVersion()
		os.Exit(0)
	}
	if *help {
		printHelp()
		os.Exit(0)
	}

	level, err := ParseLogLevel(*logLevelFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger, err := NewLeveledLogger(level, *logFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	logger.Info("obd-ecu-sim %s starting on interface %s (model=%s)", version, *interfaceName, *model)

	opts := Options{
		Interface:      *interfaceName,
		NoDTC:          *noDTC,
		Model:          *model,
		Seed:           *seed,
		TelemetryRedis: *telemetryRedis,
		DashboardAddr:  *dashboardAddr,
	}

	sup, err := NewSupervisor(opts, logger)
	if err != nil {
		logger.Error("failed to start: %v", err)
		os.Exit(1)
	}

	sup.Run()
	os.Exit(0)
}
