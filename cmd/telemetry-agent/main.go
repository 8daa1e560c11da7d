// Package main is the entry point for the Vitalis telemetry agent.
// It loads configuration, detects platform capabilities, registers the host
// and process sources, and publishes periodic samples to an MQTT broker.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vitalis-app/telemetry/internal/buffer"
	"github.com/vitalis-app/telemetry/internal/collector"
	"github.com/vitalis-app/telemetry/internal/config"
	"github.com/vitalis-app/telemetry/internal/platform"
	"github.com/vitalis-app/telemetry/internal/scheduler"
	"github.com/vitalis-app/telemetry/internal/sender"
	"github.com/vitalis-app/telemetry/internal/service"
)

var (
	// version is set at build time via -ldflags.
	version = "dev"

	configPath  = flag.String("config", "", "Path to configuration file (default: search standard locations)")
	showVersion = flag.Bool("version", false, "Show version and exit")
	pid         = flag.Int64("pid", 0, "Process to monitor (default: the agent itself)")
	writeConfig = flag.String("write-config", "", "Write the effective configuration to this path and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("vitalis-telemetry %s\n", version)
		os.Exit(0)
	}

	cliPID, err := config.ToPID(*pid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -pid: %v\n", err)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.LoadLayered(config.CLIOverrides{PID: cliPID}, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *writeConfig != "" {
		if err := config.WriteConfig(cfg, *writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", *writeConfig)
		os.Exit(0)
	}

	// Initialize logger
	logger := initLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting Vitalis telemetry agent",
		zap.String("version", version),
		zap.String("broker", cfg.Broker.URL))

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Check if running as Windows service
	if service.IsService() {
		logger.Info("Running as Windows service")
		runner := service.New(logger, func(ctx context.Context) {
			runAgent(ctx, cfg, logger)
		})
		if err := runner.Run(); err != nil {
			logger.Fatal("Service failed", zap.Error(err))
		}
		return
	}

	// Running as standalone foreground process
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received signal, shutting down",
			zap.String("signal", sig.String()))
		cancel()
	}()

	runAgent(ctx, cfg, logger)
	logger.Info("Agent stopped")
}

// runAgent initializes all components and starts the sampling loop.
// It blocks until the context is cancelled.
func runAgent(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	caps := platform.Detect(ctx)
	logger.Info("Platform detected",
		zap.String("os", caps.OS),
		zap.Bool("host_telemetry", caps.HostTelemetry),
		zap.Bool("unix_sockets", caps.UnixSockets),
		zap.String("descriptors", caps.DescriptorSource))

	proc, err := newProcessCollector(ctx, cfg.Collection.PID, caps)
	if err != nil {
		logger.Fatal("Failed to bind process", zap.Int32("pid", cfg.Collection.PID), zap.Error(err))
	}

	// Register sources; unavailable ones are skipped by the registry
	registry := collector.NewRegistry(logger)
	registry.Register(collector.NewHostStatsSource(collector.NewSystemCollector(), caps))
	registry.Register(collector.NewProcessStatsSource(proc))
	registry.Register(collector.NewProcessInfoSource(proc))

	// Prime every source once so startup reports what this host cannot
	// provide, and the first published CPU percent has a baseline.
	primeCtx, primeCancel := context.WithTimeout(ctx, cfg.Collection.Timeout.Duration)
	if _, err := registry.CollectAll(primeCtx); err != nil {
		logger.Warn("Some sources failed their first sample", zap.Error(err))
	}
	primeCancel()

	// Initialize file-based buffer
	buf, err := buffer.New(cfg.Buffer.Dir, cfg.Buffer.MaxSizeMB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize buffer", zap.Error(err))
	}
	if pending := buf.Count(); pending > 0 {
		logger.Info("Buffered messages from a previous run", zap.Int("count", pending))
	}

	snd := sender.New(cfg, logger, buf)
	defer snd.Close()

	sched := scheduler.New(registry, cfg, logger)
	sched.OnMessage(snd.Enqueue)
	snd.OnIntervalRequest(sched.SetInterval)

	if err := snd.Connect(); err != nil {
		logger.Error("Broker connection failed, buffering until reconnect", zap.Error(err))
	}

	logger.Info("Agent running",
		zap.Int32("pid", proc.PID()),
		zap.String("session", sched.Session()),
		zap.Duration("interval", cfg.Collection.Interval.Duration),
		zap.Duration("info_interval", cfg.Collection.InfoInterval.Duration))

	// Publishing runs on its own goroutine; retries do not block sampling.
	sendDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		snd.Run(ctx)
	}()

	sched.Start(ctx)
	<-sendDone
}

func newProcessCollector(ctx context.Context, pid int32, caps platform.Capabilities) (*collector.ProcessCollector, error) {
	if pid == 0 {
		return collector.NewSelfCollector(ctx, caps)
	}
	return collector.NewProcessCollector(ctx, pid, caps)
}

// initLogger creates a zap logger based on the configuration.
// It outputs to both console (human-readable) and optionally a JSON log file.
func initLogger(cfg *config.Config) *zap.Logger {
	var level zapcore.Level
	switch cfg.Logging.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	cores := []zapcore.Core{consoleCore}

	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err == nil {
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(file),
				level,
			))
		}
	}

	return zap.New(zapcore.NewTee(cores...))
}
