//go:build windows

// Package service runs the telemetry agent under the Windows Service Control
// Manager. From a terminal the agent runs in the foreground instead.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/windows/svc"
)

const (
	serviceName = "VitalisTelemetry"

	// stopTimeout bounds how long a stop request waits for the agent to
	// publish its last samples and disconnect.
	stopTimeout = 10 * time.Second
)

// Runner drives the agent from the SCM control loop.
type Runner struct {
	logger *zap.Logger
	run    func(ctx context.Context)
}

// New wraps run, which must block until its context is cancelled.
func New(logger *zap.Logger, run func(ctx context.Context)) *Runner {
	return &Runner{logger: logger, run: run}
}

// IsService reports whether the process was started by the SCM.
func IsService() bool {
	isService, err := svc.IsWindowsService()
	return err == nil && isService
}

// Run enters the SCM control loop and returns once the service stops.
func (r *Runner) Run() error {
	return svc.Run(serviceName, r)
}

// Execute implements svc.Handler.
func (r *Runner) Execute(_ []string, req <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	changes <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.run(ctx)
	}()

	changes <- svc.Status{
		State:   svc.Running,
		Accepts: svc.AcceptStop | svc.AcceptShutdown,
	}
	r.logger.Info("Windows service started", zap.String("name", serviceName))

	for {
		select {
		case <-done:
			r.logger.Warn("Agent exited while service was running")
			return false, 1
		case c := <-req:
			switch c.Cmd {
			case svc.Interrogate:
				changes <- c.CurrentStatus
			case svc.Stop, svc.Shutdown:
				r.logger.Info("Windows service stopping")
				changes <- svc.Status{State: svc.StopPending}
				cancel()
				select {
				case <-done:
				case <-time.After(stopTimeout):
					r.logger.Warn("Agent did not stop in time", zap.Duration("timeout", stopTimeout))
				}
				return false, 0
			default:
				r.logger.Warn("Unexpected service control request",
					zap.Uint32("cmd", uint32(c.Cmd)))
			}
		}
	}
}
