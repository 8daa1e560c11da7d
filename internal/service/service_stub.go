//go:build !windows

// Package service is a no-op outside Windows: the agent always runs in the
// foreground and is supervised by systemd, launchd or a container runtime.
package service

import (
	"context"

	"go.uber.org/zap"
)

// Runner calls run directly.
type Runner struct {
	logger *zap.Logger
	run    func(ctx context.Context)
}

// New wraps run.
func New(logger *zap.Logger, run func(ctx context.Context)) *Runner {
	return &Runner{logger: logger, run: run}
}

// IsService always returns false on non-Windows platforms.
func IsService() bool {
	return false
}

// Run executes run until it returns.
func (r *Runner) Run() error {
	r.run(context.Background())
	return nil
}
