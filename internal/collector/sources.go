package collector

import (
	"context"

	"github.com/vitalis-app/telemetry/internal/platform"
)

// Source names.
const (
	HostStatsName    = "host_stats"
	ProcessStatsName = "process_stats"
	ProcessInfoName  = "process_info"
)

// HostStatsSource samples SystemCollector.Stats.
type HostStatsSource struct {
	sys       *SystemCollector
	available bool
}

// NewHostStatsSource creates a host source; it is only available when the
// capability probe found host telemetry.
func NewHostStatsSource(sys *SystemCollector, caps platform.Capabilities) *HostStatsSource {
	return &HostStatsSource{sys: sys, available: caps.HostTelemetry}
}

func (s *HostStatsSource) Name() string { return HostStatsName }

func (s *HostStatsSource) Collect(ctx context.Context) (interface{}, error) {
	return s.sys.Stats(ctx)
}

func (s *HostStatsSource) IsAvailable() bool { return s.available }

// ProcessStatsSource samples ProcessCollector.Stats.
type ProcessStatsSource struct {
	proc *ProcessCollector
}

// NewProcessStatsSource creates a process statistics source.
func NewProcessStatsSource(proc *ProcessCollector) *ProcessStatsSource {
	return &ProcessStatsSource{proc: proc}
}

func (s *ProcessStatsSource) Name() string { return ProcessStatsName }

func (s *ProcessStatsSource) Collect(ctx context.Context) (interface{}, error) {
	return s.proc.Stats(ctx)
}

func (s *ProcessStatsSource) IsAvailable() bool { return s.proc != nil }

// ProcessInfoSource samples ProcessCollector.Info.
type ProcessInfoSource struct {
	proc *ProcessCollector
}

// NewProcessInfoSource creates a process information source.
func NewProcessInfoSource(proc *ProcessCollector) *ProcessInfoSource {
	return &ProcessInfoSource{proc: proc}
}

func (s *ProcessInfoSource) Name() string { return ProcessInfoName }

func (s *ProcessInfoSource) Collect(ctx context.Context) (interface{}, error) {
	return s.proc.Info(ctx)
}

func (s *ProcessInfoSource) IsAvailable() bool { return s.proc != nil }
