// Package platform detects, once at startup, which telemetry the current host
// and privilege level can actually provide. Each supported OS family supplies
// its constants in a build-tagged file.
package platform

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Descriptor sources reported in Capabilities.DescriptorSource.
const (
	DescriptorHandles = "handles"
	DescriptorFDs     = "fds"
)

// Capabilities is the result of probing the host.
type Capabilities struct {
	// OS is the platform family name.
	OS string
	// HostTelemetry is true when host-wide counters can be read.
	HostTelemetry bool
	// UnixSockets is true when POSIX-domain sockets can be classified.
	UnixSockets bool
	// DescriptorSource names what a process descriptor count measures.
	DescriptorSource string
}

// probes are the provider calls Detect uses to decide HostTelemetry.
type probes struct {
	counts  func(ctx context.Context, logical bool) (int, error)
	virtual func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

var defaultProbes = probes{
	counts:  cpu.CountsWithContext,
	virtual: mem.VirtualMemoryWithContext,
}

// Detect probes the host. It never fails: anything that cannot be read is
// reported as unavailable.
func Detect(ctx context.Context) Capabilities {
	return detect(ctx, defaultProbes)
}

func detect(ctx context.Context, p probes) Capabilities {
	return Capabilities{
		OS:               osName(),
		HostTelemetry:    hostTelemetry(ctx, p),
		UnixSockets:      unixSockets,
		DescriptorSource: descriptorSource,
	}
}

func hostTelemetry(ctx context.Context, p probes) bool {
	n, err := p.counts(ctx, true)
	if err != nil || n <= 0 {
		return false
	}
	if _, err := p.virtual(ctx); err != nil {
		return false
	}
	return true
}
