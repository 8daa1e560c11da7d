package collector

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/vitalis-app/telemetry/internal/models"
	"github.com/vitalis-app/telemetry/internal/platform"
)

// processHandle is the subset of *process.Process the collector uses.
type processHandle interface {
	StatusWithContext(context.Context) ([]string, error)
	NumCtxSwitchesWithContext(context.Context) (*process.NumCtxSwitchesStat, error)
	TimesWithContext(context.Context) (*cpu.TimesStat, error)
	PercentWithContext(context.Context, time.Duration) (float64, error)
	MemoryInfoWithContext(context.Context) (*process.MemoryInfoStat, error)
	MemoryPercentWithContext(context.Context) (float32, error)
	IOCountersWithContext(context.Context) (*process.IOCountersStat, error)
	NumThreadsWithContext(context.Context) (int32, error)
	NumFDsWithContext(context.Context) (int32, error)
	OpenFilesWithContext(context.Context) ([]process.OpenFilesStat, error)
	ConnectionsWithContext(context.Context) ([]net.ConnectionStat, error)
}

var _ processHandle = (*process.Process)(nil)

// ProcessCollector samples one process. The process is resolved once, when
// the collector is created, and never looked up again.
//
// A ProcessCollector is not safe for concurrent use: the provider handle
// keeps the previous CPU reading and caches parsed status fields.
type ProcessCollector struct {
	pid         int32
	handle      processHandle
	sockets     SocketClassifier
	descriptors func(context.Context) (int32, error)
	now         func() time.Time
}

// NewProcessCollector binds a collector to the process with the given PID.
func NewProcessCollector(ctx context.Context, pid int32, caps platform.Capabilities) (*ProcessCollector, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, err
	}
	return newProcessCollector(pid, p, NewSocketClassifier(caps.UnixSockets)), nil
}

// NewSelfCollector binds a collector to the calling process.
func NewSelfCollector(ctx context.Context, caps platform.Capabilities) (*ProcessCollector, error) {
	return NewProcessCollector(ctx, int32(os.Getpid()), caps)
}

func newProcessCollector(pid int32, h processHandle, sockets SocketClassifier) *ProcessCollector {
	return &ProcessCollector{
		pid:         pid,
		handle:      h,
		sockets:     sockets,
		descriptors: descriptorCounter(pid, h),
		now:         time.Now,
	}
}

// PID returns the process the collector is bound to.
func (c *ProcessCollector) PID() int32 { return c.pid }

// Stats returns CPU, memory, I/O and context switch statistics.
//
// CPU.Percent is the utilization since the previous call to Stats on this
// collector. The first call has no previous reading and reports 0.
func (c *ProcessCollector) Stats(ctx context.Context) (models.ProcessStats, error) {
	ts := c.now().UTC()

	switches, err := c.handle.NumCtxSwitchesWithContext(ctx)
	if err != nil {
		return models.ProcessStats{}, err
	}
	times, err := c.handle.TimesWithContext(ctx)
	if err != nil {
		return models.ProcessStats{}, err
	}
	cpuPercent, err := c.handle.PercentWithContext(ctx, 0)
	if err != nil {
		return models.ProcessStats{}, err
	}
	memInfo, err := c.handle.MemoryInfoWithContext(ctx)
	if err != nil {
		return models.ProcessStats{}, err
	}
	memPercent, err := c.handle.MemoryPercentWithContext(ctx)
	if err != nil {
		return models.ProcessStats{}, err
	}
	io, err := c.handle.IOCountersWithContext(ctx)
	if err != nil {
		return models.ProcessStats{}, err
	}
	status, err := c.handle.StatusWithContext(ctx)
	if err != nil {
		return models.ProcessStats{}, err
	}

	stats := models.ProcessStats{
		Timestamp: ts,
		ContextSwitches: models.ContextSwitches{
			Voluntary:    switches.Voluntary,
			Nonvoluntary: switches.Involuntary,
		},
		CPU: models.ProcessCPU{
			User:    times.User,
			System:  times.System,
			Percent: cpuPercent,
		},
		Memory: models.ProcessMemory{
			Resident: memInfo.RSS,
			Virtual:  memInfo.VMS,
			Percent:  memPercent,
		},
		IO: models.ProcessIO{
			Reads:  io.ReadCount,
			Writes: io.WriteCount,
		},
	}
	if len(status) > 0 {
		stats.Status = status[0]
	}
	return stats, nil
}

// Info returns the descriptors, threads, files and sockets the process
// holds. The descriptor count is best-effort: when it cannot be read,
// Descriptors is nil and DescriptorsErr says why, but Info still succeeds.
func (c *ProcessCollector) Info(ctx context.Context) (models.ProcessInfo, error) {
	var info models.ProcessInfo

	n, err := c.descriptorCount(ctx)
	if err != nil {
		info.DescriptorsErr = err
	} else {
		info.Descriptors = &n
	}

	if info.Threads, err = c.handle.NumThreadsWithContext(ctx); err != nil {
		return models.ProcessInfo{}, err
	}
	if info.Files, err = c.OpenFiles(ctx); err != nil {
		return models.ProcessInfo{}, err
	}
	if info.Sockets, err = c.OpenSockets(ctx); err != nil {
		return models.ProcessInfo{}, err
	}
	return info, nil
}

// descriptorCount shields Info from every failure of the platform counter,
// including a panic inside the provider.
func (c *ProcessCollector) descriptorCount(ctx context.Context) (n int32, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("descriptor count: %v", r)
		}
	}()
	return c.descriptors(ctx)
}

// OpenFiles returns the paths of the regular files the process has open,
// sorted ascending. Duplicates reported by the provider are kept.
func (c *ProcessCollector) OpenFiles(ctx context.Context) ([]string, error) {
	files, err := c.handle.OpenFilesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)
	return paths, nil
}

// OpenSockets returns every socket the process holds, of every family and
// kind. Connection status is reported as the provider gives it.
func (c *ProcessCollector) OpenSockets(ctx context.Context) ([]models.SocketHandle, error) {
	conns, err := c.handle.ConnectionsWithContext(ctx)
	if err != nil {
		return nil, err
	}
	handles := make([]models.SocketHandle, 0, len(conns))
	for _, conn := range conns {
		handles = append(handles, c.sockets.Handle(conn))
	}
	return handles, nil
}
