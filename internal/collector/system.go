package collector

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"

	"github.com/vitalis-app/telemetry/internal/models"
)

// SystemCollector samples host-wide counters. It carries no identity and no
// state between calls.
type SystemCollector struct {
	now     func() time.Time
	counts  func(ctx context.Context, logical bool) (int, error)
	times   func(ctx context.Context, percpu bool) ([]cpu.TimesStat, error)
	virtual func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	netIO   func(ctx context.Context, pernic bool) ([]net.IOCountersStat, error)
	diskIO  func(ctx context.Context, names ...string) (map[string]disk.IOCountersStat, error)
}

// NewSystemCollector creates a collector backed by gopsutil.
func NewSystemCollector() *SystemCollector {
	return &SystemCollector{
		now:     time.Now,
		counts:  cpu.CountsWithContext,
		times:   cpu.TimesWithContext,
		virtual: mem.VirtualMemoryWithContext,
		netIO:   net.IOCountersWithContext,
		diskIO:  disk.IOCountersWithContext,
	}
}

// CPU returns the physical and logical core counts.
func (c *SystemCollector) CPU(ctx context.Context) (models.CPUCount, error) {
	physical, err := c.counts(ctx, false)
	if err != nil {
		return models.CPUCount{}, err
	}
	logical, err := c.counts(ctx, true)
	if err != nil {
		return models.CPUCount{}, err
	}
	return models.CPUCount{PhysicalCount: physical, LogicalCount: logical}, nil
}

// Stats returns a full host snapshot. The sub-collections are read in
// sequence and the first failure fails the whole call.
func (c *SystemCollector) Stats(ctx context.Context) (models.HostSnapshot, error) {
	snap := models.HostSnapshot{Timestamp: c.now().UTC()}

	var err error
	if snap.CPU, err = c.CPUStats(ctx); err != nil {
		return models.HostSnapshot{}, err
	}
	if snap.Memory, err = c.MemStats(ctx); err != nil {
		return models.HostSnapshot{}, err
	}
	if snap.Network, err = c.NetStats(ctx); err != nil {
		return models.HostSnapshot{}, err
	}
	if snap.Disk, err = c.DiskStats(ctx); err != nil {
		return models.HostSnapshot{}, err
	}
	return snap, nil
}

// CPUStats returns cumulative user, system and idle seconds for every
// logical core, in the order the provider enumerates them.
func (c *SystemCollector) CPUStats(ctx context.Context) ([]models.CoreTimes, error) {
	times, err := c.times(ctx, true)
	if err != nil {
		return nil, err
	}
	cores := make([]models.CoreTimes, len(times))
	for i, t := range times {
		cores[i] = models.CoreTimes{
			User:   t.User,
			System: t.System,
			Idle:   t.Idle,
		}
	}
	return cores, nil
}

// MemStats returns total and currently available physical memory.
func (c *SystemCollector) MemStats(ctx context.Context) (models.MemStats, error) {
	v, err := c.virtual(ctx)
	if err != nil {
		return models.MemStats{}, err
	}
	return models.MemStats{
		Total:     v.Total,
		Available: v.Available,
	}, nil
}

// NetStats returns cumulative counters per network interface. Entries the
// provider reports without a name are left out.
func (c *SystemCollector) NetStats(ctx context.Context) (map[string]models.NetIO, error) {
	counters, err := c.netIO(ctx, true)
	if err != nil {
		return nil, err
	}
	res := make(map[string]models.NetIO, len(counters))
	for _, s := range counters {
		if s.Name == "" {
			continue
		}
		res[s.Name] = models.NetIO{
			Out: models.NetCounters{
				Bytes:   s.BytesSent,
				Packets: s.PacketsSent,
				Errors:  s.Errout,
				Dropped: s.Dropout,
			},
			In: models.NetCounters{
				Bytes:   s.BytesRecv,
				Packets: s.PacketsRecv,
				Errors:  s.Errin,
				Dropped: s.Dropin,
			},
		}
	}
	return res, nil
}

// DiskStats returns cumulative read and write counters per block device.
func (c *SystemCollector) DiskStats(ctx context.Context) (map[string]models.DiskIO, error) {
	counters, err := c.diskIO(ctx)
	if err != nil {
		return nil, err
	}
	res := make(map[string]models.DiskIO, len(counters))
	for name, s := range counters {
		if name == "" {
			continue
		}
		res[name] = models.DiskIO{
			Read: models.DiskCounters{
				Ops:   s.ReadCount,
				Bytes: s.ReadBytes,
				Time:  s.ReadTime,
			},
			Write: models.DiskCounters{
				Ops:   s.WriteCount,
				Bytes: s.WriteBytes,
				Time:  s.WriteTime,
			},
		}
	}
	return res, nil
}
