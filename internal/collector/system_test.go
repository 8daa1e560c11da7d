package collector

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalis-app/telemetry/internal/models"
)

// fakeSystem returns a collector reporting 2 physical / 4 logical cores,
// two interfaces and one disk.
func fakeSystem() *SystemCollector {
	return &SystemCollector{
		now: time.Now,
		counts: func(_ context.Context, logical bool) (int, error) {
			if logical {
				return 4, nil
			}
			return 2, nil
		},
		times: func(context.Context, bool) ([]cpu.TimesStat, error) {
			return []cpu.TimesStat{
				{CPU: "cpu0", User: 10, System: 5, Idle: 100},
				{CPU: "cpu1", User: 11, System: 6, Idle: 101},
				{CPU: "cpu2", User: 12, System: 7, Idle: 102},
				{CPU: "cpu3", User: 13, System: 8, Idle: 103},
			}, nil
		},
		virtual: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 8 << 30, Available: 3 << 30, Used: 5 << 30}, nil
		},
		netIO: func(context.Context, bool) ([]net.IOCountersStat, error) {
			return []net.IOCountersStat{
				{Name: "lo", BytesSent: 100, BytesRecv: 100, PacketsSent: 2, PacketsRecv: 2},
				{Name: "eth0", BytesSent: 1000, BytesRecv: 2000, PacketsSent: 10, PacketsRecv: 20, Errin: 1, Errout: 2, Dropin: 3, Dropout: 4},
			}, nil
		},
		diskIO: func(context.Context, ...string) (map[string]disk.IOCountersStat, error) {
			return map[string]disk.IOCountersStat{
				"sda": {Name: "sda", ReadCount: 5, WriteCount: 6, ReadBytes: 512, WriteBytes: 1024, ReadTime: 7, WriteTime: 8},
			}, nil
		},
	}
}

func TestSystemCollector_CPU(t *testing.T) {
	c := fakeSystem()

	count, err := c.CPU(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.CPUCount{PhysicalCount: 2, LogicalCount: 4}, count)

	cores, err := c.CPUStats(context.Background())
	require.NoError(t, err)
	require.Len(t, cores, count.LogicalCount)
	for i, core := range cores {
		assert.Equal(t, float64(10+i), core.User, "core %d", i)
		assert.Equal(t, float64(5+i), core.System, "core %d", i)
		assert.Equal(t, float64(100+i), core.Idle, "core %d", i)
	}
}

func TestSystemCollector_MemStats(t *testing.T) {
	m, err := fakeSystem().MemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.MemStats{Total: 8 << 30, Available: 3 << 30}, m)
}

func TestSystemCollector_NetStats(t *testing.T) {
	stats, err := fakeSystem().NetStats(context.Background())
	require.NoError(t, err)

	require.Contains(t, stats, "eth0")
	assert.Equal(t, models.NetIO{
		In:  models.NetCounters{Bytes: 2000, Packets: 20, Errors: 1, Dropped: 3},
		Out: models.NetCounters{Bytes: 1000, Packets: 10, Errors: 2, Dropped: 4},
	}, stats["eth0"])
}

func TestSystemCollector_DiskStats(t *testing.T) {
	stats, err := fakeSystem().DiskStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]models.DiskIO{
		"sda": {
			Read:  models.DiskCounters{Ops: 5, Bytes: 512, Time: 7},
			Write: models.DiskCounters{Ops: 6, Bytes: 1024, Time: 8},
		},
	}, stats)
}

func TestSystemCollector_KeysFollowProvider(t *testing.T) {
	c := fakeSystem()
	ifaces := []string{"eth0", "wlan0", "docker0"}
	disks := []string{"sda", "nvme0n1"}
	c.netIO = func(context.Context, bool) ([]net.IOCountersStat, error) {
		var out []net.IOCountersStat
		for _, n := range ifaces {
			out = append(out, net.IOCountersStat{Name: n})
		}
		// nameless entries carry no usable identifier
		out = append(out, net.IOCountersStat{BytesSent: 1})
		return out, nil
	}
	c.diskIO = func(context.Context, ...string) (map[string]disk.IOCountersStat, error) {
		out := make(map[string]disk.IOCountersStat)
		for _, d := range disks {
			out[d] = disk.IOCountersStat{Name: d}
		}
		return out, nil
	}

	ctx := context.Background()
	assertKeys(t, ifaces, mustNet(t, c, ctx))
	assertKeys(t, disks, mustDisk(t, c, ctx))

	// an interface and a disk disappear between calls
	ifaces = []string{"eth0"}
	disks = []string{"nvme0n1"}
	assertKeys(t, ifaces, mustNet(t, c, ctx))
	assertKeys(t, disks, mustDisk(t, c, ctx))
}

func mustNet(t *testing.T, c *SystemCollector, ctx context.Context) map[string]models.NetIO {
	t.Helper()
	m, err := c.NetStats(ctx)
	require.NoError(t, err)
	return m
}

func mustDisk(t *testing.T, c *SystemCollector, ctx context.Context) map[string]models.DiskIO {
	t.Helper()
	m, err := c.DiskStats(ctx)
	require.NoError(t, err)
	return m
}

func assertKeys[V any](t *testing.T, want []string, got map[string]V) {
	t.Helper()
	keys := make([]string, 0, len(got))
	for k := range got {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w := append([]string(nil), want...)
	sort.Strings(w)
	assert.Equal(t, w, keys)
}

func TestSystemCollector_Stats(t *testing.T) {
	c := fakeSystem()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	c.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first, err := c.Stats(context.Background())
	require.NoError(t, err)
	second, err := c.Stats(context.Background())
	require.NoError(t, err)

	assert.False(t, second.Timestamp.Before(first.Timestamp))
	assert.Len(t, first.CPU, 4)
	assert.Equal(t, uint64(8<<30), first.Memory.Total)
	assert.Contains(t, first.Network, "eth0")
	assert.Contains(t, first.Disk, "sda")
}

func TestSystemCollector_StatsFailsWhole(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		mutate func(*SystemCollector)
	}{
		{"cpu", func(c *SystemCollector) {
			c.times = func(context.Context, bool) ([]cpu.TimesStat, error) { return nil, boom }
		}},
		{"mem", func(c *SystemCollector) {
			c.virtual = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, boom }
		}},
		{"net", func(c *SystemCollector) {
			c.netIO = func(context.Context, bool) ([]net.IOCountersStat, error) { return nil, boom }
		}},
		{"disk", func(c *SystemCollector) {
			c.diskIO = func(context.Context, ...string) (map[string]disk.IOCountersStat, error) { return nil, boom }
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fakeSystem()
			tt.mutate(c)
			snap, err := c.Stats(context.Background())
			assert.Same(t, boom, err)
			assert.Equal(t, models.HostSnapshot{}, snap)
		})
	}
}

func TestSystemCollector_CPUCountError(t *testing.T) {
	c := fakeSystem()
	boom := errors.New("not implemented yet")
	c.counts = func(context.Context, bool) (int, error) { return 0, boom }

	_, err := c.CPU(context.Background())
	assert.Same(t, boom, err)
	assert.True(t, IsProviderUnavailable(err))
}
