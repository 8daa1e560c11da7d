package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalis-app/telemetry/internal/models"
)

// fakeHandle stands in for *process.Process. errs maps a method name to the
// error it returns.
type fakeHandle struct {
	status   []string
	percents []float64
	calls    int
	files    []process.OpenFilesStat
	conns    []net.ConnectionStat
	fds      int32
	errs     map[string]error
}

func (f *fakeHandle) StatusWithContext(context.Context) ([]string, error) {
	return f.status, f.errs["status"]
}

func (f *fakeHandle) NumCtxSwitchesWithContext(context.Context) (*process.NumCtxSwitchesStat, error) {
	if err := f.errs["switches"]; err != nil {
		return nil, err
	}
	return &process.NumCtxSwitchesStat{Voluntary: 40, Involuntary: 2}, nil
}

func (f *fakeHandle) TimesWithContext(context.Context) (*cpu.TimesStat, error) {
	return &cpu.TimesStat{User: 1.5, System: 0.25}, f.errs["times"]
}

func (f *fakeHandle) PercentWithContext(context.Context, time.Duration) (float64, error) {
	if err := f.errs["percent"]; err != nil {
		return 0, err
	}
	if f.calls >= len(f.percents) {
		return 0, nil
	}
	p := f.percents[f.calls]
	f.calls++
	return p, nil
}

func (f *fakeHandle) MemoryInfoWithContext(context.Context) (*process.MemoryInfoStat, error) {
	return &process.MemoryInfoStat{RSS: 4096, VMS: 8192}, f.errs["meminfo"]
}

func (f *fakeHandle) MemoryPercentWithContext(context.Context) (float32, error) {
	return 0.5, f.errs["mempercent"]
}

func (f *fakeHandle) IOCountersWithContext(context.Context) (*process.IOCountersStat, error) {
	return &process.IOCountersStat{ReadCount: 7, WriteCount: 3}, f.errs["io"]
}

func (f *fakeHandle) NumThreadsWithContext(context.Context) (int32, error) {
	return 6, f.errs["threads"]
}

func (f *fakeHandle) NumFDsWithContext(context.Context) (int32, error) {
	return f.fds, f.errs["fds"]
}

func (f *fakeHandle) OpenFilesWithContext(context.Context) ([]process.OpenFilesStat, error) {
	return f.files, f.errs["files"]
}

func (f *fakeHandle) ConnectionsWithContext(context.Context) ([]net.ConnectionStat, error) {
	return f.conns, f.errs["conns"]
}

func newTestProcess(h *fakeHandle) *ProcessCollector {
	c := newProcessCollector(1234, h, NewSocketClassifier(true))
	c.descriptors = func(context.Context) (int32, error) { return 17, nil }
	return c
}

func TestProcessCollector_PID(t *testing.T) {
	c := newTestProcess(&fakeHandle{})
	assert.Equal(t, int32(1234), c.PID())
}

func TestProcessCollector_Stats(t *testing.T) {
	h := &fakeHandle{status: []string{"sleep"}, percents: []float64{0, 12.5}}
	c := newTestProcess(h)

	first, err := c.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "sleep", first.Status)
	assert.Equal(t, models.ContextSwitches{Voluntary: 40, Nonvoluntary: 2}, first.ContextSwitches)
	assert.Equal(t, models.ProcessCPU{User: 1.5, System: 0.25, Percent: 0}, first.CPU)
	assert.Equal(t, models.ProcessMemory{Resident: 4096, Virtual: 8192, Percent: 0.5}, first.Memory)
	assert.Equal(t, models.ProcessIO{Reads: 7, Writes: 3}, first.IO)

	second, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12.5, second.CPU.Percent)
	assert.False(t, second.Timestamp.Before(first.Timestamp))
}

func TestProcessCollector_StatsEmptyStatus(t *testing.T) {
	c := newTestProcess(&fakeHandle{})
	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats.Status)
}

func TestProcessCollector_StatsPropagatesErrors(t *testing.T) {
	for _, method := range []string{"switches", "times", "percent", "meminfo", "mempercent", "io", "status"} {
		t.Run(method, func(t *testing.T) {
			boom := errors.New(method + " failed")
			c := newTestProcess(&fakeHandle{errs: map[string]error{method: boom}})
			_, err := c.Stats(context.Background())
			assert.Same(t, boom, err)
		})
	}
}

func TestProcessCollector_OpenFilesSorted(t *testing.T) {
	h := &fakeHandle{files: []process.OpenFilesStat{
		{Path: "/tmp/b.log", Fd: 4},
		{Path: "/tmp/a.log", Fd: 5},
	}}
	c := newTestProcess(h)

	files, err := c.OpenFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/a.log", "/tmp/b.log"}, files)

	again, err := c.OpenFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, files, again)
}

func TestProcessCollector_OpenFilesKeepsDuplicates(t *testing.T) {
	h := &fakeHandle{files: []process.OpenFilesStat{
		{Path: "/var/log/app.log", Fd: 3},
		{Path: "/etc/hosts", Fd: 4},
		{Path: "/var/log/app.log", Fd: 9},
	}}
	files, err := newTestProcess(h).OpenFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/etc/hosts", "/var/log/app.log", "/var/log/app.log"}, files)
}

func TestProcessCollector_OpenFilesEmpty(t *testing.T) {
	files, err := newTestProcess(&fakeHandle{}).OpenFiles(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestProcessCollector_Info(t *testing.T) {
	h := &fakeHandle{files: []process.OpenFilesStat{{Path: "/tmp/x"}}}
	c := newTestProcess(h)

	info, err := c.Info(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info.Descriptors)
	assert.Equal(t, int32(17), *info.Descriptors)
	assert.NoError(t, info.DescriptorsErr)
	assert.Equal(t, int32(6), info.Threads)
	assert.Equal(t, []string{"/tmp/x"}, info.Files)
	assert.NotNil(t, info.Sockets)
}

func TestProcessCollector_InfoDescriptorFailure(t *testing.T) {
	failures := map[string]func(context.Context) (int32, error){
		"unsupported": func(context.Context) (int32, error) { return 0, errors.New("not implemented yet") },
		"denied": func(context.Context) (int32, error) {
			return 0, &fakePermissionError{}
		},
		"panic": func(context.Context) (int32, error) { panic("handle table gone") },
	}

	for name, fail := range failures {
		t.Run(name, func(t *testing.T) {
			h := &fakeHandle{files: []process.OpenFilesStat{{Path: "/tmp/b"}, {Path: "/tmp/a"}}}
			c := newTestProcess(h)
			c.descriptors = fail

			info, err := c.Info(context.Background())
			require.NoError(t, err)
			assert.Nil(t, info.Descriptors)
			assert.Error(t, info.DescriptorsErr)
			assert.Equal(t, int32(6), info.Threads)
			assert.Equal(t, []string{"/tmp/a", "/tmp/b"}, info.Files)
			assert.NotNil(t, info.Sockets)
		})
	}
}

func TestProcessCollector_InfoPropagatesOtherErrors(t *testing.T) {
	for _, method := range []string{"threads", "files", "conns"} {
		t.Run(method, func(t *testing.T) {
			boom := errors.New(method + " failed")
			c := newTestProcess(&fakeHandle{errs: map[string]error{method: boom}})
			_, err := c.Info(context.Background())
			assert.Same(t, boom, err)
		})
	}
}

type fakePermissionError struct{}

func (*fakePermissionError) Error() string { return "permission denied" }
