//go:build windows

package collector

import (
	"context"
	"fmt"

	"github.com/yusufpapurcu/wmi"
)

// win32Process receives the columns of the Win32_Process query.
type win32Process struct {
	HandleCount uint32
}

// descriptorCounter counts open object handles. gopsutil has no descriptor
// count on Windows, so the handle count comes from WMI.
func descriptorCounter(pid int32, _ processHandle) func(context.Context) (int32, error) {
	return func(context.Context) (int32, error) {
		return handleCount(pid)
	}
}

func handleCount(pid int32) (int32, error) {
	var dst []win32Process
	q := fmt.Sprintf("SELECT HandleCount FROM Win32_Process WHERE ProcessId = %d", pid)
	if err := wmi.Query(q, &dst); err != nil {
		return 0, err
	}
	if len(dst) == 0 {
		return 0, fmt.Errorf("no handle count for process %d", pid)
	}
	return int32(dst[0].HandleCount), nil
}
