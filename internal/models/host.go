// Package models defines the telemetry snapshots produced by the collectors.
// Field names and nesting are the contract with whatever consumes the published
// JSON, so renaming or reshaping a field is a breaking change.
package models

import "time"

// CPUCount holds the number of physical and logical CPU cores.
type CPUCount struct {
	PhysicalCount int `json:"physical_count"`
	LogicalCount  int `json:"logical_count"`
}

// HostSnapshot is a single point-in-time sample of host-wide counters.
type HostSnapshot struct {
	Timestamp time.Time         `json:"ts"`
	CPU       []CoreTimes       `json:"cpu"`
	Memory    MemStats          `json:"mem"`
	Network   map[string]NetIO  `json:"net"`
	Disk      map[string]DiskIO `json:"disk"`
}

// CoreTimes holds cumulative seconds spent by one logical core in each mode.
type CoreTimes struct {
	User   float64 `json:"user"`
	System float64 `json:"system"`
	Idle   float64 `json:"idle"`
}

// MemStats holds physical memory sizes in bytes.
type MemStats struct {
	Total     uint64 `json:"total"`
	Available uint64 `json:"available"`
}

// NetIO holds cumulative counters for one network interface.
type NetIO struct {
	In  NetCounters `json:"in"`
	Out NetCounters `json:"out"`
}

// NetCounters holds the counters for one traffic direction.
type NetCounters struct {
	Bytes   uint64 `json:"bytes"`
	Packets uint64 `json:"packets"`
	Errors  uint64 `json:"errors"`
	Dropped uint64 `json:"dropped"`
}

// DiskIO holds cumulative counters for one block device.
type DiskIO struct {
	Read  DiskCounters `json:"read"`
	Write DiskCounters `json:"write"`
}

// DiskCounters holds the counters for one I/O direction. Time is in
// milliseconds, as reported by the provider.
type DiskCounters struct {
	Ops   uint64 `json:"ops"`
	Bytes uint64 `json:"bytes"`
	Time  uint64 `json:"time"`
}
