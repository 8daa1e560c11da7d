package models

import "time"

// ProcessStats is a single sample of one process's resource usage.
type ProcessStats struct {
	Timestamp       time.Time       `json:"ts"`
	Status          string          `json:"status"`
	ContextSwitches ContextSwitches `json:"ctx_switches"`
	CPU             ProcessCPU      `json:"cpu"`
	Memory          ProcessMemory   `json:"mem"`
	IO              ProcessIO       `json:"io"`
}

// ContextSwitches holds cumulative context switch counts.
type ContextSwitches struct {
	Voluntary    int64 `json:"voluntary"`
	Nonvoluntary int64 `json:"nonvoluntary"`
}

// ProcessCPU holds cumulative CPU seconds and the utilization since the
// previous sample.
type ProcessCPU struct {
	User    float64 `json:"user"`
	System  float64 `json:"system"`
	Percent float64 `json:"percent"`
}

// ProcessMemory holds memory sizes in bytes and the share of physical memory.
type ProcessMemory struct {
	Resident uint64  `json:"resident"`
	Virtual  uint64  `json:"virtual"`
	Percent  float32 `json:"percent"`
}

// ProcessIO holds cumulative read and write operation counts.
type ProcessIO struct {
	Reads  uint64 `json:"reads"`
	Writes uint64 `json:"writes"`
}

// ProcessInfo describes the resources a process holds open.
type ProcessInfo struct {
	// Descriptors is nil when the count could not be retrieved.
	Descriptors *int32 `json:"descriptors"`
	// DescriptorsErr records why Descriptors is nil. It is never published.
	DescriptorsErr error          `json:"-"`
	Threads        int32          `json:"threads"`
	Files          []string       `json:"files"`
	Sockets        []SocketHandle `json:"sockets"`
}

// SocketType is the logical type of a socket handle.
type SocketType string

const (
	SocketTCP4    SocketType = "tcp4"
	SocketTCP6    SocketType = "tcp6"
	SocketUDP4    SocketType = "udp4"
	SocketUDP6    SocketType = "udp6"
	SocketUnix    SocketType = "unix"
	SocketUnknown SocketType = "unknown"
)

// SocketHandle describes one socket held by a process.
type SocketHandle struct {
	Type   SocketType `json:"type"`
	Local  string     `json:"local"`
	Remote string     `json:"remote"`
	Status string     `json:"status"`
}
