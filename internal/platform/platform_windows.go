//go:build windows

package platform

// Windows exposes object handles rather than file descriptors and gopsutil
// does not report AF_UNIX sockets there.
const (
	unixSockets      = false
	descriptorSource = DescriptorHandles
)

func osName() string { return "windows" }
