//go:build !windows

package platform

import "runtime"

const (
	unixSockets      = true
	descriptorSource = DescriptorFDs
)

func osName() string { return runtime.GOOS }
