//go:build windows

package collector

import "golang.org/x/sys/windows"

// NativeFamily translates an OS address family number.
func NativeFamily(family uint32) AddressFamily {
	switch family {
	case windows.AF_INET:
		return FamilyInet
	case windows.AF_INET6:
		return FamilyInet6
	case windows.AF_UNIX:
		return FamilyUnix
	default:
		return FamilyOther
	}
}

// NativeKind translates an OS socket type number.
func NativeKind(kind uint32) SocketKind {
	switch kind {
	case windows.SOCK_STREAM:
		return KindStream
	case windows.SOCK_DGRAM:
		return KindDatagram
	default:
		return KindOther
	}
}
