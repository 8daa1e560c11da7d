//go:build unix

package collector

import "golang.org/x/sys/unix"

// NativeFamily translates an OS address family number.
func NativeFamily(family uint32) AddressFamily {
	switch family {
	case unix.AF_INET:
		return FamilyInet
	case unix.AF_INET6:
		return FamilyInet6
	case unix.AF_UNIX:
		return FamilyUnix
	default:
		return FamilyOther
	}
}

// NativeKind translates an OS socket type number.
func NativeKind(kind uint32) SocketKind {
	switch kind {
	case unix.SOCK_STREAM:
		return KindStream
	case unix.SOCK_DGRAM:
		return KindDatagram
	default:
		return KindOther
	}
}
