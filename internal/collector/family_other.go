//go:build !unix && !windows

package collector

// The provider reports no sockets on these platforms.

func NativeFamily(uint32) AddressFamily { return FamilyOther }

func NativeKind(uint32) SocketKind { return KindOther }
