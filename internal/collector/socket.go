package collector

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/net"

	"github.com/vitalis-app/telemetry/internal/models"
)

// AddressFamily is a platform-independent socket address family.
type AddressFamily uint8

const (
	FamilyOther AddressFamily = iota
	FamilyInet
	FamilyInet6
	FamilyUnix
)

func (f AddressFamily) String() string {
	switch f {
	case FamilyInet:
		return "inet"
	case FamilyInet6:
		return "inet6"
	case FamilyUnix:
		return "unix"
	default:
		return "other"
	}
}

// SocketKind is a platform-independent socket type.
type SocketKind uint8

const (
	KindOther SocketKind = iota
	KindStream
	KindDatagram
)

func (k SocketKind) String() string {
	switch k {
	case KindStream:
		return "stream"
	case KindDatagram:
		return "datagram"
	default:
		return "other"
	}
}

type socketKey struct {
	family AddressFamily
	kind   SocketKind
}

// SocketClassifier maps (family, kind) pairs to socket types and formats
// addresses accordingly. The table is fixed at construction; the zero value
// classifies everything as unknown.
type SocketClassifier struct {
	types map[socketKey]models.SocketType
	unix  bool
}

// NewSocketClassifier builds the classification table. POSIX-domain entries
// are only present when unixSockets is true.
func NewSocketClassifier(unixSockets bool) SocketClassifier {
	types := map[socketKey]models.SocketType{
		{FamilyInet, KindStream}:    models.SocketTCP4,
		{FamilyInet6, KindStream}:   models.SocketTCP6,
		{FamilyInet, KindDatagram}:  models.SocketUDP4,
		{FamilyInet6, KindDatagram}: models.SocketUDP6,
	}
	if unixSockets {
		types[socketKey{FamilyUnix, KindStream}] = models.SocketUnix
		types[socketKey{FamilyUnix, KindDatagram}] = models.SocketUnix
	}
	return SocketClassifier{types: types, unix: unixSockets}
}

// Classify returns the socket type for a family and kind. Pairs missing
// from the table are unknown.
func (c SocketClassifier) Classify(family AddressFamily, kind SocketKind) models.SocketType {
	if t, ok := c.types[socketKey{family, kind}]; ok {
		return t
	}
	return models.SocketUnknown
}

// Handle classifies one provider connection and formats its addresses.
// POSIX-domain sockets of any kind report the raw local path and never a
// remote address, provided the classifier was built with unix support.
// Everything else is formatted as ip:port, with an empty remote when there is
// no connected peer.
func (c SocketClassifier) Handle(conn net.ConnectionStat) models.SocketHandle {
	h := models.SocketHandle{
		Type:   c.Classify(NativeFamily(conn.Family), NativeKind(conn.Type)),
		Status: conn.Status,
	}
	if c.unix && NativeFamily(conn.Family) == FamilyUnix {
		h.Local = conn.Laddr.IP
		return h
	}
	h.Local = formatAddr(conn.Laddr)
	if conn.Raddr.IP != "" && conn.Raddr.Port != 0 {
		h.Remote = formatAddr(conn.Raddr)
	}
	return h
}

func formatAddr(a net.Addr) string {
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}
