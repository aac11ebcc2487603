package net

import (
	"fmt"
	"net"

	"github.com/taktv6/tflow2/convert"
)

// Prefix represents an IPv4 prefix
type Prefix struct {
	addr   uint32
	pfxlen uint8
}

// NewPfx creates a new Prefix
func NewPfx(addr uint32, pfxlen uint8) Prefix {
	return Prefix{
		addr:   addr,
		pfxlen: pfxlen,
	}
}

// NewPfxFromBytes creates a new Prefix from an address in network byte
// order, as it appears in NLRI fields.
func NewPfxFromBytes(addr [4]byte, pfxlen uint8) Prefix {
	return Prefix{
		addr:   convert.Uint32b(addr[:]),
		pfxlen: pfxlen,
	}
}

// Addr returns the address of the prefix
func (pfx Prefix) Addr() uint32 {
	return pfx.addr
}

// Pfxlen returns the length of the prefix
func (pfx Prefix) Pfxlen() uint8 {
	return pfx.pfxlen
}

// String returns a string representation of pfx
func (pfx Prefix) String() string {
	return fmt.Sprintf("%s/%d", net.IP(convert.Uint32Byte(pfx.addr)), pfx.pfxlen)
}

// Contains checks if x is a subnet of or equal to pfx
func (pfx Prefix) Contains(x Prefix) bool {
	if x.pfxlen < pfx.pfxlen {
		return false
	}

	mask := ^uint32(0) << (32 - pfx.pfxlen)
	return (pfx.addr & mask) == (x.addr & mask)
}

// Equal checks if pfx and x are equal
func (pfx Prefix) Equal(x Prefix) bool {
	return pfx == x
}
