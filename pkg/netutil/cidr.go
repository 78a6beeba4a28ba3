// Package netutil provides IPv4 address-space expansion for scan targets.
package netutil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"net/netip"
	"strconv"
	"strings"
)

// ErrInvalidCIDR indicates a malformed or out-of-policy CIDR block.
var ErrInvalidCIDR = errors.New("invalid CIDR block")

// MinPrefixLen is the smallest prefix length accepted for expansion. Anything
// shorter would enumerate an address space far beyond a sane batch multiple.
const MinPrefixLen = 8

// CIDRBlock is an IPv4 network address plus prefix length.
type CIDRBlock struct {
	Network netip.Addr
	Prefix  int
}

// ParseCIDR parses "network/prefixLength" into a CIDRBlock. The prefix must be
// numeric, within 0-32 and at least minPrefix. Pass MinPrefixLen for the
// default policy.
func ParseCIDR(s string, minPrefix int) (CIDRBlock, error) {
	netPart, prefixPart, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return CIDRBlock{}, fmt.Errorf("%w: %q: missing prefix length", ErrInvalidCIDR, s)
	}

	addr, err := netip.ParseAddr(netPart)
	if err != nil || !addr.Is4() {
		return CIDRBlock{}, fmt.Errorf("%w: %q: not an IPv4 network address", ErrInvalidCIDR, s)
	}

	prefix, err := strconv.Atoi(prefixPart)
	if err != nil {
		return CIDRBlock{}, fmt.Errorf("%w: %q: prefix length is not numeric", ErrInvalidCIDR, s)
	}
	if prefix < 0 || prefix > 32 {
		return CIDRBlock{}, fmt.Errorf("%w: %q: prefix length out of range 0-32", ErrInvalidCIDR, s)
	}
	if prefix < minPrefix {
		return CIDRBlock{}, fmt.Errorf("%w: %q: prefix length below minimum /%d", ErrInvalidCIDR, s, minPrefix)
	}

	return CIDRBlock{Network: addr, Prefix: prefix}, nil
}

// HostCount returns the number of addresses the block expands to.
func (b CIDRBlock) HostCount() uint64 {
	return 1 << (32 - b.Prefix)
}

// Range returns the inclusive first and last address of the block: the network
// address with host bits cleared and with host bits set.
func (b CIDRBlock) Range() (first, last netip.Addr) {
	base := addrToUint32(b.Network)
	var mask uint32
	if b.Prefix > 0 {
		mask = ^uint32(0) << (32 - b.Prefix)
	}
	return uint32ToAddr(base & mask), uint32ToAddr(base&mask | ^mask)
}

// Addresses yields every address in the block in ascending numeric order. The
// sequence is lazy and restartable; a /8 walks ~16M addresses without
// materializing them.
func (b CIDRBlock) Addresses() iter.Seq[netip.Addr] {
	first, last := b.Range()
	lo, hi := uint64(addrToUint32(first)), uint64(addrToUint32(last))
	return func(yield func(netip.Addr) bool) {
		for cur := lo; cur <= hi; cur++ {
			if !yield(uint32ToAddr(uint32(cur))) {
				return
			}
		}
	}
}

func addrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uint32ToAddr(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}
