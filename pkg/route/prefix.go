// Package route defines the canonical prefix and route model shared by all
// lookup engines and the control plane.
package route

import (
	"fmt"

	"github.com/softtcam-network/softtcam/pkg/util"
)

// Prefix is a canonical IPv4 CIDR block. The address is stored pre-masked,
// so two prefixes are equal iff their fields are equal. Immutable once
// constructed.
type Prefix struct {
	Addr uint32
	Len  uint8
}

// ParsePrefix parses "a.b.c.d/len" into a canonical Prefix.
// Rejects malformed addresses, missing masks, and lengths above 32.
func ParsePrefix(cidr string) (Prefix, error) {
	addrText, length, err := util.SplitCIDR(cidr)
	if err != nil {
		return Prefix{}, util.NewPrefixError(cidr, err.Error())
	}
	if length < 0 || length > 32 {
		return Prefix{}, util.NewPrefixError(cidr, fmt.Sprintf("mask length %d out of range 0-32", length))
	}
	addr, err := util.ParseIPv4(addrText)
	if err != nil {
		return Prefix{}, util.NewPrefixError(cidr, err.Error())
	}
	return NewPrefix(addr, uint8(length)), nil
}

// NewPrefix builds a canonical prefix, masking the address down to length.
func NewPrefix(addr uint32, length uint8) Prefix {
	if length > 32 {
		length = 32
	}
	return Prefix{Addr: addr & util.MaskFor(length), Len: length}
}

// ParseAddr parses a dotted-quad lookup address into host byte order.
func ParseAddr(ip string) (uint32, error) {
	addr, err := util.ParseIPv4(ip)
	if err != nil {
		return 0, util.NewAddressError(ip)
	}
	return addr, nil
}

// Mask returns the network mask for this prefix.
func (p Prefix) Mask() uint32 {
	return util.MaskFor(p.Len)
}

// Matches reports whether addr falls inside this prefix.
func (p Prefix) Matches(addr uint32) bool {
	return addr&p.Mask() == p.Addr
}

// Equal reports whether two prefixes denote the same block.
func (p Prefix) Equal(other Prefix) bool {
	return p.Addr == other.Addr && p.Len == other.Len
}

// String renders the prefix in CIDR notation.
func (p Prefix) String() string {
	return fmt.Sprintf("%s/%d", util.FormatIPv4(p.Addr), p.Len)
}
