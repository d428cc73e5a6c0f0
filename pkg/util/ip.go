package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParseIPv4 parses a dotted-quad IPv4 address into host byte order.
func ParseIPv4(s string) (uint32, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return 0, fmt.Errorf("not an IP address: %s", s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("not an IPv4 address: %s", s)
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]), nil
}

// FormatIPv4 renders a host-byte-order address as a dotted quad.
func FormatIPv4(addr uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", addr>>24, addr>>16&0xFF, addr>>8&0xFF, addr&0xFF)
}

// MaskFor returns the network mask for a prefix length (0..32).
// Length 0 yields an all-zero mask so the default route covers everything.
func MaskFor(length uint8) uint32 {
	if length == 0 {
		return 0
	}
	return 0xFFFFFFFF << (32 - uint32(length))
}

// SplitCIDR splits "a.b.c.d/len" into address text and length.
func SplitCIDR(cidr string) (string, int, error) {
	parts := strings.Split(cidr, "/")
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("missing mask length in %q", cidr)
	}
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("bad mask length %q", parts[1])
	}
	return parts[0], length, nil
}

// IsValidIPv4 checks if a string is a valid IPv4 address
func IsValidIPv4(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	return ip != nil && ip.To4() != nil
}
