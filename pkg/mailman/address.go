package mailman

import (
	"net/mail"
	"strings"
)

// NormalizeAddress strips a display name and returns the bare address.
// Input that does not parse as an address is returned trimmed.
func NormalizeAddress(s string) string {
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return s
	}
	return addr.Address
}

// NormalizeAddresses normalizes every entry, dropping empty ones and
// duplicates while keeping the first occurrence's order
func NormalizeAddresses(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		a := NormalizeAddress(s)
		if a == "" || seen[addressKey(a)] {
			continue
		}
		seen[addressKey(a)] = true
		out = append(out, a)
	}
	return out
}

// addressSet is a case-insensitive set of normalized addresses
type addressSet map[string]bool

func newAddressSet(addrs []string) addressSet {
	set := make(addressSet, len(addrs))
	for _, a := range addrs {
		set.add(a)
	}
	return set
}

func (s addressSet) add(a string) {
	s[addressKey(a)] = true
}

func (s addressSet) has(a string) bool {
	return s[addressKey(a)]
}

// equal reports whether both sets hold the same addresses
func (s addressSet) equal(other addressSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if !other[k] {
			return false
		}
	}
	return true
}

func addressKey(a string) string {
	return strings.ToLower(a)
}
