package lvm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cuemby/converge/pkg/types"
)

var sizePattern = regexp.MustCompile(`^([0-9]+)([A-Za-z])$`)

// unit multipliers into kB
var sizeUnits = map[string]uint64{
	"M": 1024,
	"G": 1024 * 1024,
	"T": 1024 * 1024 * 1024,
}

// ParseSize converts a size such as "10G" into kB. Only whole numbers with
// a T, G or M suffix are accepted; the conversion is exact.
func ParseSize(s string) (uint64, error) {
	m := sizePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("%w: malformed size %q", types.ErrValidation, s)
	}

	unit, ok := sizeUnits[strings.ToUpper(m[2])]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported size unit %q in %q", types.ErrValidation, m[2], s)
	}

	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed size %q: %v", types.ErrValidation, s, err)
	}
	if n > ^uint64(0)/unit {
		return 0, fmt.Errorf("%w: size %q overflows", types.ErrValidation, s)
	}
	return n * unit, nil
}
