package domain

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// MaxAffinityProcessors is the number of logical processors addressable by one affinity mask
const MaxAffinityProcessors = 64

// AffinityMode selects how the CPU affinity of a launched process is chosen
type AffinityMode string

const (
	// AffinityAuto uses every logical processor except processor 0
	AffinityAuto AffinityMode = "auto"
	// AffinityMask applies an explicit bitmask
	AffinityMask AffinityMode = "mask"
	// AffinityNone leaves the process affinity untouched
	AffinityNone AffinityMode = "none"
)

// AffinitySpec is the affinity configured on a launch entry
type AffinitySpec struct {
	Mode AffinityMode
	Mask uint64
}

// AutoAffinity returns the Auto affinity spec
func AutoAffinity() AffinitySpec { return AffinitySpec{Mode: AffinityAuto} }

// NoAffinity returns the None affinity spec
func NoAffinity() AffinitySpec { return AffinitySpec{Mode: AffinityNone} }

// MaskAffinity returns an explicit affinity spec
func MaskAffinity(mask uint64) AffinitySpec { return AffinitySpec{Mode: AffinityMask, Mask: mask} }

// ParseAffinity parses "auto", "none" or a hexadecimal mask with optional 0x prefix.
// An empty string means auto.
func ParseAffinity(s string) (AffinitySpec, error) {
	v := strings.TrimSpace(s)
	switch strings.ToLower(v) {
	case "", "auto":
		return AutoAffinity(), nil
	case "none":
		return NoAffinity(), nil
	}

	hex := v
	if strings.HasPrefix(strings.ToLower(hex), "0x") {
		hex = hex[2:]
	}
	mask, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return AffinitySpec{}, fmt.Errorf("invalid affinity mask %q: %w", s, err)
	}
	if mask == 0 {
		return AffinitySpec{}, fmt.Errorf("affinity mask must be non-zero")
	}
	return MaskAffinity(mask), nil
}

// AutoAffinityMask returns a mask selecting all logical processors except processor 0.
// A single-processor host gets processor 0 since nothing else is available.
func AutoAffinityMask(logicalProcessors int) uint64 {
	if logicalProcessors <= 1 {
		return 0x1
	}
	return allProcessorsMask(logicalProcessors) &^ 0x1
}

func allProcessorsMask(logicalProcessors int) uint64 {
	if logicalProcessors >= MaxAffinityProcessors {
		return ^uint64(0)
	}
	return (uint64(1) << uint(logicalProcessors)) - 1
}

// Resolve returns the concrete mask for a host and whether it should be applied at all
func (a AffinitySpec) Resolve(logicalProcessors int) (uint64, bool) {
	switch a.Mode {
	case AffinityNone:
		return 0, false
	case AffinityMask:
		return a.Mask, true
	default:
		return AutoAffinityMask(logicalProcessors), true
	}
}

// Validate checks an explicit mask against the host's logical processor count
func (a AffinitySpec) Validate(logicalProcessors int) error {
	switch a.Mode {
	case AffinityAuto, AffinityNone, "":
		return nil
	case AffinityMask:
	default:
		return fmt.Errorf("unknown affinity mode %q", a.Mode)
	}

	if a.Mask == 0 {
		return fmt.Errorf("affinity mask must be non-zero")
	}
	if logicalProcessors > 0 && a.Mask&^allProcessorsMask(logicalProcessors) != 0 {
		return fmt.Errorf("affinity mask 0x%X selects processor %d but host has %d logical processors",
			a.Mask, bits.Len64(a.Mask)-1, logicalProcessors)
	}
	return nil
}

// String returns the text form of the spec
func (a AffinitySpec) String() string {
	switch a.Mode {
	case AffinityNone:
		return "none"
	case AffinityMask:
		return fmt.Sprintf("0x%X", a.Mask)
	default:
		return "auto"
	}
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *AffinitySpec) UnmarshalText(text []byte) error {
	parsed, err := ParseAffinity(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (a AffinitySpec) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
