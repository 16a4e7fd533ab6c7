package domain

import (
	"fmt"
	"strings"
)

// Priority is the scheduling tier requested for a launched process
type Priority string

const (
	PriorityBelowNormal Priority = "BelowNormal"
	PriorityNormal      Priority = "Normal"
	PriorityAboveNormal Priority = "AboveNormal"
	PriorityHigh        Priority = "High"
	PriorityRealtime    Priority = "Realtime"
)

// Win32 priority class values
const (
	NormalPriorityClass      uint32 = 0x00000020
	HighPriorityClass        uint32 = 0x00000080
	RealtimePriorityClass    uint32 = 0x00000100
	BelowNormalPriorityClass uint32 = 0x00004000
	AboveNormalPriorityClass uint32 = 0x00008000
)

// ParsePriority parses a priority label. Matching ignores case, spaces and
// any parenthesised suffix, so "Above Normal" and "Realtime (careful)" are accepted.
// An empty label yields High.
func ParsePriority(s string) (Priority, error) {
	label := s
	if i := strings.Index(label, "("); i >= 0 {
		label = label[:i]
	}
	label = strings.ToLower(strings.Join(strings.Fields(label), ""))

	switch label {
	case "":
		return PriorityHigh, nil
	case "belownormal":
		return PriorityBelowNormal, nil
	case "normal":
		return PriorityNormal, nil
	case "abovenormal":
		return PriorityAboveNormal, nil
	case "high":
		return PriorityHigh, nil
	case "realtime":
		return PriorityRealtime, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// Class returns the Win32 priority class for the priority
func (p Priority) Class() uint32 {
	switch p {
	case PriorityBelowNormal:
		return BelowNormalPriorityClass
	case PriorityNormal:
		return NormalPriorityClass
	case PriorityAboveNormal:
		return AboveNormalPriorityClass
	case PriorityRealtime:
		return RealtimePriorityClass
	default:
		return HighPriorityClass
	}
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p), nil
}
