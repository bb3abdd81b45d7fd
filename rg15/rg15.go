// Package rg15 holds the wire vocabulary of the Hydreon RG-15 rain gauge:
// command letters, acknowledgement rules, the baud table and the poll line
// format. Nothing in here performs I/O.
package rg15

import (
	"fmt"
	"strings"
)

const (
	// Terminal Control
	LF = '\n'

	// Single letter commands
	CmdPolling    = 'p'
	CmdHighRes    = 'h'
	CmdLowRes     = 'l'
	CmdMetric     = 'm'
	CmdImperial   = 'i'
	CmdRead       = 'r'
	CmdRestart    = 'k'
	CmdResetTotal = 'o'

	// Baud change command prefix and its acknowledgement prefix
	CmdBaud = "b"
	AckBaud = "Baud"
)

// Unit is the measurement system the gauge reports in. The value is the
// command letter that selects it.
type Unit byte

const (
	UnitUnknown  Unit = 0
	UnitMetric   Unit = CmdMetric
	UnitImperial Unit = CmdImperial
)

func (u Unit) String() string {
	switch u {
	case UnitMetric:
		return "metric"
	case UnitImperial:
		return "imperial"
	default:
		return "unknown"
	}
}

func (u Unit) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

// Valid reports whether u is one of the two units the sensor supports.
func (u Unit) Valid() bool {
	return u == UnitMetric || u == UnitImperial
}

// ParseUnit accepts "metric", "imperial" or their command letters.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "metric", "m", "mm":
		return UnitMetric, nil
	case "imperial", "i", "in":
		return UnitImperial, nil
	}
	return UnitUnknown, fmt.Errorf("rg15: unknown unit %q", s)
}

// unitFromToken maps the unit token of a poll line ("mm", "mm,", "in,") to
// a Unit by its first letter.
func unitFromToken(tok string) Unit {
	if tok == "" {
		return UnitUnknown
	}
	switch Unit(tok[0]) {
	case UnitMetric:
		return UnitMetric
	case UnitImperial:
		return UnitImperial
	}
	return UnitUnknown
}

// Resolution is the bucket resolution setting.
type Resolution int

const (
	ResolutionUnknown Resolution = iota
	ResolutionHigh
	ResolutionLow
)

func (r Resolution) String() string {
	switch r {
	case ResolutionHigh:
		return "high"
	case ResolutionLow:
		return "low"
	default:
		return "unknown"
	}
}

func (r Resolution) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Acked reports whether resp acknowledges the single letter command cmd.
// The sensor echoes the command letter in lower case; the comparison is
// case-insensitive on both sides.
func Acked(cmd byte, resp string) bool {
	if resp == "" {
		return false
	}
	return Lower(resp[0]) == Lower(cmd)
}

// Lower returns the lower-case form of an ASCII command letter.
func Lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
