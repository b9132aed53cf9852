// Package scope defines the (floor, zone) pair that routes broadcasts and
// partitions the seat map.
package scope

import (
	"fmt"
	"strings"
)

// NoFloor is the floor recorded for a client that joined without one.
const NoFloor = -1

// Zone is an optional sub-division of a floor. The empty Zone means the floor
// has no zones.
type Zone string

const (
	ZoneNone Zone = ""
	ZoneA    Zone = "A"
	ZoneB    Zone = "B"
)

// ParseZone normalises a raw zone value. Blank input and the literal "null"
// mean no zone.
func ParseZone(raw string) (Zone, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "null") {
		return ZoneNone, nil
	}
	switch z := Zone(strings.ToUpper(s)); z {
	case ZoneA, ZoneB:
		return z, nil
	default:
		return ZoneNone, fmt.Errorf("unknown zone %q", raw)
	}
}

// ParseZonePtr is ParseZone for optional wire fields.
func ParseZonePtr(raw *string) (Zone, error) {
	if raw == nil {
		return ZoneNone, nil
	}
	return ParseZone(*raw)
}

// Ptr returns nil for ZoneNone so that optional columns and JSON fields stay
// absent.
func (z Zone) Ptr() *string {
	if z == ZoneNone {
		return nil
	}
	s := string(z)
	return &s
}

// Scope is a (floor, zone) pair.
type Scope struct {
	Floor int
	Zone  Zone
}

// New builds a Scope.
func New(floor int, zone Zone) Scope {
	return Scope{Floor: floor, Zone: zone}
}

// Matches reports whether a message addressed to other reaches a client in s.
// Both must share the floor and either both have no zone or the same zone.
func (s Scope) Matches(other Scope) bool {
	return s.Floor == other.Floor && s.Zone == other.Zone
}

// Key is a compact map key, e.g. "2|A" or "3|".
func (s Scope) Key() string {
	return fmt.Sprintf("%d|%s", s.Floor, s.Zone)
}

// String renders the scope as a label such as "2F-A" or "3F".
func (s Scope) String() string {
	if s.Zone == ZoneNone {
		return fmt.Sprintf("%dF", s.Floor)
	}
	return fmt.Sprintf("%dF-%s", s.Floor, s.Zone)
}
