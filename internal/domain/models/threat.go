package models

import (
	"fmt"
	"strings"
)

// ThreatLevel is the severity of a classified link. The zero value is not a valid level.
type ThreatLevel int

const (
	ThreatLevelLow ThreatLevel = iota + 1
	ThreatLevelMedium
	ThreatLevelHigh
)

// String returns the persisted upper-case name of the level
func (l ThreatLevel) String() string {
	switch l {
	case ThreatLevelLow:
		return "LOW"
	case ThreatLevelMedium:
		return "MEDIUM"
	case ThreatLevelHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("ThreatLevel(%d)", int(l))
	}
}

// Valid reports whether l is one of the defined levels
func (l ThreatLevel) Valid() bool {
	return l >= ThreatLevelLow && l <= ThreatLevelHigh
}

// AtLeast reports whether l is as severe as other or more
func (l ThreatLevel) AtLeast(other ThreatLevel) bool {
	return l >= other
}

// ParseThreatLevel converts a level name (case-insensitive) to a ThreatLevel
func ParseThreatLevel(s string) (ThreatLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return ThreatLevelLow, nil
	case "MEDIUM":
		return ThreatLevelMedium, nil
	case "HIGH":
		return ThreatLevelHigh, nil
	default:
		return 0, fmt.Errorf("unknown threat level %q", s)
	}
}

func (l ThreatLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid threat level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *ThreatLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseThreatLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// LevelFilter selects flagged links by level. LevelAll matches every record.
type LevelFilter struct {
	level ThreatLevel
}

// LevelAll matches records of any level
var LevelAll = LevelFilter{}

// OnlyLevel returns a filter matching exactly one level
func OnlyLevel(level ThreatLevel) LevelFilter {
	return LevelFilter{level: level}
}

// ParseLevelFilter accepts a level name, "ALL" or an empty string
func ParseLevelFilter(s string) (LevelFilter, error) {
	if s == "" || strings.EqualFold(s, "all") {
		return LevelAll, nil
	}
	level, err := ParseThreatLevel(s)
	if err != nil {
		return LevelAll, err
	}
	return OnlyLevel(level), nil
}

// Level returns the selected level and false for LevelAll
func (f LevelFilter) Level() (ThreatLevel, bool) {
	return f.level, f.level != 0
}

// Matches reports whether a record of the given level passes the filter
func (f LevelFilter) Matches(level ThreatLevel) bool {
	return f.level == 0 || f.level == level
}

func (f LevelFilter) String() string {
	if f.level == 0 {
		return "ALL"
	}
	return f.level.String()
}

// ClassificationResult is the verdict for a single URL
type ClassificationResult struct {
	IsThreat bool        `json:"is_threat"`
	Level    ThreatLevel `json:"level"`
	// Reason is the explanation of the first matching rule only
	Reason string `json:"reason"`
}
