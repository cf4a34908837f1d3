package config

import (
	"fmt"
	"strconv"
	"strings"
)

// OptLevel selects how much the target module is optimized. Levels are
// ordered.
type OptLevel uint8

const (
	OptNone OptLevel = iota
	OptLess
	OptDefault
	OptAggressive
)

var optNames = [...]string{"none", "less", "default", "aggressive"}

func (l OptLevel) String() string {
	if int(l) < len(optNames) {
		return optNames[l]
	}
	return fmt.Sprintf("OptLevel(%d)", l)
}

// Index is the numeric level, 0 to 3.
func (l OptLevel) Index() int { return int(l) }

// OptLevelFromIndex clamps i into the valid range.
func OptLevelFromIndex(i int) OptLevel {
	switch {
	case i <= 0:
		return OptNone
	case i >= int(OptAggressive):
		return OptAggressive
	default:
		return OptLevel(i) //nolint:gosec // checked above
	}
}

// ParseOptLevel accepts a level name or its index.
func ParseOptLevel(s string) (OptLevel, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for i, n := range optNames {
		if s == n {
			return OptLevel(i), nil //nolint:gosec // index of a short table
		}
	}
	if i, err := strconv.Atoi(s); err == nil && i >= 0 && i <= int(OptAggressive) {
		return OptLevel(i), nil //nolint:gosec // checked above
	}
	return OptDefault, fmt.Errorf("invalid opt level %q (expected none|less|default|aggressive or 0..3)", s)
}

// UnmarshalTOML decodes either a name or an integer.
func (l *OptLevel) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case string:
		p, err := ParseOptLevel(x)
		if err != nil {
			return err
		}
		*l = p
	case int64:
		if x < 0 || x > int64(OptAggressive) {
			return fmt.Errorf("opt level %d out of range 0..3", x)
		}
		*l = OptLevel(x) //nolint:gosec // checked above
	default:
		return fmt.Errorf("opt level must be a string or an integer, got %T", v)
	}
	return nil
}

// MarshalText makes levels print by name.
func (l OptLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }
