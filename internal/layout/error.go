package layout

import (
	"fmt"
	"strings"

	"sierranative/internal/errs"
	"sierranative/internal/sierra"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursiveUnsized indicates a recursive type with no fixed size.
	LayoutErrRecursiveUnsized LayoutErrorKind = iota + 1
	LayoutErrUnknownType
	LayoutErrSizeConversion
	LayoutErrResolver
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  sierra.TypeID
	Cycle []sierra.TypeID // for LayoutErrRecursiveUnsized
	Err   error           // for LayoutErrSizeConversion and LayoutErrResolver
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursiveUnsized:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite size (%s)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, id.String())
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrUnknownType:
		return fmt.Sprintf("no layout for unknown type %s", e.Type)
	case LayoutErrSizeConversion:
		return fmt.Sprintf("size conversion error (%s): %v", e.Type, e.Err)
	case LayoutErrResolver:
		return fmt.Sprintf("layout of %s: %v", e.Type, e.Err)
	default:
		return fmt.Sprintf("layout error kind=%d %s", e.Kind, e.Type)
	}
}

func (e *LayoutError) Unwrap() error        { return e.Err }
func (e *LayoutError) ErrorKind() errs.Kind { return errs.KindLayout }
