package llvm

import (
	"fmt"
	"math/big"
	"strings"

	"sierranative/internal/target"
)

func llvmType(t target.Type) (string, error) {
	switch t.Kind {
	case target.TyInt:
		if t.Bits <= 0 || t.Bits > target.MaxIntBits {
			return "", fmt.Errorf("invalid integer width %d", t.Bits)
		}
		return fmt.Sprintf("i%d", t.Bits), nil
	case target.TyPtr:
		return "ptr", nil
	case target.TyBlob:
		return fmt.Sprintf("[%d x i8]", t.Size), nil
	default:
		return "", fmt.Errorf("type %s has no LLVM representation", t)
	}
}

// resultType is void, the single result or a literal struct of results.
func resultType(results []target.Type) (string, error) {
	switch len(results) {
	case 0:
		return "void", nil
	case 1:
		return llvmType(results[0])
	}
	parts := make([]string, len(results))
	for i, r := range results {
		ty, err := llvmType(r)
		if err != nil {
			return "", err
		}
		parts[i] = ty
	}
	return "{ " + strings.Join(parts, ", ") + " }", nil
}

// constValue renders a little-endian image as a constant of type t.
func constValue(t target.Type, imm []byte) (string, error) {
	switch t.Kind {
	case target.TyInt:
		if t.Bits == 1 {
			if len(imm) > 0 && imm[0]&1 == 1 {
				return "true", nil
			}
			return "false", nil
		}
		z := target.LoadUint256(imm)
		target.Mask(&z, t.Bits)
		return z.ToBig().String(), nil
	case target.TyPtr:
		v := new(big.Int).SetBytes(reversed(imm))
		if v.Sign() == 0 {
			return "null", nil
		}
		return fmt.Sprintf("inttoptr (i64 %s to ptr)", v), nil
	case target.TyBlob:
		if isZero(imm) {
			return "zeroinitializer", nil
		}
		return formatLLVMBytes(imm, t.Size), nil
	default:
		return "", fmt.Errorf("constant of type %s", t)
	}
}

func zeroValue(t target.Type) string {
	switch t.Kind {
	case target.TyInt:
		if t.Bits == 1 {
			return "false"
		}
		return "0"
	case target.TyPtr:
		return "null"
	default:
		return "zeroinitializer"
	}
}

func formatLLVMBytes(data []byte, arrayLen int) string {
	var sb strings.Builder
	sb.WriteString("c\"")
	for i := range arrayLen {
		b := byte(0)
		if i < len(data) {
			b = data[i]
		}
		fmt.Fprintf(&sb, "\\%02X", b)
	}
	sb.WriteString("\"")
	return sb.String()
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// globalName quotes symbols that are not plain LLVM identifiers.
func globalName(name string) string {
	plain := name != ""
	for i := 0; i < len(name) && plain; i++ {
		c := name[i]
		plain = c == '_' || c == '.' || c == '$' || c == '-' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9' && i > 0)
	}
	if plain {
		return "@" + name
	}
	var sb strings.Builder
	sb.WriteString("@\"")
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '"' || c == '\\' || c < 0x20 || c >= 0x7f {
			fmt.Fprintf(&sb, "\\%02X", c)
			continue
		}
		sb.WriteByte(c)
	}
	sb.WriteString("\"")
	return sb.String()
}
