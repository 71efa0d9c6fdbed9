// Package layout answers target-layout queries against a module's
// datalayout string: allocation sizes of types and the machine pointer
// width that drives address arithmetic.
package layout

import (
	"strconv"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"
)

// defaultPointerBits applies when the module carries no datalayout or
// no default-address-space pointer spec.
const defaultPointerBits = 64

// Info holds the layout parameters of one module.
type Info struct {
	ptrBits int
}

// New derives layout information from m's datalayout string.
func New(m *ir.Module) *Info {
	return &Info{ptrBits: pointerBits(m.DataLayout)}
}

// PointerBits is the width of a default-address-space pointer.
func (l *Info) PointerBits() int {
	return l.ptrBits
}

// SizeType is the integer type used for byte counts: i64 on targets
// with pointers wider than 32 bits, i32 otherwise.
func (l *Info) SizeType() *types.IntType {
	if l.ptrBits > 32 {
		return types.I64
	}
	return types.I32
}

// Alloc is the number of bytes a value of type t occupies in memory,
// including tail padding.
func (l *Info) Alloc(t types.Type) (int64, error) {
	switch t := t.(type) {
	case *types.IntType:
		size := (int64(t.BitSize) + 7) / 8
		return roundUp(size, l.align(t)), nil
	case *types.FloatType:
		switch t.Kind {
		case types.FloatKindHalf:
			return 2, nil
		case types.FloatKindFloat:
			return 4, nil
		case types.FloatKindDouble:
			return 8, nil
		case types.FloatKindX86_FP80, types.FloatKindFP128, types.FloatKindPPC_FP128:
			return 16, nil
		}
		return 0, errors.Errorf("unknown float kind %v", t.Kind)
	case *types.PointerType:
		return int64(l.ptrBits / 8), nil
	case *types.ArrayType:
		elem, err := l.Alloc(t.ElemType)
		if err != nil {
			return 0, err
		}
		return int64(t.Len) * elem, nil
	case *types.VectorType:
		elem, err := l.Alloc(t.ElemType)
		if err != nil {
			return 0, err
		}
		return int64(t.Len) * elem, nil
	case *types.StructType:
		return l.structSize(t)
	}
	return 0, errors.Errorf("type %v has no allocation size", t)
}

func (l *Info) structSize(t *types.StructType) (int64, error) {
	if t.Opaque {
		return 0, errors.Errorf("opaque struct %v has no allocation size", t)
	}
	var offset, maxAlign int64
	maxAlign = 1
	for _, field := range t.Fields {
		size, err := l.Alloc(field)
		if err != nil {
			return 0, err
		}
		align := int64(1)
		if !t.Packed {
			align = l.align(field)
			if align > maxAlign {
				maxAlign = align
			}
		}
		offset = roundUp(offset, align) + size
	}
	return roundUp(offset, maxAlign), nil
}

// align is the ABI alignment of t in bytes.
func (l *Info) align(t types.Type) int64 {
	switch t := t.(type) {
	case *types.IntType:
		size := (int64(t.BitSize) + 7) / 8
		return minInt64(nextPow2(size), 16)
	case *types.FloatType:
		size, err := l.Alloc(t)
		if err != nil {
			return 1
		}
		return size
	case *types.PointerType:
		return int64(l.ptrBits / 8)
	case *types.ArrayType:
		return l.align(t.ElemType)
	case *types.VectorType:
		return l.align(t.ElemType)
	case *types.StructType:
		if t.Packed || t.Opaque {
			return 1
		}
		var maxAlign int64 = 1
		for _, field := range t.Fields {
			if a := l.align(field); a > maxAlign {
				maxAlign = a
			}
		}
		return maxAlign
	}
	return 1
}

// Sized reports whether values of type t have a size in memory at all.
// Void, functions, labels, metadata and opaque structs do not.
func Sized(t types.Type) bool {
	switch t := t.(type) {
	case *types.VoidType, *types.FuncType, *types.LabelType, *types.MetadataType:
		return false
	case *types.StructType:
		if t.Opaque {
			return false
		}
		for _, field := range t.Fields {
			if !Sized(field) {
				return false
			}
		}
		return true
	case *types.ArrayType:
		return Sized(t.ElemType)
	case *types.VectorType:
		return Sized(t.ElemType)
	}
	return true
}

// pointerBits extracts the default-address-space pointer width from a
// datalayout string, e.g. "p:64:64" or "e-m:e-p270:32:32-i64:64".
func pointerBits(dataLayout string) int {
	for _, spec := range strings.Split(dataLayout, "-") {
		if !strings.HasPrefix(spec, "p") {
			continue
		}
		rest := strings.TrimPrefix(spec, "p")
		colon := strings.IndexByte(rest, ':')
		if colon < 0 {
			continue
		}
		// An address-space qualifier other than 0 does not describe
		// the default pointer.
		if space := rest[:colon]; space != "" && space != "0" {
			continue
		}
		bits, err := strconv.Atoi(strings.Split(rest[colon+1:], ":")[0])
		if err != nil || bits <= 0 {
			continue
		}
		return bits
	}
	return defaultPointerBits
}

func roundUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

func nextPow2(n int64) int64 {
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
