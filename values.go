package memscan

import (
	"encoding/binary"
	"math"

	"github.com/zk-fathom/memscan/memerr"
)

// ValueType is the closed set of scalar types the engine understands.
type ValueType int

const (
	TypeI8 ValueType = iota
	TypeI16
	TypeI32
	TypeI64
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeF32
	TypeF64
)

// Size returns the byte width of the type: 1, 2, 4, or 8.
func (t ValueType) Size() int {
	switch t {
	case TypeI8, TypeU8:
		return 1
	case TypeI16, TypeU16:
		return 2
	case TypeI32, TypeU32, TypeF32:
		return 4
	case TypeI64, TypeU64, TypeF64:
		return 8
	default:
		return 0
	}
}

func (t ValueType) String() string {
	switch t {
	case TypeI8:
		return "i8"
	case TypeI16:
		return "i16"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	default:
		return "unknown"
	}
}

// Value is a tagged scalar. Exactly one field is meaningful, selected by
// Type. Equality, ordering, and arithmetic are defined only when both
// operands share the same Type.
type Value struct {
	Type ValueType
	i    int64
	u    uint64
	f    float64
}

func I8(v int8) Value    { return Value{Type: TypeI8, i: int64(v)} }
func I16(v int16) Value  { return Value{Type: TypeI16, i: int64(v)} }
func I32(v int32) Value  { return Value{Type: TypeI32, i: int64(v)} }
func I64(v int64) Value  { return Value{Type: TypeI64, i: v} }
func U8(v uint8) Value   { return Value{Type: TypeU8, u: uint64(v)} }
func U16(v uint16) Value { return Value{Type: TypeU16, u: uint64(v)} }
func U32(v uint32) Value { return Value{Type: TypeU32, u: uint64(v)} }
func U64(v uint64) Value { return Value{Type: TypeU64, u: v} }
func F32(v float32) Value {
	return Value{Type: TypeF32, f: float64(v)}
}
func F64(v float64) Value { return Value{Type: TypeF64, f: v} }

// AsI64 returns the value as an int64, valid only for signed integer types.
func (v Value) AsI64() int64 { return v.i }

// AsU64 returns the value as a uint64, valid only for unsigned integer types.
func (v Value) AsU64() uint64 { return v.u }

// AsF64 returns the value as a float64, valid only for float types. Use
// ToF64 for a lossy widening across all types.
func (v Value) AsF64() float64 { return v.f }

// FromBytes decodes a little-endian scalar of typ from buf at offset.
// Returns ok=false if offset+typ.Size() exceeds len(buf), matching the
// spec's "absent, not an error" decode-failure contract.
func FromBytes(buf []byte, offset int, typ ValueType) (value Value, ok bool) {
	size := typ.Size()
	if offset < 0 || size == 0 || offset+size > len(buf) {
		return Value{}, false
	}
	window := buf[offset : offset+size]

	switch typ {
	case TypeI8:
		return I8(int8(window[0])), true
	case TypeU8:
		return U8(window[0]), true
	case TypeI16:
		return I16(int16(binary.LittleEndian.Uint16(window))), true
	case TypeU16:
		return U16(binary.LittleEndian.Uint16(window)), true
	case TypeI32:
		return I32(int32(binary.LittleEndian.Uint32(window))), true
	case TypeU32:
		return U32(binary.LittleEndian.Uint32(window)), true
	case TypeI64:
		return I64(int64(binary.LittleEndian.Uint64(window))), true
	case TypeU64:
		return U64(binary.LittleEndian.Uint64(window)), true
	case TypeF32:
		return F32(math.Float32frombits(binary.LittleEndian.Uint32(window))), true
	case TypeF64:
		return F64(math.Float64frombits(binary.LittleEndian.Uint64(window))), true
	default:
		return Value{}, false
	}
}

// ToBytes little-endian encodes v, always exactly Type.Size() bytes.
func ToBytes(v Value) []byte {
	buf := make([]byte, v.Type.Size())
	switch v.Type {
	case TypeI8:
		buf[0] = byte(v.i)
	case TypeU8:
		buf[0] = byte(v.u)
	case TypeI16:
		binary.LittleEndian.PutUint16(buf, uint16(v.i))
	case TypeU16:
		binary.LittleEndian.PutUint16(buf, uint16(v.u))
	case TypeI32:
		binary.LittleEndian.PutUint32(buf, uint32(v.i))
	case TypeU32:
		binary.LittleEndian.PutUint32(buf, uint32(v.u))
	case TypeI64:
		binary.LittleEndian.PutUint64(buf, uint64(v.i))
	case TypeU64:
		binary.LittleEndian.PutUint64(buf, v.u)
	case TypeF32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v.f)))
	case TypeF64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.f))
	}
	return buf
}

// Equals reports value equality. Differing Type always yields false,
// never an error; float equality follows IEEE-754 (NaN != NaN).
func (v Value) Equals(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case TypeF32, TypeF64:
		return v.f == other.f
	case TypeU8, TypeU16, TypeU32, TypeU64:
		return v.u == other.u
	default:
		return v.i == other.i
	}
}

// LessThan reports whether v < other. Differing Type yields false. Float
// ordering is IEEE-754: NaN is neither less-than nor greater-than anything.
func (v Value) LessThan(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case TypeF32, TypeF64:
		return v.f < other.f
	case TypeU8, TypeU16, TypeU32, TypeU64:
		return v.u < other.u
	default:
		return v.i < other.i
	}
}

// GreaterThan reports whether v > other. Differing Type yields false.
func (v Value) GreaterThan(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case TypeF32, TypeF64:
		return v.f > other.f
	case TypeU8, TypeU16, TypeU32, TypeU64:
		return v.u > other.u
	default:
		return v.i > other.i
	}
}

// ArithOp is the arithmetic operator tag for Apply.
type ArithOp int

const (
	ArithAdd ArithOp = iota
	ArithSubtract
	ArithMultiply
	ArithDivide
)

// Apply computes a `op` b. Integer operations wrap on overflow. Float
// operations follow IEEE-754. Divide-by-zero on an integer type is the one
// partial case: Go has no wrapping-division primitive, so it returns a
// TypeMismatch error rather than inventing ad-hoc semantics (see DESIGN.md).
// Type-mismatched operands always yield an error.
func Apply(a Value, op ArithOp, b Value) (Value, error) {
	if a.Type != b.Type {
		return Value{}, memerr.TypeMismatchf("cannot apply %v to %v and %v", op, a.Type, b.Type)
	}

	switch a.Type {
	case TypeF32, TypeF64:
		var r float64
		switch op {
		case ArithAdd:
			r = a.f + b.f
		case ArithSubtract:
			r = a.f - b.f
		case ArithMultiply:
			r = a.f * b.f
		case ArithDivide:
			r = a.f / b.f
		}
		return Value{Type: a.Type, f: r}, nil

	case TypeU8, TypeU16, TypeU32, TypeU64:
		if op == ArithDivide && b.u == 0 {
			return Value{}, memerr.TypeMismatchf("integer divide by zero")
		}
		var r uint64
		switch op {
		case ArithAdd:
			r = a.u + b.u
		case ArithSubtract:
			r = a.u - b.u
		case ArithMultiply:
			r = a.u * b.u
		case ArithDivide:
			r = a.u / b.u
		}
		return Value{Type: a.Type, u: truncateUnsigned(r, a.Type)}, nil

	default: // signed integers
		if op == ArithDivide && b.i == 0 {
			return Value{}, memerr.TypeMismatchf("integer divide by zero")
		}
		var r int64
		switch op {
		case ArithAdd:
			r = a.i + b.i
		case ArithSubtract:
			r = a.i - b.i
		case ArithMultiply:
			r = a.i * b.i
		case ArithDivide:
			r = a.i / b.i
		}
		return Value{Type: a.Type, i: truncateSigned(r, a.Type)}, nil
	}
}

func truncateUnsigned(v uint64, typ ValueType) uint64 {
	switch typ {
	case TypeU8:
		return uint64(uint8(v))
	case TypeU16:
		return uint64(uint16(v))
	case TypeU32:
		return uint64(uint32(v))
	default:
		return v
	}
}

func truncateSigned(v int64, typ ValueType) int64 {
	switch typ {
	case TypeI8:
		return int64(int8(v))
	case TypeI16:
		return int64(int16(v))
	case TypeI32:
		return int64(int32(v))
	default:
		return v
	}
}

// Subtract returns a - b when types match, using the same wrapping/IEEE
// rules as Apply(a, ArithSubtract, b). Unlike Apply, subtraction of
// integers never fails (only division can), so Subtract reports success
// via ok rather than an error.
func Subtract(a, b Value) (value Value, ok bool) {
	if a.Type != b.Type {
		return Value{}, false
	}
	v, err := Apply(a, ArithSubtract, b)
	if err != nil {
		return Value{}, false
	}
	return v, true
}

// ToF64 is a lossy widening of v to float64, used for margin comparisons
// in filter_checkpoint_relative.
func ToF64(v Value) float64 {
	switch v.Type {
	case TypeF32, TypeF64:
		return v.f
	case TypeU8, TypeU16, TypeU32, TypeU64:
		return float64(v.u)
	default:
		return float64(v.i)
	}
}

func (op ArithOp) String() string {
	switch op {
	case ArithAdd:
		return "add"
	case ArithSubtract:
		return "subtract"
	case ArithMultiply:
		return "multiply"
	case ArithDivide:
		return "divide"
	default:
		return "unknown"
	}
}
