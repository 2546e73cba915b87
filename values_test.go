package memscan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{"i8", I8(-12)},
		{"i16", I16(-1234)},
		{"i32", I32(-123456)},
		{"i64", I64(-123456789)},
		{"u8", U8(200)},
		{"u16", U16(60000)},
		{"u32", U32(4000000000)},
		{"u64", U64(18000000000000000000)},
		{"f32", F32(3.5)},
		{"f64", F64(2.718281828)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := ToBytes(tt.v)
			require.Len(t, buf, tt.v.Type.Size())

			decoded, ok := FromBytes(buf, 0, tt.v.Type)
			require.True(t, ok)
			assert.True(t, decoded.Equals(tt.v))
		})
	}
}

func TestFromBytesShortBuffer(t *testing.T) {
	_, ok := FromBytes([]byte{1, 2, 3}, 1, TypeI32)
	assert.False(t, ok)
}

func TestValueComparisonsTypeMismatch(t *testing.T) {
	a := I32(5)
	b := U32(5)
	assert.False(t, a.Equals(b))
	assert.False(t, a.LessThan(b))
	assert.False(t, a.GreaterThan(b))
}

func TestValueFloatComparisonNaN(t *testing.T) {
	nan := F64(math.NaN())
	other := F64(1.0)
	assert.False(t, nan.Equals(nan))
	assert.False(t, nan.LessThan(other))
	assert.False(t, nan.GreaterThan(other))
	assert.False(t, other.LessThan(nan))
}

func TestApplyScenarioS4(t *testing.T) {
	sum, err := Apply(I32(10), ArithAdd, I32(5))
	require.NoError(t, err)
	assert.True(t, sum.Equals(I32(15)))

	quot, err := Apply(I32(10), ArithDivide, I32(3))
	require.NoError(t, err)
	assert.True(t, quot.Equals(I32(3)))

	wrapped, err := Apply(U8(255), ArithAdd, U8(1))
	require.NoError(t, err)
	assert.True(t, wrapped.Equals(U8(0)))
}

func TestApplyDivideByZero(t *testing.T) {
	_, err := Apply(I32(10), ArithDivide, I32(0))
	require.Error(t, err)

	_, err = Apply(U32(10), ArithDivide, U32(0))
	require.Error(t, err)
}

func TestApplyTypeMismatch(t *testing.T) {
	_, err := Apply(I32(1), ArithAdd, U32(1))
	require.Error(t, err)
}

func TestSubtract(t *testing.T) {
	diff, ok := Subtract(I32(15), I32(5))
	require.True(t, ok)
	assert.True(t, diff.Equals(I32(10)))

	_, ok = Subtract(I32(1), U32(1))
	assert.False(t, ok)
}

func TestToF64(t *testing.T) {
	assert.Equal(t, 5.0, ToF64(I32(5)))
	assert.Equal(t, 5.0, ToF64(U8(5)))
	assert.Equal(t, 2.5, ToF64(F32(2.5)))
}
