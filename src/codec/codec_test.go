package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bptreekv/src/codec"
)

func TestNumericRoundtrip(t *testing.T) {
	buf := make([]byte, 16)

	t.Run("uint32", func(t *testing.T) {
		c := codec.Uint32Codec{}
		n, err := c.Encode(0xDEADBEEF, buf)
		require.NoError(t, err)
		assert.Equal(t, c.BinSize(), n)
		v, n2, err := c.Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, uint32(0xDEADBEEF), v)
		assert.Equal(t, c.BinSize(), n2)
	})

	t.Run("int64 negative", func(t *testing.T) {
		c := codec.Int64Codec{}
		_, err := c.Encode(-12345, buf)
		require.NoError(t, err)
		v, _, err := c.Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, int64(-12345), v)
	})

	t.Run("big-endian ordering matches unsigned ordering", func(t *testing.T) {
		c := codec.Uint32Codec{}
		bufA := make([]byte, 4)
		bufB := make([]byte, 4)
		_, _ = c.Encode(1, bufA)
		_, _ = c.Encode(2, bufB)
		assert.True(t, string(bufA) < string(bufB))
	})
}

func TestFloatRoundtrip(t *testing.T) {
	buf := make([]byte, 8)
	c := codec.Float64Codec{}
	_, err := c.Encode(3.14159265358979, buf)
	require.NoError(t, err)
	v, _, err := c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, 3.14159265358979, v)
}

func TestBufferTooShort(t *testing.T) {
	c := codec.Uint64Codec{}
	_, err := c.Encode(1, make([]byte, 4))
	assert.ErrorIs(t, err, codec.ErrBufferTooShort)

	_, _, err = c.Decode(make([]byte, 4))
	assert.ErrorIs(t, err, codec.ErrBufferTooShort)
}

func TestFixedString(t *testing.T) {
	c := codec.FixedStringCodec{Capacity: 50}
	buf := make([]byte, 50)

	s, err := codec.NewFixedString(50, "金庸")
	require.NoError(t, err)
	_, err = c.Encode(s, buf)
	require.NoError(t, err)

	got, _, err := c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestFixedStringExactCapacityNoTerminator(t *testing.T) {
	c := codec.FixedStringCodec{Capacity: 4}
	buf := make([]byte, 4)
	s, err := codec.NewFixedString(4, "abcd")
	require.NoError(t, err)
	_, err = c.Encode(s, buf)
	require.NoError(t, err)
	for _, b := range buf {
		assert.NotEqual(t, byte(0), b)
	}
	got, _, err := c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestFixedStringRejectsOverlongAtConstruction(t *testing.T) {
	_, err := codec.NewFixedString(4, "abcde")
	assert.ErrorIs(t, err, codec.ErrMalformed)
}

func TestFixedStringRejectsInvalidUTF8OnDecode(t *testing.T) {
	c := codec.FixedStringCodec{Capacity: 4}
	buf := []byte{0xff, 0xfe, 0, 0}
	_, _, err := c.Decode(buf)
	assert.ErrorIs(t, err, codec.ErrMalformed)
}
