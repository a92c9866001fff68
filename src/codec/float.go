package codec

import (
	"encoding/binary"
	"math"
)

// Float32Codec stores a float32 as its IEEE-754 bit pattern reinterpreted
// as a uint32, big-endian.
type Float32Codec struct{}

func (Float32Codec) BinSize() int { return 4 }

func (Float32Codec) Encode(v float32, buf []byte) (int, error) {
	if err := checkLen(buf, 4); err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint32(buf, math.Float32bits(v))
	return 4, nil
}

func (Float32Codec) Decode(buf []byte) (float32, int, error) {
	if err := checkLen(buf, 4); err != nil {
		return 0, 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(buf)), 4, nil
}

// Float64Codec stores a float64 as its IEEE-754 bit pattern reinterpreted
// as a uint64, big-endian.
type Float64Codec struct{}

func (Float64Codec) BinSize() int { return 8 }

func (Float64Codec) Encode(v float64, buf []byte) (int, error) {
	if err := checkLen(buf, 8); err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return 8, nil
}

func (Float64Codec) Decode(buf []byte) (float64, int, error) {
	if err := checkLen(buf, 8); err != nil {
		return 0, 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf)), 8, nil
}
