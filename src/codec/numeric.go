package codec

import "encoding/binary"

// Uint8Codec encodes a single byte.
type Uint8Codec struct{}

func (Uint8Codec) BinSize() int { return 1 }

func (Uint8Codec) Encode(v uint8, buf []byte) (int, error) {
	if err := checkLen(buf, 1); err != nil {
		return 0, err
	}
	buf[0] = v
	return 1, nil
}

func (Uint8Codec) Decode(buf []byte) (uint8, int, error) {
	if err := checkLen(buf, 1); err != nil {
		return 0, 0, err
	}
	return buf[0], 1, nil
}

// Int8Codec encodes a signed byte.
type Int8Codec struct{}

func (Int8Codec) BinSize() int { return 1 }

func (Int8Codec) Encode(v int8, buf []byte) (int, error) {
	if err := checkLen(buf, 1); err != nil {
		return 0, err
	}
	buf[0] = byte(v)
	return 1, nil
}

func (Int8Codec) Decode(buf []byte) (int8, int, error) {
	if err := checkLen(buf, 1); err != nil {
		return 0, 0, err
	}
	return int8(buf[0]), 1, nil
}

// Uint16Codec encodes a big-endian uint16.
type Uint16Codec struct{}

func (Uint16Codec) BinSize() int { return 2 }

func (Uint16Codec) Encode(v uint16, buf []byte) (int, error) {
	if err := checkLen(buf, 2); err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint16(buf, v)
	return 2, nil
}

func (Uint16Codec) Decode(buf []byte) (uint16, int, error) {
	if err := checkLen(buf, 2); err != nil {
		return 0, 0, err
	}
	return binary.BigEndian.Uint16(buf), 2, nil
}

// Int16Codec encodes a big-endian int16.
type Int16Codec struct{}

func (Int16Codec) BinSize() int { return 2 }

func (Int16Codec) Encode(v int16, buf []byte) (int, error) {
	if err := checkLen(buf, 2); err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint16(buf, uint16(v))
	return 2, nil
}

func (Int16Codec) Decode(buf []byte) (int16, int, error) {
	if err := checkLen(buf, 2); err != nil {
		return 0, 0, err
	}
	return int16(binary.BigEndian.Uint16(buf)), 2, nil
}

// Uint32Codec encodes a big-endian uint32. This is also the codec the Page
// and Tree use internally for page identifiers and pointers.
type Uint32Codec struct{}

func (Uint32Codec) BinSize() int { return 4 }

func (Uint32Codec) Encode(v uint32, buf []byte) (int, error) {
	if err := checkLen(buf, 4); err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint32(buf, v)
	return 4, nil
}

func (Uint32Codec) Decode(buf []byte) (uint32, int, error) {
	if err := checkLen(buf, 4); err != nil {
		return 0, 0, err
	}
	return binary.BigEndian.Uint32(buf), 4, nil
}

// Int32Codec encodes a big-endian int32.
type Int32Codec struct{}

func (Int32Codec) BinSize() int { return 4 }

func (Int32Codec) Encode(v int32, buf []byte) (int, error) {
	if err := checkLen(buf, 4); err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint32(buf, uint32(v))
	return 4, nil
}

func (Int32Codec) Decode(buf []byte) (int32, int, error) {
	if err := checkLen(buf, 4); err != nil {
		return 0, 0, err
	}
	return int32(binary.BigEndian.Uint32(buf)), 4, nil
}

// Uint64Codec encodes a big-endian uint64.
type Uint64Codec struct{}

func (Uint64Codec) BinSize() int { return 8 }

func (Uint64Codec) Encode(v uint64, buf []byte) (int, error) {
	if err := checkLen(buf, 8); err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint64(buf, v)
	return 8, nil
}

func (Uint64Codec) Decode(buf []byte) (uint64, int, error) {
	if err := checkLen(buf, 8); err != nil {
		return 0, 0, err
	}
	return binary.BigEndian.Uint64(buf), 8, nil
}

// Int64Codec encodes a big-endian int64.
type Int64Codec struct{}

func (Int64Codec) BinSize() int { return 8 }

func (Int64Codec) Encode(v int64, buf []byte) (int, error) {
	if err := checkLen(buf, 8); err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint64(buf, uint64(v))
	return 8, nil
}

func (Int64Codec) Decode(buf []byte) (int64, int, error) {
	if err := checkLen(buf, 8); err != nil {
		return 0, 0, err
	}
	return int64(binary.BigEndian.Uint64(buf)), 8, nil
}

// UintCodec encodes a platform-word-width unsigned integer, stored as a
// fixed 8 bytes so that file format does not change across 32/64-bit
// builds of the same Go toolchain generation.
type UintCodec struct{}

func (UintCodec) BinSize() int { return 8 }

func (UintCodec) Encode(v uint, buf []byte) (int, error) {
	if err := checkLen(buf, 8); err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint64(buf, uint64(v))
	return 8, nil
}

func (UintCodec) Decode(buf []byte) (uint, int, error) {
	if err := checkLen(buf, 8); err != nil {
		return 0, 0, err
	}
	return uint(binary.BigEndian.Uint64(buf)), 8, nil
}

// IntCodec encodes a platform-word-width signed integer, stored as a fixed
// 8 bytes for the same reason as UintCodec.
type IntCodec struct{}

func (IntCodec) BinSize() int { return 8 }

func (IntCodec) Encode(v int, buf []byte) (int, error) {
	if err := checkLen(buf, 8); err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint64(buf, uint64(int64(v)))
	return 8, nil
}

func (IntCodec) Decode(buf []byte) (int, int, error) {
	if err := checkLen(buf, 8); err != nil {
		return 0, 0, err
	}
	return int(int64(binary.BigEndian.Uint64(buf))), 8, nil
}
