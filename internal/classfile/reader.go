package classfile

import (
	"encoding/binary"
	"fmt"
)

// ByteStream is a big-endian cursor over an in-memory class file. Every
// multi-byte read assembles its value from individual bytes, so no alignment
// is assumed. Reads past the end of the slice return an error carrying the
// offending offset.
type ByteStream struct {
	data  []byte
	index int
}

func NewByteStream(data []byte) *ByteStream {
	return &ByteStream{data: data}
}

// Index returns the current byte offset into the stream.
func (bs *ByteStream) Index() int {
	return bs.index
}

func (bs *ByteStream) HasNext() bool {
	return bs.index < len(bs.data)
}

// ReadBytes reads exactly n bytes and advances the cursor.
func (bs *ByteStream) ReadBytes(n int) ([]byte, error) {
	if n < 0 || bs.index+n > len(bs.data) {
		return nil, fmt.Errorf("unexpected end of class file: need %d bytes at offset %d, have %d",
			n, bs.index, len(bs.data)-bs.index)
	}
	buf := bs.data[bs.index : bs.index+n]
	bs.index += n
	return buf, nil
}

// ReadU1 reads a single unsigned byte.
func (bs *ByteStream) ReadU1() (uint8, error) {
	buf, err := bs.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadI1 reads a single signed byte.
func (bs *ByteStream) ReadI1() (int8, error) {
	b, err := bs.ReadU1()
	return int8(b), err
}

// ReadU2 reads a 2-byte unsigned integer (big-endian).
func (bs *ByteStream) ReadU2() (uint16, error) {
	buf, err := bs.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

// ReadI2 reads a 2-byte signed integer (big-endian).
func (bs *ByteStream) ReadI2() (int16, error) {
	v, err := bs.ReadU2()
	return int16(v), err
}

// ReadU4 reads a 4-byte unsigned integer (big-endian).
func (bs *ByteStream) ReadU4() (uint32, error) {
	buf, err := bs.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

// ReadI4 reads a 4-byte signed integer (big-endian).
func (bs *ByteStream) ReadI4() (int32, error) {
	v, err := bs.ReadU4()
	return int32(v), err
}

// ReadU8 reads an 8-byte unsigned integer (big-endian).
func (bs *ByteStream) ReadU8() (uint64, error) {
	buf, err := bs.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf), nil
}

// ReadI8 reads an 8-byte signed integer (big-endian).
func (bs *ByteStream) ReadI8() (int64, error) {
	v, err := bs.ReadU8()
	return int64(v), err
}

// ReadU2Many reads count 2-byte unsigned integers. The count itself is not
// read from the stream; the caller supplies it.
func (bs *ByteStream) ReadU2Many(count int) ([]uint16, error) {
	out := make([]uint16, count)
	for i := range out {
		v, err := bs.ReadU2()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ReadUtf8 reads a length-prefixed modified-UTF8 string. The class-file
// subset handled here is plain UTF-8.
func (bs *ByteStream) ReadUtf8() (string, error) {
	length, err := bs.ReadU2()
	if err != nil {
		return "", err
	}
	buf, err := bs.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
