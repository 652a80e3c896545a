// Package codec provides order-preserving byte encodings used to build storage keys.
package codec

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	signMask uint64 = 0x8000000000000000

	encGroupSize = 8
	encMarker    = byte(0xFF)
	encPad       = byte(0x0)
)

var pads = make([]byte, encGroupSize)

// ErrInsufficientBytes means the input ended before a complete value was read
var ErrInsufficientBytes = errors.New("codec: insufficient bytes to decode value")

// EncodeBytes appends the memcomparable form of data to b.
// The encoded value sorts like data and is never a prefix of another encoded value:
//
//	[group1][marker1]...[groupN][markerN]
//
// every group is 8 bytes padded with 0, marker is `0xFF - padding count`.
func EncodeBytes(b []byte, data []byte) []byte {
	dLen := len(data)
	if b == nil {
		b = make([]byte, 0, (dLen/encGroupSize+1)*(encGroupSize+1))
	}
	for idx := 0; idx <= dLen; idx += encGroupSize {
		remain := dLen - idx
		padCount := 0
		if remain >= encGroupSize {
			b = append(b, data[idx:idx+encGroupSize]...)
		} else {
			padCount = encGroupSize - remain
			b = append(b, data[idx:]...)
			b = append(b, pads[:padCount]...)
		}
		b = append(b, encMarker-byte(padCount))
	}
	return b
}

// DecodeBytes reads a memcomparable value from the head of b, returns the remaining bytes and the value
func DecodeBytes(b []byte) ([]byte, []byte, error) {
	data := make([]byte, 0, len(b))
	for {
		if len(b) < encGroupSize+1 {
			return nil, nil, ErrInsufficientBytes
		}
		groupBytes := b[:encGroupSize+1]
		group := groupBytes[:encGroupSize]
		marker := groupBytes[encGroupSize]
		padCount := encMarker - marker
		if padCount > encGroupSize {
			return nil, nil, errors.Errorf("codec: invalid marker byte %d", marker)
		}
		realGroupSize := encGroupSize - padCount
		data = append(data, group[:realGroupSize]...)
		b = b[encGroupSize+1:]
		if padCount != 0 {
			for _, v := range group[realGroupSize:] {
				if v != encPad {
					return nil, nil, errors.Errorf("codec: invalid padding byte %d", v)
				}
			}
			break
		}
	}
	return b, data, nil
}

// EncodeUint64 appends v in big endian, which keeps unsigned ordering
func EncodeUint64(b []byte, v uint64) []byte {
	var data [8]byte
	binary.BigEndian.PutUint64(data[:], v)
	return append(b, data[:]...)
}

// DecodeUint64 reads a big endian uint64 from the head of b
func DecodeUint64(b []byte) ([]byte, uint64, error) {
	if len(b) < 8 {
		return nil, 0, ErrInsufficientBytes
	}
	return b[8:], binary.BigEndian.Uint64(b[:8]), nil
}

// EncodeFloat appends a float64 so that byte order equals numeric order
func EncodeFloat(b []byte, f float64) []byte {
	u := math.Float64bits(f)
	if f >= 0 {
		u |= signMask
	} else {
		u = ^u
	}
	return EncodeUint64(b, u)
}

// DecodeFloat reads a float64 written by EncodeFloat
func DecodeFloat(b []byte) ([]byte, float64, error) {
	b, u, err := DecodeUint64(b)
	if err != nil {
		return nil, 0, err
	}
	if u&signMask > 0 {
		u &= ^signMask
	} else {
		u = ^u
	}
	return b, math.Float64frombits(u), nil
}
