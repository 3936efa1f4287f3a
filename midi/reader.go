package midi

import "encoding/binary"

// Decoders for the primitive types found in SMF chunks. Every decoder returns
// the number of bytes it consumed, or 0 when b is too short, so callers can
// stop at the exact point the data ran out.

// ReadUint16 decodes a big-endian 16-bit integer
func ReadUint16(b []byte) (uint16, int) {
	if len(b) < 2 {
		return 0, 0
	}
	return binary.BigEndian.Uint16(b), 2
}

// ReadUint24 decodes a big-endian 24-bit integer (tempo payloads)
func ReadUint24(b []byte) (uint32, int) {
	if len(b) < 3 {
		return 0, 0
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), 3
}

// ReadUint32 decodes a big-endian 32-bit integer
func ReadUint32(b []byte) (uint32, int) {
	if len(b) < 4 {
		return 0, 0
	}
	return binary.BigEndian.Uint32(b), 4
}

// maxVarLen is the longest variable-length quantity SMF allows (0x0FFFFFFF).
const maxVarLen = 4

// ReadVarLen decodes a MIDI variable-length quantity: 7 bits per byte,
// most significant group first, high bit set on every byte but the last.
func ReadVarLen(b []byte) (uint32, int) {
	var v uint32
	for i := 0; i < maxVarLen; i++ {
		if i >= len(b) {
			return 0, 0
		}
		c := b[i]
		v = v<<7 | uint32(c&0x7F)
		if c&0x80 == 0 {
			return v, i + 1
		}
	}
	// continuation bit still set after four bytes
	return 0, 0
}

// ReadChars decodes a fixed-length character block such as a chunk magic
func ReadChars(b []byte, size int) (string, int) {
	if size < 0 || len(b) < size {
		return "", 0
	}
	return string(b[:size]), size
}
