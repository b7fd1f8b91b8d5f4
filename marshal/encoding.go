package marshal

import (
	"encoding/binary"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Encoding is the byte encoding of a string crossing the native boundary.
type Encoding uint8

const (
	// UTF8 is standard UTF-8, the encoding of C strings handed out by the core.
	UTF8 Encoding = iota
	// ModifiedUTF8 is the JNI string encoding: U+0000 is written as C0 80 and
	// supplementary characters as two 3-byte encoded surrogates.
	ModifiedUTF8
	// UTF16LE is little-endian UTF-16 without BOM.
	UTF16LE
)

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf-8"
	case ModifiedUTF8:
		return "modified utf-8"
	case UTF16LE:
		return "utf-16le"
	default:
		return "unknown"
	}
}

// NativeString is string data as produced or consumed by native code.
// Data is always owned by the holder; nothing aliases native memory.
type NativeString struct {
	Data     []byte
	Encoding Encoding
}

// Decode converts s into a Go string. Malformed input is an ErrEncoding.
func Decode(s NativeString) (string, error) {
	switch s.Encoding {
	case UTF8:
		if !utf8.Valid(s.Data) {
			return "", errors.Wrap(ErrEncoding, "invalid utf-8")
		}
		return string(s.Data), nil
	case ModifiedUTF8:
		return decodeModifiedUTF8(s.Data)
	case UTF16LE:
		return decodeUTF16LE(s.Data)
	default:
		return "", errors.Wrapf(ErrEncoding, "unsupported encoding %d", s.Encoding)
	}
}

// Encode converts a Go string into enc. The returned data is a fresh copy.
func Encode(s string, enc Encoding) NativeString {
	switch enc {
	case ModifiedUTF8:
		return NativeString{Data: encodeModifiedUTF8(s), Encoding: enc}
	case UTF16LE:
		return NativeString{Data: encodeUTF16LE(s), Encoding: enc}
	default:
		return NativeString{Data: []byte(s), Encoding: UTF8}
	}
}

func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s)+2)
	put3 := func(u uint16) {
		out = append(out,
			0xE0|byte(u>>12),
			0x80|byte(u>>6)&0x3F,
			0x80|byte(u)&0x3F)
	}
	for _, r := range s {
		switch {
		case r == 0:
			out = append(out, 0xC0, 0x80)
		case r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out, 0xC0|byte(r>>6), 0x80|byte(r)&0x3F)
		case r < 0x10000:
			put3(uint16(r))
		default:
			hi, lo := utf16.EncodeRune(r)
			put3(uint16(hi))
			put3(uint16(lo))
		}
	}
	return out
}

func decodeModifiedUTF8(b []byte) (string, error) {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return "", errors.Wrapf(ErrEncoding, "raw NUL at offset %d", i)
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", errors.Wrapf(ErrEncoding, "truncated 2-byte sequence at offset %d", i)
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", errors.Wrapf(ErrEncoding, "truncated 3-byte sequence at offset %d", i)
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", errors.Wrapf(ErrEncoding, "invalid lead byte 0x%02x at offset %d", c, i)
		}
	}
	return unitsToString(units)
}

func encodeUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[2*i:], u)
	}
	return out
}

func decodeUTF16LE(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", errors.Wrapf(ErrEncoding, "odd utf-16 length %d", len(b))
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return unitsToString(units)
}

// unitsToString rejects unpaired surrogates, which have no Go string form.
func unitsToString(units []uint16) (string, error) {
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u >= 0xD800 && u < 0xDC00:
			if i+1 >= len(units) || units[i+1] < 0xDC00 || units[i+1] >= 0xE000 {
				return "", errors.Wrapf(ErrEncoding, "unpaired high surrogate at unit %d", i)
			}
			i++
		case u >= 0xDC00 && u < 0xE000:
			return "", errors.Wrapf(ErrEncoding, "unpaired low surrogate at unit %d", i)
		}
	}
	return string(utf16.Decode(units)), nil
}
