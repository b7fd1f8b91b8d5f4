package marshal

import "unsafe"

// MaxCStringLen bounds how far CString scans for the terminating NUL.
const MaxCStringLen = 1 << 20

// CString copies a NUL-terminated string out of native memory.
// A nil pointer yields nil. Scanning stops after MaxCStringLen bytes.
func CString(p *byte) []byte {
	if p == nil {
		return nil
	}
	n := 0
	for n < MaxCStringLen && *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return CBytes(p, n)
}

// CBytes copies n bytes out of native memory.
func CBytes(p *byte, n int) []byte {
	if p == nil || n <= 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice(p, n))
	return out
}

// FromC wraps a NUL-terminated UTF-8 C string as a NativeString.
func FromC(p *byte) NativeString {
	return NativeString{Data: CString(p), Encoding: UTF8}
}
