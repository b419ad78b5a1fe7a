// Package codec converts values to and from the byte buffers that cross the
// native and WebAssembly boundaries.
package codec

import "unicode/utf8"

// Value is anything Encode accepts.
type Value interface {
	~[]byte | ~string
}

// Encode returns the bytes to send across a boundary. Byte slices are returned
// as-is (the backing array is shared); strings are converted to UTF-8.
func Encode[V Value](v V) []byte {
	switch b := any(v).(type) {
	case []byte:
		return b
	}
	return []byte(v)
}

// Decode interprets b as UTF-8 text. Unlike a plain string conversion it
// refuses invalid input instead of substituting replacement characters.
// A leading byte order mark is kept.
func Decode(b []byte) (string, error) {
	if utf8.Valid(b) {
		return string(b), nil
	}

	offset := 0
	for offset < len(b) {
		r, size := utf8.DecodeRune(b[offset:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		offset += size
	}

	return "", &DecodeError{Offset: offset, Length: len(b)}
}
