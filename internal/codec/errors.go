package codec

import "fmt"

// DecodeError occurs when bytes that must be text are not valid UTF-8.
type DecodeError struct {
	Offset int
	Length int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid UTF-8 at byte %d of %d", e.Offset, e.Length)
}

// TruncatedError occurs when a length-prefixed region is shorter than its
// prefix claims.
type TruncatedError struct {
	Want int
	Have int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("length-prefixed buffer truncated: need %d bytes, have %d", e.Want, e.Have)
}
