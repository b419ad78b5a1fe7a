package codec

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
)

func TestReadPointer(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef, 0x01}

	// Trailing bytes past the payload must be ignored.
	region := AppendLengthPrefixed(nil, payload)
	region = append(region, 0xff, 0xff, 0xff)

	got := ReadPointer(unsafe.Pointer(&region[0]))
	if diff := cmp.Diff(payload, got); diff != "" {
		t.Errorf("ReadPointer mismatch (-want +got):\n%s", diff)
	}

	// The result must be a copy.
	region[PrefixSize] = 0x00
	if got[0] != 0xde {
		t.Error("ReadPointer result aliases the source region")
	}
}

func TestReadPointerEmpty(t *testing.T) {
	region := []byte{0, 0, 0, 0, 0xaa}

	got := ReadPointer(unsafe.Pointer(&region[0]))
	if len(got) != 0 {
		t.Errorf("expected empty buffer, got %d bytes", len(got))
	}
}

func TestReadPointerBigEndianPrefix(t *testing.T) {
	payload := make([]byte, 0x0102)
	for i := range payload {
		payload[i] = byte(i)
	}
	region := append([]byte{0x00, 0x00, 0x01, 0x02}, payload...)

	got := ReadPointer(unsafe.Pointer(&region[0]))
	if len(got) != 0x0102 {
		t.Fatalf("len = %d, want %d", len(got), 0x0102)
	}
	if diff := cmp.Diff(payload, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLengthPrefixed(t *testing.T) {
	region := AppendLengthPrefixed(nil, []byte("foo bar baz"))
	region = append(region, []byte("garbage")...)

	got, err := ParseLengthPrefixed(region)
	if err != nil {
		t.Fatalf("ParseLengthPrefixed failed: %v", err)
	}
	if string(got) != "foo bar baz" {
		t.Errorf("got %q, want %q", got, "foo bar baz")
	}
}

func TestParseLengthPrefixedTruncated(t *testing.T) {
	tests := []struct {
		name   string
		region []byte
		want   int
	}{
		{"short prefix", []byte{0x00, 0x00}, 4},
		{"short payload", []byte{0x00, 0x00, 0x00, 0x05, 0x01, 0x02}, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLengthPrefixed(tt.region)

			var truncErr *TruncatedError
			if !errors.As(err, &truncErr) {
				t.Fatalf("expected TruncatedError, got %v", err)
			}
			if truncErr.Want != tt.want {
				t.Errorf("Want = %d, want %d", truncErr.Want, tt.want)
			}
			if truncErr.Have != len(tt.region) {
				t.Errorf("Have = %d, want %d", truncErr.Have, len(tt.region))
			}
		})
	}
}
