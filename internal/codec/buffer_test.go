package codec

import (
	"errors"
	"testing"
)

func TestEncodeBytesPassThrough(t *testing.T) {
	b := []byte{0x00, 0xff, 0x10}

	got := Encode(b)
	if &got[0] != &b[0] {
		t.Error("Encode should return the same backing array for byte slices")
	}
}

func TestEncodeString(t *testing.T) {
	got := Encode("foo bar baz")
	if string(got) != "foo bar baz" {
		t.Errorf("Encode(string) = %q, want %q", got, "foo bar baz")
	}

	got = Encode("héllo")
	if len(got) != 6 {
		t.Errorf("Encode should produce UTF-8, got %d bytes", len(got))
	}
}

func TestEncodeNamedTypes(t *testing.T) {
	type message string
	type blob []byte

	if got := Encode(message("abc")); string(got) != "abc" {
		t.Errorf("Encode(named string) = %q", got)
	}

	b := blob{1, 2, 3}
	got := Encode(b)
	if len(got) != 3 || &got[0] != &b[0] {
		t.Error("Encode(named []byte) should share the backing array")
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	for _, s := range []string{"", "foo bar baz", "日本語", "\ufeffwith bom"} {
		got, err := Decode(Encode(s))
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", s, err)
		}
		if got != s {
			t.Errorf("Decode(Encode(%q)) = %q", s, got)
		}
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte{'o', 'k', 0xc3, 0x28})
	if err == nil {
		t.Fatal("Decode should fail on invalid UTF-8")
	}

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %T", err)
	}
	if decErr.Offset != 2 {
		t.Errorf("Offset = %d, want 2", decErr.Offset)
	}
	if decErr.Length != 4 {
		t.Errorf("Length = %d, want 4", decErr.Length)
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	err := &DecodeError{Offset: 3, Length: 10}

	expected := "invalid UTF-8 at byte 3 of 10"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}
