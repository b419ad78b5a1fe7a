package native

import (
	"errors"
	"testing"
)

func TestLibraryPath(t *testing.T) {
	tests := []struct {
		goos string
		dir  string
		want string
	}{
		{"darwin", "./target/release", "./target/release/libblst_deno.dylib"},
		{"linux", "./target/release/", "./target/release/libblst_deno.so"},
		{"freebsd", "/usr/lib", "/usr/lib/libblst_deno.so"},
		{"netbsd", "lib", "lib/libblst_deno.so"},
		{"aix", "lib", "lib/libblst_deno.so"},
		{"solaris", "lib", "lib/libblst_deno.so"},
		{"illumos", "lib", "lib/libblst_deno.so"},
		{"windows", "/C:/build/target/release", `C:\build\target\release\blst_deno.dll`},
		{"windows", `C:\build\`, `C:\build\blst_deno.dll`},
		{"linux", "", "libblst_deno.so"},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.dir, func(t *testing.T) {
			got, err := LibraryPath(tt.dir, "blst_deno", tt.goos)
			if err != nil {
				t.Fatalf("LibraryPath() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("LibraryPath() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLibraryPathUnsupported(t *testing.T) {
	_, err := LibraryPath("lib", "blst_deno", "plan9")

	var unsupported *UnsupportedPlatformError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedPlatformError, got %v", err)
	}
	if unsupported.GOOS != "plan9" {
		t.Errorf("GOOS = %s, want plan9", unsupported.GOOS)
	}
}
