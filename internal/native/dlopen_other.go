//go:build !darwin && !freebsd && !linux && !windows

package native

import "runtime"

func bindSymbols(uintptr) (*Symbols, error) {
	return nil, &UnsupportedPlatformError{GOOS: runtime.GOOS}
}

func openLibrary(string) (uintptr, error) {
	return 0, &UnsupportedPlatformError{GOOS: runtime.GOOS}
}
