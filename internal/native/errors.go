package native

import "fmt"

// LoadError occurs when the shared library cannot be opened.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load native library '%s': %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SymbolNotFoundError occurs when the library does not export a required symbol.
type SymbolNotFoundError struct {
	Symbol string
	Err    error
}

func (e *SymbolNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("native symbol '%s' not found: %v", e.Symbol, e.Err)
	}
	return fmt.Sprintf("native symbol '%s' not found", e.Symbol)
}

func (e *SymbolNotFoundError) Unwrap() error {
	return e.Err
}

// UnsupportedPlatformError occurs when no library naming rule exists for the OS.
type UnsupportedPlatformError struct {
	GOOS string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("native backend unsupported on %s", e.GOOS)
}

// ProtocolError occurs when a symbol returns a value outside its declared shape.
type ProtocolError struct {
	Symbol  string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("native symbol '%s' violated its contract: %s", e.Symbol, e.Message)
}
