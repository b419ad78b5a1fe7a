package wasm

import (
	"fmt"
	"strings"
)

// CompilationError occurs when Wasm module compilation fails
type CompilationError struct {
	ModuleName string
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile Wasm module '%s': %v", e.ModuleName, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// InstantiationError occurs when module instantiation fails
type InstantiationError struct {
	ModuleName string
	InstanceID string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate module '%s' (instance: %s): %v",
		e.ModuleName, e.InstanceID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// ModuleNotFoundError occurs when a module is not in cache
type ModuleNotFoundError struct {
	ModuleName string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module '%s' not found in cache", e.ModuleName)
}

// InstanceClosedError occurs when a binding's instance is no longer tracked
// by its runtime
type InstanceClosedError struct {
	InstanceID string
}

func (e *InstanceClosedError) Error() string {
	return fmt.Sprintf("instance '%s' is closed", e.InstanceID)
}

// FunctionNotFoundError occurs when an export is missing
type FunctionNotFoundError struct {
	ModuleName   string
	FunctionName string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function '%s' not found in module '%s'",
		e.FunctionName, e.ModuleName)
}

// MemoryAccessError occurs when guest memory cannot be read or written
type MemoryAccessError struct {
	Operation string
	Address   uint32
	Length    uint32
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("memory access out of range (op=%s, addr=%d, len=%d)",
		e.Operation, e.Address, e.Length)
}

// HostFunctionError occurs when the host import module cannot be built
type HostFunctionError struct {
	FunctionName string
	Err          error
}

func (e *HostFunctionError) Error() string {
	return fmt.Sprintf("host function '%s' failed: %v", e.FunctionName, e.Err)
}

func (e *HostFunctionError) Unwrap() error {
	return e.Err
}

// GuestError occurs when an export traps. Message holds the text the guest
// passed to __wbindgen_throw, if any. Exceptions are host errors the guest
// stored but never consumed.
type GuestError struct {
	Export     string
	Message    string
	Err        error
	Exceptions []error
}

func (e *GuestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "wasm export '%s' failed", e.Export)
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	for _, exn := range e.Exceptions {
		fmt.Fprintf(&b, "; uncaught: %v", exn)
	}
	return b.String()
}

func (e *GuestError) Unwrap() []error {
	errs := make([]error, 0, len(e.Exceptions)+1)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return append(errs, e.Exceptions...)
}

// ProtocolError occurs when an export returns a value outside its declared
// shape
type ProtocolError struct {
	Export  string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wasm export '%s' violated its contract: %s", e.Export, e.Message)
}
