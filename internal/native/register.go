//go:build darwin || freebsd || linux || windows

package native

import "github.com/ebitengine/purego"

// bindSymbols resolves every symbol the binding needs and turns each into a
// callable Go function.
func bindSymbols(lib uintptr) (*Symbols, error) {
	syms := &Symbols{}

	targets := []struct {
		name string
		fptr any
	}{
		{"generate_private_key_random", &syms.GeneratePrivateKeyRandom},
		{"generate_private_key_seed", &syms.GeneratePrivateKeySeed},
		{"get_public_key", &syms.GetPublicKey},
		{"get_random", &syms.GetRandom},
		{"sign", &syms.Sign},
		{"verify", &syms.Verify},
	}

	for _, target := range targets {
		addr, err := lookupSymbol(lib, target.name)
		if err != nil || addr == 0 {
			return nil, &SymbolNotFoundError{Symbol: target.name, Err: err}
		}
		purego.RegisterFunc(target.fptr, addr)
	}

	return syms, nil
}
