// Package bridgetest provides in-process stand-ins for the compiled BLS
// artifact: a fake native library and a small WebAssembly guest speaking the
// wasm-bindgen ABI. Both implement the same toy signature scheme, so tests can
// compare the two backends byte for byte.
//
// The scheme is not cryptography. A public key is the private key XORed with
// 0x5a; a signature XORs the private key with the FNV-1a hash of the message.
package bridgetest

import (
	"hash/fnv"
)

// KeySize is the private key length produced by the fakes.
const KeySize = 32

const pkMask = 0x5a

// ToyPublicKey derives the public key of sk.
func ToyPublicKey(sk []byte) []byte {
	pk := make([]byte, len(sk))
	for i, b := range sk {
		pk[i] = b ^ pkMask
	}
	return pk
}

// ToySign signs msg with sk.
func ToySign(sk, msg []byte) []byte {
	h := hash32(msg)
	sig := make([]byte, len(sk))
	for i, b := range sk {
		sig[i] = b ^ byte(h>>((i&3)*8))
	}
	return sig
}

// ToyVerify returns 1 when sig is the signature of msg under pk, 0 otherwise.
func ToyVerify(pk, sig, msg []byte) uint8 {
	if len(pk) != len(sig) {
		return 0
	}
	h := hash32(msg)
	for i, b := range pk {
		if b^pkMask^byte(h>>((i&3)*8)) != sig[i] {
			return 0
		}
	}
	return 1
}

// ToySeedKey derives a private key from seed.
func ToySeedKey(seed []byte) []byte {
	sk := make([]byte, KeySize)
	h := fnv.New64a()
	for i := 0; i < KeySize; i += 8 {
		h.Write(seed)
		h.Write([]byte{byte(i)})
		sum := h.Sum64()
		for j := range 8 {
			sk[i+j] = byte(sum >> (j * 8))
		}
	}
	return sk
}

func hash32(msg []byte) uint32 {
	h := fnv.New32a()
	h.Write(msg)
	return h.Sum32()
}
