//go:build blst

package bridgetest

import (
	"unsafe"

	blst "github.com/supranational/blst/bindings/go"

	"github.com/woxQAQ/bls-bridge/internal/native"
)

// BLSDST is the ciphersuite the library signs under.
var BLSDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

// BLS sizes for the min-pk scheme.
const (
	BLSSecretSize    = 32
	BLSPublicKeySize = 48
	BLSSignatureSize = 96
)

// BLSLibrary is a FakeLibrary whose key, sign and verify symbols run real
// BLS12-381 through blst. Random bytes and failure injection still come from
// the embedded fake.
type BLSLibrary struct {
	FakeLibrary
}

// Symbols binds the library as a native symbol table.
func (b *BLSLibrary) Symbols() *native.Symbols {
	syms := b.FakeLibrary.Symbols()
	syms.GeneratePrivateKeyRandom = func() unsafe.Pointer {
		return b.key("generate_private_key_random", blstKey(b.random(BLSSecretSize)))
	}
	// blst.KeyGen wants at least 32 bytes of input key material; shorter
	// seeds come back as a null pointer.
	syms.GeneratePrivateKeySeed = func(seed *byte, n uintptr) unsafe.Pointer {
		return b.key("generate_private_key_seed", blstKey(b.view(seed, n)))
	}
	syms.GetPublicKey = func(sk *byte, n uintptr) unsafe.Pointer {
		key := new(blst.SecretKey).Deserialize(b.view(sk, n))
		if key == nil {
			return b.key("get_public_key", nil)
		}
		return b.result("get_public_key", new(blst.P1Affine).From(key).Compress())
	}
	syms.Sign = func(sk *byte, skLen uintptr, msg *byte, msgLen uintptr) unsafe.Pointer {
		key := new(blst.SecretKey).Deserialize(b.view(sk, skLen))
		if key == nil {
			return b.key("sign", nil)
		}
		sig := new(blst.P2Affine).Sign(key, b.view(msg, msgLen), BLSDST)
		return b.result("sign", sig.Compress())
	}
	syms.Verify = func(pk *byte, pkLen uintptr, sig *byte, sigLen uintptr, msg *byte, msgLen uintptr) uint8 {
		b.enter("verify")
		if b.VerifyResult != 0 {
			return b.VerifyResult
		}
		if BLSVerify(b.view(pk, pkLen), b.view(sig, sigLen), b.view(msg, msgLen)) {
			return 1
		}
		return 0
	}
	return syms
}

// BLSVerify checks a compressed min-pk signature.
func BLSVerify(pk, sig, msg []byte) bool {
	p := new(blst.P1Affine).Uncompress(pk)
	if p == nil {
		return false
	}
	s := new(blst.P2Affine).Uncompress(sig)
	if s == nil {
		return false
	}
	return s.Verify(true, p, true, msg, BLSDST)
}

// key returns a null pointer for a nil payload, the way the library reports
// a rejected input.
func (b *BLSLibrary) key(symbol string, payload []byte) unsafe.Pointer {
	if payload == nil {
		b.enter(symbol)
		return nil
	}
	return b.result(symbol, payload)
}

// blstKey derives a serialized secret key, or nil when ikm is too short.
func blstKey(ikm []byte) []byte {
	sk := blst.KeyGen(ikm)
	if sk == nil {
		return nil
	}
	return sk.Serialize()
}
