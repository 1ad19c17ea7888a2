// Package boxcrypto wraps the NaCl box authenticated-encryption primitive
// and the nonce scheme used by the peer networking core. The underlying
// primitives (box sealing, blake2b) are treated as black boxes by the rest
// of the module; this package exists only to give them the shapes the core
// needs (hex-encoded keys, 24-byte nonces, precomputed shared keys).
package boxcrypto

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// KeySize is the length in bytes of a box public or secret key.
const KeySize = 32

// PublicKey and SecretKey are raw box keys. The local identity and every
// remote peer's key travel over the wire and in config files as hex
// strings; these types are the decoded form used for cryptographic calls.
type PublicKey [KeySize]byte
type SecretKey [KeySize]byte

// ParsePublicKey decodes a hex-encoded box public key.
func ParsePublicKey(hexKey string) (PublicKey, error) {
	var pk PublicKey
	b, err := decodeFixed(hexKey, KeySize)
	if err != nil {
		return pk, fmt.Errorf("public key: %w", err)
	}
	copy(pk[:], b)
	return pk, nil
}

// ParseSecretKey decodes a hex-encoded box secret key.
func ParseSecretKey(hexKey string) (SecretKey, error) {
	var sk SecretKey
	b, err := decodeFixed(hexKey, KeySize)
	if err != nil {
		return sk, fmt.Errorf("secret key: %w", err)
	}
	copy(sk[:], b)
	return sk, nil
}

func decodeFixed(s string, n int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("expected %d bytes, got %d", n, len(b))
	}
	return b, nil
}

// PrecomputedKey is the 32-byte symmetric key derived once per session from
// the remote public key and the local secret key. It is immutable and
// shared by value between a session's reader and writer halves.
type PrecomputedKey [KeySize]byte

// Precompute derives the shared key for a session. It is the sole point
// where the box key-agreement is exercised. The handshake engine treats a
// malformed remote public key (caught by its own length check on the
// remote's raw key bytes, just before this) as the precompute failure
// mode; Precompute itself cannot
// fail given two well-formed keys.
func Precompute(remote PublicKey, local SecretKey) PrecomputedKey {
	var out PrecomputedKey
	rk := [KeySize]byte(remote)
	lk := [KeySize]byte(local)
	box.Precompute((*[KeySize]byte)(&out), &rk, &lk)
	return out
}
