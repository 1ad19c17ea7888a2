package boxcrypto

import "golang.org/x/crypto/nacl/box"

// Seal authenticate-encrypts plaintext under key using nonce, returning
// ciphertext with the authentication tag appended. The caller advances
// nonce afterwards; Seal does not mutate it.
func Seal(key PrecomputedKey, nonce Nonce, plaintext []byte) []byte {
	k := [KeySize]byte(key)
	n := [NonceSize]byte(nonce)
	return box.SealAfterPrecomputation(nil, plaintext, &n, &k)
}

// Open authenticate-decrypts ciphertext (which must include the trailing
// tag Seal appended) under key using nonce. ok is false on tag mismatch,
// which callers should treat as a terminal session error.
func Open(key PrecomputedKey, nonce Nonce, ciphertext []byte) (plaintext []byte, ok bool) {
	k := [KeySize]byte(key)
	n := [NonceSize]byte(nonce)
	return box.OpenAfterPrecomputation(nil, ciphertext, &n, &k)
}
