package handshake

import "crypto/rand"

// fillRandomNonce fills the connection message's nonce field with
// cryptographically random bytes; it is not a box.Nonce counter, just a
// fresh random value exchanged once per connection.
func fillRandomNonce(dst *[24]byte) (int, error) {
	return rand.Read(dst[:])
}
