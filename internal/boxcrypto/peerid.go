package boxcrypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// peerIDSize matches the 16-byte-hash-truncation length Tezos uses for
// human-readable public-key-hash peer identifiers. The exact hash scheme
// a Tezos node uses is treated as an out-of-scope black box; this is a
// stand-in with the same shape, not a claim of wire compatibility with a
// specific Tezos hash variant.
const peerIDSize = 16

// PeerID derives the human-readable peer id from a raw box public key.
func PeerID(pub PublicKey) string {
	sum := blake2b.Sum256(pub[:])
	return hex.EncodeToString(sum[:peerIDSize])
}
