package boxcrypto

import "golang.org/x/crypto/blake2b"

// NonceSize is the length in bytes of a box nonce.
const NonceSize = 24

// Nonce is a 24-byte counter. It advances by exactly one, as a big-endian
// arbitrary-precision integer, after every successful encrypt or decrypt.
type Nonce [NonceSize]byte

// Advance increments the nonce in place, big-endian, wrapping top to
// bottom byte like any fixed-width counter.
func (n *Nonce) Advance() {
	for i := len(n) - 1; i >= 0; i-- {
		n[i]++
		if n[i] != 0 {
			return
		}
	}
}

// Bytes returns the nonce as a slice view (shares storage with n).
func (n *Nonce) Bytes() []byte { return n[:] }

const (
	nonceDomainInitiator = "I"
	nonceDomainResponder = "O"
)

// GeneratePair derives the (local, remote) nonce pair for a session from
// the raw bytes of the outbound and inbound connection-message chunks and
// the connection direction.
//
// sentChunk is the raw bytes of the chunk this node sent; recvChunk is the
// raw bytes of the chunk this node received. incoming is true when this
// node accepted the connection (i.e. the remote side dialed, so recvChunk
// is the dialing side's, "initiator's", connection message).
//
// The two digests are computed over a direction-independent ordering
// (initiator's chunk, then responder's chunk) so that both ends of a
// connection, each calling this with their own sent/recv and opposite
// incoming flag, derive byte-for-byte identical digests — only the
// local/remote assignment differs, which is exactly the handshake
// symmetry property two independently acting peers must agree on.
func GeneratePair(sentChunk, recvChunk []byte, incoming bool) (local, remote Nonce) {
	initiatorChunk, responderChunk := sentChunk, recvChunk
	if incoming {
		initiatorChunk, responderChunk = recvChunk, sentChunk
	}
	initDigest := keyedDigest(initiatorChunk, responderChunk, nonceDomainInitiator)
	respDigest := keyedDigest(initiatorChunk, responderChunk, nonceDomainResponder)

	if incoming {
		remote = initDigest
		local = respDigest
	} else {
		local = initDigest
		remote = respDigest
	}
	return local, remote
}

// keyedDigest computes blake2b(sent || recv || domain) with a 24-byte
// output, giving a nonce-shaped digest. GeneratePair passes the initiator's
// chunk as sent and the responder's chunk as recv, whichever side this
// node is. domain is a one-byte separator ("I" for the
// initiator-direction digest, "O" for the responder-direction digest) so
// the two digests derived from the same chunk pair never collide.
func keyedDigest(sent, recv []byte, domain string) Nonce {
	h, err := blake2b.New(NonceSize, nil)
	if err != nil {
		// blake2b.New only fails for an out-of-range size or an
		// oversized key, neither of which applies here.
		panic("boxcrypto: blake2b init: " + err.Error())
	}
	h.Write(sent)
	h.Write(recv)
	h.Write([]byte(domain))
	var out Nonce
	copy(out[:], h.Sum(nil))
	return out
}
