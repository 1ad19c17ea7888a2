// Package session implements the encrypted message transport that sits on
// top of a chunked byte stream once a handshake has produced a shared key
// and a nonce pair: the single place that turns a raw net.Conn into a
// stream of typed messages, analogous to how RLPx's Conn turns a raw
// net.Conn into a stream of RLPx messages, with box encryption
// substituted for RLPx's MAC'd frame format.
package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/megamcloud/tezedge/internal/boxcrypto"
	"github.com/megamcloud/tezedge/p2p/chunk"
)

// lengthPrefixSize is the size of the internal message-length header that
// precedes every message's plaintext, independent of the chunk framing
// header. A message's plaintext may be larger than a single chunk can
// carry, in which case it is split across consecutive chunks; the length
// header lets the reader find the message boundary after reassembly.
const lengthPrefixSize = 4

// maxPlaintextPerChunk is the most plaintext bytes that fit in one sealed
// chunk: a chunk's content holds ciphertext, and box sealing adds a fixed
// overhead on top of the plaintext.
const maxPlaintextPerChunk = chunk.MaxContentLength - boxOverhead

const boxOverhead = 16

// ErrSessionClosed is returned by reads when the underlying stream ends,
// before a chunk header or in the middle of a chunk.
var ErrSessionClosed = errors.New("session: closed")

// Marshaler is any type this package can write as a message.
type Marshaler interface {
	MarshalBinary() ([]byte, error)
}

// Unmarshaler is any type this package can read a message into.
type Unmarshaler interface {
	UnmarshalBinary([]byte) error
}

// Writer is the write half of an encrypted session.
type Writer struct {
	half  chunk.WriteHalf
	key   boxcrypto.PrecomputedKey
	nonce boxcrypto.Nonce
}

// NewWriter builds the write half of a session from a chunk write half, the
// precomputed session key, and this side's local nonce (advanced after
// every sealed chunk; a message split across chunks advances it once per
// chunk).
func NewWriter(half chunk.WriteHalf, key boxcrypto.PrecomputedKey, localNonce boxcrypto.Nonce) *Writer {
	return &Writer{half: half, key: key, nonce: localNonce}
}

// WriteMessage encrypts and sends m, splitting it across multiple chunks if
// its marshaled form exceeds a single chunk's capacity.
func (w *Writer) WriteMessage(m Marshaler) error {
	body, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	framed := make([]byte, lengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(framed, uint32(len(body)))
	copy(framed[lengthPrefixSize:], body)

	for len(framed) > 0 {
		piece := framed
		if len(piece) > maxPlaintextPerChunk {
			piece = framed[:maxPlaintextPerChunk]
		}
		sealed := boxcrypto.Seal(w.key, w.nonce, piece)
		w.nonce.Advance()

		c, err := chunk.FromContent(sealed)
		if err != nil {
			return fmt.Errorf("session: frame ciphertext: %w", err)
		}
		if err := chunk.WriteChunk(w.half, c); err != nil {
			return fmt.Errorf("session: write: %w", err)
		}
		framed = framed[len(piece):]
	}
	return nil
}

// Reader is the read half of an encrypted session.
type Reader struct {
	half  chunk.ReadHalf
	key   boxcrypto.PrecomputedKey
	nonce boxcrypto.Nonce
	buf   []byte
}

// NewReader builds the read half of a session from a chunk read half, the
// precomputed session key, and this side's remote nonce (advanced after
// every opened chunk; a message split across chunks advances it once per
// chunk).
func NewReader(half chunk.ReadHalf, key boxcrypto.PrecomputedKey, remoteNonce boxcrypto.Nonce) *Reader {
	return &Reader{half: half, key: key, nonce: remoteNonce}
}

// ReadMessage blocks until one complete message has been decrypted and
// reassembled, then decodes it into m.
func (r *Reader) ReadMessage(m Unmarshaler) error {
	raw, err := r.readFramedMessage()
	if err != nil {
		return err
	}
	return m.UnmarshalBinary(raw)
}

// ReadRaw behaves like ReadMessage but returns the decoded bytes directly,
// for callers (such as the operational message dispatcher) that need to
// inspect a tag byte before picking a concrete type.
func (r *Reader) ReadRaw() ([]byte, error) {
	return r.readFramedMessage()
}

func (r *Reader) readFramedMessage() ([]byte, error) {
	for {
		if len(r.buf) >= lengthPrefixSize {
			want := binary.BigEndian.Uint32(r.buf)
			if uint32(len(r.buf)) >= lengthPrefixSize+want {
				msg := r.buf[lengthPrefixSize : lengthPrefixSize+want]
				r.buf = r.buf[lengthPrefixSize+want:]
				return msg, nil
			}
		}
		c, err := chunk.ReadChunk(r.half)
		if err != nil {
			if errors.Is(err, chunk.ErrShortRead) || errors.Is(err, io.EOF) {
				return nil, ErrSessionClosed
			}
			return nil, fmt.Errorf("session: read: %w", err)
		}
		plain, ok := boxcrypto.Open(r.key, r.nonce, c.Content())
		if !ok {
			return nil, errors.New("session: message authentication failed")
		}
		r.nonce.Advance()
		r.buf = append(r.buf, plain...)
	}
}
