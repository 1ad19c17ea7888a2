// Package chunk implements a framed byte transport: a reliable ordered
// byte stream cut into length-prefixed binary blobs.
//
// The header packing here follows go-ethereum's RLPx framing style
// (manual int encode/decode, manual buffer bookkeeping), cut down from
// RLPx's 24-byte MAC'd header to a plain 2-byte length prefix:
// authentication lives one layer up, in the box seal applied by
// p2p/session, not in this framing layer.
package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxContentLength is the largest payload a single chunk may carry.
const MaxContentLength = 65535

const lengthPrefixSize = 2

// ErrShortRead is returned when the stream ends mid-frame.
var ErrShortRead = errors.New("chunk: short read, stream ended mid-frame")

// ErrChunkTooLarge is returned by FromContent when content exceeds
// MaxContentLength.
var ErrChunkTooLarge = errors.New("chunk: content exceeds maximum chunk size")

// Chunk is an atomic length-prefixed binary blob: callers either get a
// complete Chunk or an error, never a truncated one.
type Chunk struct {
	raw []byte // length prefix + body
}

// FromContent builds a Chunk wrapping content, failing if content is too
// large to fit in a single frame.
func FromContent(content []byte) (Chunk, error) {
	if len(content) > MaxContentLength {
		return Chunk{}, ErrChunkTooLarge
	}
	raw := make([]byte, lengthPrefixSize+len(content))
	binary.BigEndian.PutUint16(raw, uint16(len(content)))
	copy(raw[lengthPrefixSize:], content)
	return Chunk{raw: raw}, nil
}

// Raw returns the full wire representation: length prefix followed by body.
func (c Chunk) Raw() []byte { return c.raw }

// Content returns the body only, without the length prefix.
func (c Chunk) Content() []byte { return c.raw[lengthPrefixSize:] }

// ReadHalf is the read side of a split byte stream.
type ReadHalf struct {
	r io.Reader
}

// WriteHalf is the write side of a split byte stream.
type WriteHalf struct {
	w io.Writer
}

// Split turns a full-duplex byte stream into independently owned read and
// write halves. Each half may be handed to a different goroutine;
// ownership of the halves is exclusive and is not re-checked by this
// package — at most one writer half and one reader half are expected to
// exist per session.
func Split(stream io.ReadWriter) (ReadHalf, WriteHalf) {
	return ReadHalf{r: stream}, WriteHalf{w: stream}
}

// ReadChunk reads exactly one chunk: a 2-byte big-endian length followed by
// that many bytes. An EOF before the header or mid-body yields ErrShortRead;
// any other transport error is returned as-is.
func ReadChunk(h ReadHalf) (Chunk, error) {
	header := make([]byte, lengthPrefixSize)
	if _, err := io.ReadFull(h.r, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Chunk{}, ErrShortRead
		}
		return Chunk{}, fmt.Errorf("chunk: read header: %w", err)
	}
	length := binary.BigEndian.Uint16(header)

	raw := make([]byte, lengthPrefixSize+int(length))
	copy(raw, header)
	if _, err := io.ReadFull(h.r, raw[lengthPrefixSize:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Chunk{}, ErrShortRead
		}
		return Chunk{}, fmt.Errorf("chunk: read body: %w", err)
	}
	return Chunk{raw: raw}, nil
}

// WriteChunk writes the length prefix and body of c as a single flush unit.
func WriteChunk(h WriteHalf, c Chunk) error {
	if _, err := h.w.Write(c.Raw()); err != nil {
		return fmt.Errorf("chunk: write: %w", err)
	}
	return nil
}
