// Package audit persists every handshake and operational message this
// core exchanges to an append-only on-disk log, keyed by remote peer and a
// monotonic sequence number per peer. It is built directly against
// github.com/dgraph-io/badger's transactional DB API (Open/Update/View),
// the release this module depends on.
package audit

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
)

// RecordKind distinguishes the three record shapes this store persists.
type RecordKind byte

const (
	RecordConnectionMessage RecordKind = iota
	RecordMetadataMessage
	RecordPeerMessage
)

// Record is one audit log entry.
type Record struct {
	Kind      RecordKind
	PeerID    string
	Sequence  uint64
	Incoming  bool
	Tag       byte // only meaningful for RecordPeerMessage
	Payload   []byte
}

// Store persists Records and can replay them back for a given peer.
type Store interface {
	// RecordConnectionMessage appends a handshake connection-message record.
	RecordConnectionMessage(peerID string, incoming bool, raw []byte) error
	// RecordMetadataMessage appends a handshake metadata-message record.
	RecordMetadataMessage(peerID string, incoming bool, raw []byte) error
	// RecordPeerMessage appends an operational message record. It takes
	// the tag and encoded bytes rather than an encoding.PeerMessage, so a
	// Store is plugged into a Peer through the PeerSink adapter.
	RecordPeerMessage(peerID string, incoming bool, tag byte, raw []byte) error
	// ForPeer returns every record stored for peerID, in sequence order.
	ForPeer(peerID string) ([]Record, error)
	// Close releases the underlying database.
	Close() error
}

// encodeKey builds the lexically sequence-ordered key "<peerID>/<seq>".
func encodeKey(peerID string, seq uint64) []byte {
	key := make([]byte, 0, len(peerID)+1+8)
	key = append(key, peerID...)
	key = append(key, '/')
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	return append(key, seqBytes[:]...)
}

func encodeRecord(r Record) []byte {
	buf := make([]byte, 0, len(r.Payload)+16)
	buf = append(buf, byte(r.Kind))
	buf = append(buf, boolByte(r.Incoming))
	buf = append(buf, r.Tag)
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(r.Payload)))
	buf = append(buf, lenBytes[:]...)
	return append(buf, r.Payload...)
}

func decodeRecord(peerID string, seq uint64, raw []byte) (Record, error) {
	if len(raw) < 7 {
		return Record{}, fmt.Errorf("audit: truncated record for %s/%d", peerID, seq)
	}
	r := Record{
		Kind:     RecordKind(raw[0]),
		PeerID:   peerID,
		Sequence: seq,
		Incoming: raw[1] != 0,
		Tag:      raw[2],
	}
	n := binary.BigEndian.Uint32(raw[3:7])
	if uint32(len(raw)-7) < n {
		return Record{}, fmt.Errorf("audit: record for %s/%d declares %d payload bytes, has %d", peerID, seq, n, len(raw)-7)
	}
	r.Payload = append([]byte(nil), raw[7:7+n]...)
	return r, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func compress(b []byte) []byte   { return snappy.Encode(nil, b) }
func decompress(b []byte) ([]byte, error) { return snappy.Decode(nil, b) }
