package audit

import (
	"github.com/megamcloud/tezedge/p2p/encoding"
)

// PeerSink adapts a Store to p2p/peer.AuditSink's shape, encoding
// operational messages to their wire envelope before persisting them, and
// passing handshake connection/metadata chunks straight through.
type PeerSink struct {
	Store Store
}

// RecordPeerMessage implements p2p/peer.AuditSink.
func (a PeerSink) RecordPeerMessage(peerID string, incoming bool, m encoding.PeerMessage) error {
	raw, err := encoding.EncodePeerMessage(m)
	if err != nil {
		return err
	}
	return a.Store.RecordPeerMessage(peerID, incoming, m.Tag(), raw)
}

// RecordConnectionMessage implements p2p/peer.AuditSink and
// p2p/handshake.AuditSink.
func (a PeerSink) RecordConnectionMessage(peerID string, incoming bool, raw []byte) error {
	return a.Store.RecordConnectionMessage(peerID, incoming, raw)
}

// RecordMetadataMessage implements p2p/peer.AuditSink and
// p2p/handshake.AuditSink.
func (a PeerSink) RecordMetadataMessage(peerID string, incoming bool, raw []byte) error {
	return a.Store.RecordMetadataMessage(peerID, incoming, raw)
}
