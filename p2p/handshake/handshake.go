// Package handshake runs the six-step bootstrap exchange that turns a raw
// net.Conn into an established, encrypted session: connection messages,
// version negotiation, nonce and key derivation, metadata, and the final
// ack/nack. It runs as a blocking call driven by net.Conn read/write
// deadlines, the same way go-ethereum's rlpx.Conn.Handshake drives its
// own multi-step exchange.
package handshake

import (
	"fmt"
	"net"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/megamcloud/tezedge/internal/boxcrypto"
	"github.com/megamcloud/tezedge/p2p/chunk"
	"github.com/megamcloud/tezedge/p2p/encoding"
	"github.com/megamcloud/tezedge/p2p/session"
)

// StepTimeout bounds every individual handshake step.
const StepTimeout = 6 * time.Second

const (
	supportedDistributedDBVersion uint16 = 0
	supportedP2PVersion           uint16 = 1
)

// Identity is the local node's cryptographic and protocol identity, used to
// build the outgoing connection message.
type Identity struct {
	ListenerPort     uint16
	PublicKey        boxcrypto.PublicKey
	SecretKey        boxcrypto.SecretKey
	ProofOfWorkStamp []byte
	ChainName        string
	DisableMempool   bool
	PrivateNode      bool
}

// Result is what a successful handshake hands back to the caller: a ready
// encrypted session plus the identity of the remote peer.
type Result struct {
	Reader          *session.Reader
	Writer          *session.Writer
	RemotePublicKey boxcrypto.PublicKey
	PeerID          string
	RemoteMetadata  encoding.MetadataMessage
}

// AuditSink persists the raw connection and metadata chunks exchanged
// during the handshake, keyed by the remote peer's derived id. A nil sink
// disables recording. Its method set is a subset of p2p/peer.AuditSink
// and p2p/audit.Store, so either can be passed straight through.
type AuditSink interface {
	RecordConnectionMessage(peerID string, incoming bool, raw []byte) error
	RecordMetadataMessage(peerID string, incoming bool, raw []byte) error
}

func recordConnectionMessage(audit AuditSink, peerID string, incoming bool, raw []byte) {
	if audit == nil {
		return
	}
	if err := audit.RecordConnectionMessage(peerID, incoming, raw); err != nil {
		log.Warn("failed to audit connection message", "peer", peerID, "incoming", incoming, "err", err)
	}
}

func recordMetadataMessage(audit AuditSink, peerID string, incoming bool, raw []byte) {
	if audit == nil {
		return
	}
	if err := audit.RecordMetadataMessage(peerID, incoming, raw); err != nil {
		log.Warn("failed to audit metadata message", "peer", peerID, "incoming", incoming, "err", err)
	}
}

// Run performs the handshake over conn. incoming is true when the local
// node accepted this connection rather than dialing out. audit may be nil.
func Run(conn net.Conn, local Identity, incoming bool, audit AuditSink) (*Result, error) {
	log.Debug("starting handshake", "remote", conn.RemoteAddr(), "incoming", incoming, "chain", local.ChainName)
	readHalf, writeHalf := chunk.Split(conn)

	localVersion := encoding.Version{
		ChainName:            local.ChainName,
		DistributedDBVersion: supportedDistributedDBVersion,
		P2PVersion:           supportedP2PVersion,
	}
	localConn := encoding.ConnectionMessage{
		Port:              local.ListenerPort,
		PublicKey:         append([]byte(nil), local.PublicKey[:]...),
		ProofOfWorkStamp:  append([]byte(nil), local.ProofOfWorkStamp...),
		SupportedVersions: []encoding.Version{localVersion},
	}
	if _, err := fillRandomNonce(&localConn.MessageNonce); err != nil {
		return nil, &ErrNetwork{Step: "connection_message", Cause: err}
	}

	sentChunk, err := step(conn, "connection_message", func() (chunk.Chunk, error) {
		return sendConnectionMessage(writeHalf, localConn)
	})
	if err != nil {
		return nil, err
	}

	recvChunk, err := stepRead(conn, "connection_message", func() (chunk.Chunk, error) {
		return chunk.ReadChunk(readHalf)
	})
	if err != nil {
		return nil, &ErrNetwork{Step: "connection_message", Cause: err}
	}

	var remoteConn encoding.ConnectionMessage
	if err := remoteConn.UnmarshalBinary(recvChunk.Content()); err != nil {
		return nil, &ErrDeserialization{Step: "connection_message", Cause: err}
	}

	remotePub, err := parseRemotePublicKey(remoteConn.PublicKey)
	if err != nil {
		return nil, &ErrFailedToPrecomputeKey{Cause: err}
	}
	peerID := boxcrypto.PeerID(remotePub)
	recordConnectionMessage(audit, peerID, false, sentChunk.Content())
	recordConnectionMessage(audit, peerID, true, recvChunk.Content())

	if !anySupports(localVersion, remoteConn.SupportedVersions) {
		log.Warn("rejecting handshake: no compatible version", "remote", conn.RemoteAddr(), "local_chain", localVersion.ChainName)
		return nil, &ErrUnsupportedProtocol{Local: localVersion, Remote: remoteConn.SupportedVersions}
	}

	localNonce, remoteNonce := boxcrypto.GeneratePair(sentChunk.Raw(), recvChunk.Raw(), incoming)
	precomputed := boxcrypto.Precompute(remotePub, local.SecretKey)

	w := session.NewWriter(writeHalf, precomputed, localNonce)
	r := session.NewReader(readHalf, precomputed, remoteNonce)

	localMeta := encoding.MetadataMessage{DisableMempool: local.DisableMempool, PrivateNode: local.PrivateNode}
	if err := stepWriteMessage(conn, "metadata", w, localMeta); err != nil {
		return nil, err
	}
	if raw, err := localMeta.MarshalBinary(); err == nil {
		recordMetadataMessage(audit, peerID, false, raw)
	}
	var remoteMeta encoding.MetadataMessage
	if err := stepReadMessage(conn, "metadata", r, &remoteMeta); err != nil {
		return nil, err
	}
	if raw, err := remoteMeta.MarshalBinary(); err == nil {
		recordMetadataMessage(audit, peerID, true, raw)
	}

	if err := stepWriteMessage(conn, "ack", w, encoding.Ack()); err != nil {
		return nil, err
	}
	var ack encoding.AckMessage
	if err := stepReadMessage(conn, "ack", r, &ack); err != nil {
		return nil, err
	}

	switch ack.Kind {
	case encoding.AckKindAck:
		log.Info("handshake complete", "peer", peerID, "incoming", incoming)
		return &Result{Reader: r, Writer: w, RemotePublicKey: remotePub, PeerID: peerID, RemoteMetadata: remoteMeta}, nil
	case encoding.AckKindNackV0:
		log.Debug("handshake nacked", "peer", peerID)
		return nil, &ErrNackReceived{}
	case encoding.AckKindNack:
		log.Debug("handshake nacked with motive", "peer", peerID, "motive", ack.Nack.Motive)
		return nil, &ErrNackWithMotive{Motive: ack.Nack.Motive, PotentialPeersToConnect: ack.Nack.PotentialPeersToConnect}
	default:
		return nil, fmt.Errorf("handshake: unknown ack kind %v", ack.Kind)
	}
}

func anySupports(local encoding.Version, remote []encoding.Version) bool {
	for _, v := range remote {
		if encoding.Supports(local, v) {
			return true
		}
	}
	return false
}

func parseRemotePublicKey(raw []byte) (boxcrypto.PublicKey, error) {
	var pk boxcrypto.PublicKey
	if len(raw) != boxcrypto.KeySize {
		return pk, fmt.Errorf("remote public key: expected %d bytes, got %d", boxcrypto.KeySize, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

func sendConnectionMessage(wh chunk.WriteHalf, msg encoding.ConnectionMessage) (chunk.Chunk, error) {
	body, err := msg.MarshalBinary()
	if err != nil {
		return chunk.Chunk{}, err
	}
	c, err := chunk.FromContent(body)
	if err != nil {
		return chunk.Chunk{}, err
	}
	if err := chunk.WriteChunk(wh, c); err != nil {
		return chunk.Chunk{}, err
	}
	return c, nil
}

func step(conn net.Conn, name string, fn func() (chunk.Chunk, error)) (chunk.Chunk, error) {
	if err := conn.SetWriteDeadline(time.Now().Add(StepTimeout)); err != nil {
		return chunk.Chunk{}, &ErrNetwork{Step: name, Cause: err}
	}
	c, err := fn()
	if err != nil {
		return chunk.Chunk{}, &ErrNetwork{Step: name, Cause: err}
	}
	return c, nil
}

func stepRead(conn net.Conn, name string, fn func() (chunk.Chunk, error)) (chunk.Chunk, error) {
	if err := conn.SetReadDeadline(time.Now().Add(StepTimeout)); err != nil {
		return chunk.Chunk{}, err
	}
	return fn()
}

func stepWriteMessage(conn net.Conn, name string, w *session.Writer, m session.Marshaler) error {
	if err := conn.SetWriteDeadline(time.Now().Add(StepTimeout)); err != nil {
		return &ErrNetwork{Step: name, Cause: err}
	}
	if err := w.WriteMessage(m); err != nil {
		return &ErrNetwork{Step: name, Cause: err}
	}
	return nil
}

func stepReadMessage(conn net.Conn, name string, r *session.Reader, m session.Unmarshaler) error {
	if err := conn.SetReadDeadline(time.Now().Add(StepTimeout)); err != nil {
		return &ErrNetwork{Step: name, Cause: err}
	}
	if err := r.ReadMessage(m); err != nil {
		return &ErrNetwork{Step: name, Cause: err}
	}
	return nil
}
