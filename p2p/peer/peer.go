// Package peer supervises a single connection end to end: running the
// handshake, then serving the established session's read loop and
// serializing writes, publishing lifecycle events as it goes. Structured
// the way go-ethereum's p2p.Peer.run loop is: one goroutine owns the read
// side, callers may call SendMessage concurrently, and Stop tears the
// connection down exactly once.
package peer

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/megamcloud/tezedge/internal/metrics"
	"github.com/megamcloud/tezedge/p2p/encoding"
	"github.com/megamcloud/tezedge/p2p/event"
	"github.com/megamcloud/tezedge/p2p/handshake"
)

// readTimeout bounds every individual read once the session is established.
// A remote that never sends anything, and never closes the connection
// either, must not pin a goroutine open forever.
const readTimeout = 30 * time.Second

// writeLockTimeout bounds how long SendMessage waits for the writer slot
// before giving up on a write that's stuck behind another one.
const writeLockTimeout = 6 * time.Second

// ErrNotBootstrapped is returned by SendMessage when called before
// Bootstrap has completed, or after the session has been torn down.
// SendMessage rejects rather than silently dropping the command.
var ErrNotBootstrapped = errors.New("peer: not bootstrapped")

// AuditSink persists every handshake and operational message this peer
// exchanges. A nil sink means audit recording is disabled. Its method set
// is a superset of handshake.AuditSink, so the same value is passed
// straight through to handshake.Run during Bootstrap.
type AuditSink interface {
	RecordPeerMessage(peerID string, incoming bool, m encoding.PeerMessage) error
	RecordConnectionMessage(peerID string, incoming bool, raw []byte) error
	RecordMetadataMessage(peerID string, incoming bool, raw []byte) error
}

// State is the peer's lifecycle stage.
type State int32

const (
	StateIdle State = iota
	StateBootstrapping
	StateConnected
	StateDisconnected
)

// Peer supervises one connection's handshake and, once established, its
// operational message exchange.
type Peer struct {
	conn     net.Conn
	identity handshake.Identity
	incoming bool

	bus     *event.Bus
	metrics *metrics.Metrics
	audit   AuditSink

	state atomic.Int32

	result *handshake.Result
	wlock  *writerLock

	stopOnce sync.Once
	stopped  chan struct{}
}

// New builds a Peer around an already-accepted or already-dialed
// connection. Bootstrap must be called before SendMessage or Serve.
func New(conn net.Conn, identity handshake.Identity, incoming bool, bus *event.Bus, m *metrics.Metrics, audit AuditSink) *Peer {
	return &Peer{
		conn:     conn,
		identity: identity,
		incoming: incoming,
		bus:      bus,
		metrics:  m,
		audit:    audit,
		wlock:    newWriterLock(),
		stopped:  make(chan struct{}),
	}
}

// State returns the peer's current lifecycle stage.
func (p *Peer) State() State { return State(p.state.Load()) }

// PeerID returns the remote's derived peer id. It is only meaningful once
// Bootstrap has returned successfully.
func (p *Peer) PeerID() string {
	if p.result == nil {
		return ""
	}
	return p.result.PeerID
}

func (p *Peer) direction() string {
	if p.incoming {
		return "incoming"
	}
	return "outgoing"
}

// Bootstrap runs the handshake to completion, publishing a
// PeerBootstrapped or PeerBootstrapFailed event and recording metrics
// either way.
func (p *Peer) Bootstrap() error {
	p.state.Store(int32(StateBootstrapping))
	started := time.Now()

	res, err := handshake.Run(p.conn, p.identity, p.incoming, p.audit)
	if err != nil {
		log.Warn("peer bootstrap failed", "remote", p.remoteAddr(), "err", err)
		p.state.Store(int32(StateDisconnected))
		p.metrics.RecordBootstrap(p.direction(), outcomeFor(err))
		p.metrics.RecordHandshakeError(classifyHandshakeError(err))
		p.bus.Publish(event.Event{
			Kind:           event.PeerBootstrapFailed,
			Addr:           p.remoteAddr(),
			Err:            err,
			PotentialPeers: potentialPeersFor(err),
		})
		return err
	}

	p.result = res
	p.state.Store(int32(StateConnected))
	log.Info("peer bootstrapped", "peer", res.PeerID, "remote", p.remoteAddr(), "incoming", p.incoming)
	p.metrics.RecordBootstrap(p.direction(), "success")
	p.metrics.RecordHandshake(time.Since(started).Seconds())
	p.bus.Publish(event.Event{Kind: event.PeerBootstrapped, PeerID: res.PeerID, Addr: p.remoteAddr()})
	return nil
}

func (p *Peer) remoteAddr() string {
	if p.conn.RemoteAddr() == nil {
		return ""
	}
	return p.conn.RemoteAddr().String()
}

// SendMessage encodes and writes m, serialized against any concurrent
// SendMessage call.
func (p *Peer) SendMessage(m encoding.PeerMessage) error {
	if p.State() != StateConnected {
		return ErrNotBootstrapped
	}
	if err := p.wlock.acquire(writeLockTimeout); err != nil {
		return err
	}
	defer p.wlock.release()

	if p.audit != nil {
		if err := p.audit.RecordPeerMessage(p.result.PeerID, false, m); err != nil {
			p.metrics.RecordAuditWriteError()
		}
	}

	raw, err := encoding.EncodePeerMessage(m)
	if err != nil {
		return err
	}
	if err := p.result.Writer.WriteMessage(rawMessage(raw)); err != nil {
		return err
	}
	p.metrics.RecordMessageSent(tagName(m.Tag()))
	p.metrics.RecordBytesSent(p.result.PeerID, len(raw))
	return nil
}

// Serve runs the read loop until the connection closes, times out, or Stop
// is called, decoding and publishing every operational message. Unrecognized
// tags are logged via metrics and skipped rather than ending the session;
// any other read or decode failure ends it.
func (p *Peer) Serve() error {
	if p.State() != StateConnected {
		return fmt.Errorf("peer: Serve called before a session is established")
	}
	for {
		select {
		case <-p.stopped:
			return nil
		default:
		}

		p.conn.SetReadDeadline(time.Now().Add(readTimeout))
		raw, err := p.result.Reader.ReadRaw()
		if err != nil {
			p.disconnect("read_error")
			return err
		}
		p.metrics.RecordBytesReceived(p.result.PeerID, len(raw))

		msg, err := encoding.DecodePeerMessageEnvelope(raw)
		if err != nil {
			var unsupported *encoding.ErrUnsupportedTag
			if errors.As(err, &unsupported) {
				p.metrics.RecordUnsupportedTag()
				continue
			}
			p.disconnect("decode_error")
			return err
		}

		p.metrics.RecordMessageReceived(tagName(msg.Tag()))
		if p.audit != nil {
			if err := p.audit.RecordPeerMessage(p.result.PeerID, true, msg); err != nil {
				p.metrics.RecordAuditWriteError()
			}
		}
		p.bus.Publish(event.Event{Kind: event.PeerMessageReceived, PeerID: p.result.PeerID, MessageTag: msg.Tag()})
	}
}

// Stop closes the underlying connection and, if the session is established
// and has not already ended, publishes a PeerDisconnected event. Calls
// after the first do nothing.
func (p *Peer) Stop(reason string) {
	p.stopOnce.Do(func() {
		close(p.stopped)
		p.conn.Close()
		p.disconnect(reason)
	})
}

func (p *Peer) disconnect(reason string) {
	if State(p.state.Swap(int32(StateDisconnected))) != StateConnected {
		return
	}
	p.metrics.RecordDisconnect(reason)
	peerID := ""
	if p.result != nil {
		peerID = p.result.PeerID
	}
	log.Debug("peer disconnected", "peer", peerID, "reason", reason)
	p.bus.Publish(event.Event{Kind: event.PeerDisconnected, PeerID: peerID})
}

// rawMessage adapts an already-encoded wire envelope to session.Marshaler,
// letting SendMessage reuse the same bytes for the write, the byte-count
// metric, and (via the caller) the audit record.
type rawMessage []byte

func (r rawMessage) MarshalBinary() ([]byte, error) { return r, nil }

func tagName(tag byte) string {
	switch tag {
	case encoding.TagGetCurrentBranch:
		return "get_current_branch"
	case encoding.TagCurrentBranch:
		return "current_branch"
	case encoding.TagGetBlockHeaders:
		return "get_block_headers"
	case encoding.TagBlockHeader:
		return "block_header"
	case encoding.TagGetOperations:
		return "get_operations"
	case encoding.TagOperation:
		return "operation"
	default:
		return fmt.Sprintf("unknown_0x%02x", tag)
	}
}

func outcomeFor(err error) string {
	var nack *handshake.ErrNackReceived
	var nackMotive *handshake.ErrNackWithMotive
	switch {
	case errors.As(err, &nack), errors.As(err, &nackMotive):
		return "nack"
	default:
		return "failure"
	}
}

func classifyHandshakeError(err error) string {
	var unsupported *handshake.ErrUnsupportedProtocol
	var nack *handshake.ErrNackReceived
	var nackMotive *handshake.ErrNackWithMotive
	var precompute *handshake.ErrFailedToPrecomputeKey
	var network *handshake.ErrNetwork
	var deser *handshake.ErrDeserialization
	switch {
	case errors.As(err, &unsupported):
		return "version_mismatch"
	case errors.As(err, &nack), errors.As(err, &nackMotive):
		return "nack"
	case errors.As(err, &precompute):
		return "bad_public_key"
	case errors.As(err, &network):
		return "network"
	case errors.As(err, &deser):
		return "decode"
	default:
		return "unknown"
	}
}

func potentialPeersFor(err error) []string {
	var nackMotive *handshake.ErrNackWithMotive
	if errors.As(err, &nackMotive) {
		return nackMotive.PotentialPeersToConnect
	}
	return nil
}
