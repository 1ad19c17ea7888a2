package handshake

import (
	"fmt"
	"net"
	"sync"
	"testing"

	"golang.org/x/crypto/nacl/box"

	"github.com/megamcloud/tezedge/internal/boxcrypto"
	"github.com/megamcloud/tezedge/p2p/encoding"
)

func newIdentity(t *testing.T, chainName string) Identity {
	t.Helper()
	pub, sec, err := box.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	return Identity{
		ListenerPort:     9732,
		PublicKey:        boxcrypto.PublicKey(*pub),
		SecretKey:        boxcrypto.SecretKey(*sec),
		ProofOfWorkStamp: make([]byte, 24),
		ChainName:        chainName,
	}
}

// tcpPipe returns the two ends of a loopback TCP connection. Both sides of
// the handshake write before they read, which needs a buffered transport:
// over an unbuffered net.Pipe() both writers would block.
func tcpPipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	dialed, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	acc := <-accepted
	if acc == nil {
		t.Fatal("loopback accept failed")
	}
	return dialed, acc
}

func TestHandshakeSucceedsBothSides(t *testing.T) {
	dialerConn, acceptorConn := tcpPipe(t)
	defer dialerConn.Close()
	defer acceptorConn.Close()

	dialer := newIdentity(t, "TEZOS_MAINNET")
	acceptor := newIdentity(t, "TEZOS_MAINNET")

	type outcome struct {
		res *Result
		err error
	}
	dialerCh := make(chan outcome, 1)
	acceptorCh := make(chan outcome, 1)

	go func() {
		res, err := Run(dialerConn, dialer, false, nil)
		dialerCh <- outcome{res, err}
	}()
	go func() {
		res, err := Run(acceptorConn, acceptor, true, nil)
		acceptorCh <- outcome{res, err}
	}()

	d := <-dialerCh
	a := <-acceptorCh

	if d.err != nil {
		t.Fatalf("dialer: %v", d.err)
	}
	if a.err != nil {
		t.Fatalf("acceptor: %v", a.err)
	}
	if d.res.PeerID != boxcrypto.PeerID(acceptor.PublicKey) {
		t.Fatalf("dialer resolved wrong peer id")
	}
	if a.res.PeerID != boxcrypto.PeerID(dialer.PublicKey) {
		t.Fatalf("acceptor resolved wrong peer id")
	}
}

func TestHandshakeRejectsIncompatibleChain(t *testing.T) {
	dialerConn, acceptorConn := tcpPipe(t)
	defer dialerConn.Close()
	defer acceptorConn.Close()

	dialer := newIdentity(t, "TEZOS_MAINNET")
	acceptor := newIdentity(t, "TEZOS_ALPHANET")

	dialerCh := make(chan error, 1)
	acceptorCh := make(chan error, 1)
	go func() { _, err := Run(dialerConn, dialer, false, nil); dialerCh <- err }()
	go func() { _, err := Run(acceptorConn, acceptor, true, nil); acceptorCh <- err }()

	dErr := <-dialerCh
	aErr := <-acceptorCh
	if dErr == nil {
		t.Fatal("expected dialer to reject the mismatched chain name")
	}
	if aErr == nil {
		t.Fatal("expected acceptor to reject the mismatched chain name")
	}
	if _, ok := dErr.(*ErrUnsupportedProtocol); !ok {
		t.Fatalf("dialer got %T, want *ErrUnsupportedProtocol", dErr)
	}
}

func TestHandshakeSessionUsableAfterward(t *testing.T) {
	dialerConn, acceptorConn := tcpPipe(t)
	defer dialerConn.Close()
	defer acceptorConn.Close()

	dialer := newIdentity(t, "TEZOS_MAINNET")
	acceptor := newIdentity(t, "TEZOS_MAINNET")

	dialerCh := make(chan *Result, 1)
	acceptorCh := make(chan *Result, 1)
	go func() {
		res, err := Run(dialerConn, dialer, false, nil)
		if err != nil {
			t.Error(err)
		}
		dialerCh <- res
	}()
	go func() {
		res, err := Run(acceptorConn, acceptor, true, nil)
		if err != nil {
			t.Error(err)
		}
		acceptorCh <- res
	}()

	d := <-dialerCh
	a := <-acceptorCh

	want := encoding.GetCurrentBranchMessage{ChainID: [4]byte{1, 2, 3, 4}}
	done := make(chan error, 1)
	go func() { done <- d.Writer.WriteMessage(rawEnvelope(t, want)) }()

	raw, err := a.Reader.ReadRaw()
	if err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	got, err := encoding.DecodePeerMessageEnvelope(raw)
	if err != nil {
		t.Fatal(err)
	}
	gcb, ok := got.(encoding.GetCurrentBranchMessage)
	if !ok {
		t.Fatalf("got %T, want GetCurrentBranchMessage", got)
	}
	if gcb != want {
		t.Fatalf("got %+v want %+v", gcb, want)
	}
}

type recordingAuditSink struct {
	mu    sync.Mutex
	conns []auditCall
	metas []auditCall
}

type auditCall struct {
	peerID   string
	incoming bool
}

func (s *recordingAuditSink) RecordConnectionMessage(peerID string, incoming bool, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(raw) == 0 {
		return fmt.Errorf("empty connection message payload")
	}
	s.conns = append(s.conns, auditCall{peerID, incoming})
	return nil
}

func (s *recordingAuditSink) RecordMetadataMessage(peerID string, incoming bool, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(raw) == 0 {
		return fmt.Errorf("empty metadata message payload")
	}
	s.metas = append(s.metas, auditCall{peerID, incoming})
	return nil
}

func TestHandshakeAuditsConnectionAndMetadataMessages(t *testing.T) {
	dialerConn, acceptorConn := tcpPipe(t)
	defer dialerConn.Close()
	defer acceptorConn.Close()

	dialer := newIdentity(t, "TEZOS_MAINNET")
	acceptor := newIdentity(t, "TEZOS_MAINNET")

	dialerAudit := &recordingAuditSink{}
	acceptorAudit := &recordingAuditSink{}

	type outcome struct {
		res *Result
		err error
	}
	dialerCh := make(chan outcome, 1)
	acceptorCh := make(chan outcome, 1)
	go func() {
		res, err := Run(dialerConn, dialer, false, dialerAudit)
		dialerCh <- outcome{res, err}
	}()
	go func() {
		res, err := Run(acceptorConn, acceptor, true, acceptorAudit)
		acceptorCh <- outcome{res, err}
	}()

	d := <-dialerCh
	a := <-acceptorCh
	if d.err != nil {
		t.Fatalf("dialer: %v", d.err)
	}
	if a.err != nil {
		t.Fatalf("acceptor: %v", a.err)
	}

	if len(dialerAudit.conns) != 2 {
		t.Fatalf("dialer recorded %d connection messages, want 2", len(dialerAudit.conns))
	}
	if len(dialerAudit.metas) != 2 {
		t.Fatalf("dialer recorded %d metadata messages, want 2", len(dialerAudit.metas))
	}
	for _, c := range dialerAudit.conns {
		if c.peerID != d.res.PeerID {
			t.Fatalf("connection message recorded under peer id %q, want %q", c.peerID, d.res.PeerID)
		}
	}
	sawSent, sawReceived := false, false
	for _, c := range dialerAudit.conns {
		if c.incoming {
			sawReceived = true
		} else {
			sawSent = true
		}
	}
	if !sawSent || !sawReceived {
		t.Fatalf("expected both a sent and a received connection message, got %+v", dialerAudit.conns)
	}
}

type rawBytes []byte

func (r rawBytes) MarshalBinary() ([]byte, error) { return []byte(r), nil }

func rawEnvelope(t *testing.T, m encoding.PeerMessage) rawBytes {
	t.Helper()
	b, err := encoding.EncodePeerMessage(m)
	if err != nil {
		t.Fatal(err)
	}
	return rawBytes(b)
}
