package peer

import (
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/nacl/box"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/megamcloud/tezedge/internal/boxcrypto"
	internalmetrics "github.com/megamcloud/tezedge/internal/metrics"
	"github.com/megamcloud/tezedge/p2p/encoding"
	"github.com/megamcloud/tezedge/p2p/event"
	"github.com/megamcloud/tezedge/p2p/handshake"
)

func newIdentity(t *testing.T, chainName string) handshake.Identity {
	t.Helper()
	pub, sec, err := box.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	return handshake.Identity{
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

type recordingSink struct {
	recorded []encoding.PeerMessage
	outgoing []encoding.PeerMessage
	conns    int
	metas    int
}

func (s *recordingSink) RecordPeerMessage(peerID string, incoming bool, m encoding.PeerMessage) error {
	if incoming {
		s.recorded = append(s.recorded, m)
	} else {
		s.outgoing = append(s.outgoing, m)
	}
	return nil
}

func (s *recordingSink) RecordConnectionMessage(peerID string, incoming bool, raw []byte) error {
	s.conns++
	return nil
}

func (s *recordingSink) RecordMetadataMessage(peerID string, incoming bool, raw []byte) error {
	s.metas++
	return nil
}

func newTestMetrics() *internalmetrics.Metrics {
	return internalmetrics.NewWithRegistry(prometheus.NewRegistry())
}

func TestBootstrapPublishesSuccessEvent(t *testing.T) {
	dc, ac := tcpPipe(t)
	defer dc.Close()
	defer ac.Close()

	var bus event.Bus
	ch := make(chan event.Event, 4)
	sub := bus.Subscribe(ch)
	defer sub.Unsubscribe()

	dialer := New(dc, newIdentity(t, "TEZOS_MAINNET"), false, &bus, newTestMetrics(), nil)
	acceptor := New(ac, newIdentity(t, "TEZOS_MAINNET"), true, &bus, newTestMetrics(), nil)

	dErrCh := make(chan error, 1)
	aErrCh := make(chan error, 1)
	go func() { dErrCh <- dialer.Bootstrap() }()
	go func() { aErrCh <- acceptor.Bootstrap() }()

	if err := <-dErrCh; err != nil {
		t.Fatalf("dialer bootstrap: %v", err)
	}
	if err := <-aErrCh; err != nil {
		t.Fatalf("acceptor bootstrap: %v", err)
	}
	if dialer.State() != StateConnected || acceptor.State() != StateConnected {
		t.Fatalf("expected both peers connected, got %v / %v", dialer.State(), acceptor.State())
	}

	seen := 0
	for seen < 2 {
		select {
		case e := <-ch:
			if e.Kind != event.PeerBootstrapped {
				t.Fatalf("unexpected event kind %v", e.Kind)
			}
			seen++
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for bootstrap events")
		}
	}
}

func TestSendMessageAndServeRoundTrip(t *testing.T) {
	dc, ac := tcpPipe(t)
	defer dc.Close()
	defer ac.Close()

	var bus event.Bus
	sink := &recordingSink{}
	dialerMetrics := newTestMetrics()
	acceptorMetrics := newTestMetrics()

	dialer := New(dc, newIdentity(t, "TEZOS_MAINNET"), false, &bus, dialerMetrics, nil)
	acceptor := New(ac, newIdentity(t, "TEZOS_MAINNET"), true, &bus, acceptorMetrics, sink)

	dErrCh := make(chan error, 1)
	aErrCh := make(chan error, 1)
	go func() { dErrCh <- dialer.Bootstrap() }()
	go func() { aErrCh <- acceptor.Bootstrap() }()
	if err := <-dErrCh; err != nil {
		t.Fatalf("dialer bootstrap: %v", err)
	}
	if err := <-aErrCh; err != nil {
		t.Fatalf("acceptor bootstrap: %v", err)
	}

	ch := make(chan event.Event, 4)
	sub := bus.Subscribe(ch)
	defer sub.Unsubscribe()

	serveErr := make(chan error, 1)
	go func() { serveErr <- acceptor.Serve() }()

	want := encoding.GetCurrentBranchMessage{ChainID: [4]byte{9, 9, 9, 9}}
	if err := dialer.SendMessage(want); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	select {
	case e := <-ch:
		if e.Kind != event.PeerMessageReceived || e.MessageTag != encoding.TagGetCurrentBranch {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message event")
	}

	acceptor.Stop("test teardown")
	dialer.Stop("test teardown")
	<-serveErr

	if len(sink.recorded) != 1 {
		t.Fatalf("audit sink recorded %d inbound messages, want 1", len(sink.recorded))
	}
	got, ok := sink.recorded[0].(encoding.GetCurrentBranchMessage)
	if !ok || got != want {
		t.Fatalf("recorded %+v, want %+v", sink.recorded[0], want)
	}
	if sink.conns != 2 {
		t.Fatalf("audit sink recorded %d connection messages, want 2 (sent + received)", sink.conns)
	}
	if sink.metas != 2 {
		t.Fatalf("audit sink recorded %d metadata messages, want 2 (sent + received)", sink.metas)
	}

	sent := testutil.ToFloat64(dialerMetrics.BytesSent.WithLabelValues(dialer.PeerID()))
	if sent <= 0 {
		t.Fatalf("dialer BytesSent = %v, want > 0", sent)
	}
	received := testutil.ToFloat64(acceptorMetrics.BytesReceived.WithLabelValues(acceptor.PeerID()))
	if received <= 0 {
		t.Fatalf("acceptor BytesReceived = %v, want > 0", received)
	}
}

func TestSendMessageAuditsOutboundBeforeWrite(t *testing.T) {
	dc, ac := tcpPipe(t)
	defer dc.Close()
	defer ac.Close()

	var bus event.Bus
	sink := &recordingSink{}

	dialer := New(dc, newIdentity(t, "TEZOS_MAINNET"), false, &bus, newTestMetrics(), sink)
	acceptor := New(ac, newIdentity(t, "TEZOS_MAINNET"), true, &bus, newTestMetrics(), nil)

	dErrCh := make(chan error, 1)
	aErrCh := make(chan error, 1)
	go func() { dErrCh <- dialer.Bootstrap() }()
	go func() { aErrCh <- acceptor.Bootstrap() }()
	if err := <-dErrCh; err != nil {
		t.Fatalf("dialer bootstrap: %v", err)
	}
	if err := <-aErrCh; err != nil {
		t.Fatalf("acceptor bootstrap: %v", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- acceptor.Serve() }()

	want := encoding.GetCurrentBranchMessage{ChainID: [4]byte{1, 1, 1, 1}}
	if err := dialer.SendMessage(want); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	acceptor.Stop("test teardown")
	dialer.Stop("test teardown")
	<-serveErr

	if len(sink.outgoing) != 1 {
		t.Fatalf("audit sink recorded %d outbound messages, want 1", len(sink.outgoing))
	}
	got, ok := sink.outgoing[0].(encoding.GetCurrentBranchMessage)
	if !ok || got != want {
		t.Fatalf("recorded outbound %+v, want %+v", sink.outgoing[0], want)
	}
}

func TestSendMessageBeforeBootstrapFails(t *testing.T) {
	dc, ac := net.Pipe()
	defer dc.Close()
	defer ac.Close()

	var bus event.Bus
	p := New(dc, newIdentity(t, "TEZOS_MAINNET"), false, &bus, newTestMetrics(), nil)
	if err := p.SendMessage(encoding.GetCurrentBranchMessage{}); err == nil {
		t.Fatal("expected SendMessage to fail before Bootstrap")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	dc, ac := net.Pipe()
	defer ac.Close()

	var bus event.Bus
	p := New(dc, newIdentity(t, "TEZOS_MAINNET"), false, &bus, newTestMetrics(), nil)
	p.Stop("first")
	p.Stop("second")
}
