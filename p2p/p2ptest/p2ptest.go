// Package p2ptest builds small networks of bootstrapped peers over
// loopback TCP connections, for tests that want more than one
// pair of peers talking to each other. It mirrors go-ethereum's own
// p2p.Network test harness shape (a Start/Stop lifecycle over a ring
// topology), rebuilt over this module's byte-stream transport (net.Conn)
// and p2p/peer.Peer, since this core's unit of transport is encrypted
// bytes rather than devp2p Msg values. The connections are buffered TCP
// rather than net.Pipe(): both sides of the handshake write before they
// read, and an unbuffered pipe would block both writers.
package p2ptest

import (
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/nacl/box"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/megamcloud/tezedge/internal/boxcrypto"
	"github.com/megamcloud/tezedge/internal/metrics"
	"github.com/megamcloud/tezedge/p2p/event"
	"github.com/megamcloud/tezedge/p2p/handshake"
	"github.com/megamcloud/tezedge/p2p/peer"
)

// Topology selects how Network wires its nodes together.
type Topology int

const (
	// Ring connects node i to node i-1 for every i in [1,N).
	Ring Topology = iota
)

// Network is a set of bootstrapped peers connected over loopback TCP. Start
// wires and bootstraps everything, Stop tears it all down and waits for
// every Serve loop to exit.
type Network struct {
	N         int
	Topology  Topology
	ChainName string
	Bus       *event.Bus
	Metrics   *metrics.Metrics

	endpoints []*peer.Peer
	wg        sync.WaitGroup
	errc      chan error
}

// Start builds N node identities and wires them per Topology, running
// every connection's handshake to completion before returning. Metrics
// and Bus default to a fresh instance each if left nil.
func (n *Network) Start() error {
	if n.Bus == nil {
		n.Bus = &event.Bus{}
	}
	if n.Metrics == nil {
		n.Metrics = metrics.NewWithRegistry(newTestRegistry())
	}
	n.errc = make(chan error, n.N*2)

	identities := make([]handshake.Identity, n.N)
	for i := range identities {
		id, err := newIdentity(n.ChainName)
		if err != nil {
			return fmt.Errorf("p2ptest: identity %d: %w", i, err)
		}
		identities[i] = id
	}

	switch n.Topology {
	case Ring:
		return n.ringTopology(identities)
	default:
		return fmt.Errorf("p2ptest: unknown topology %d", n.Topology)
	}
}

func (n *Network) ringTopology(identities []handshake.Identity) error {
	for i := 1; i < len(identities); i++ {
		if err := n.connect(identities[i-1], identities[i]); err != nil {
			return err
		}
	}
	return nil
}

// connect pairs two identities over a fresh loopback TCP connection,
// bootstrapping both ends concurrently and appending their Peer endpoints.
func (n *Network) connect(a, b handshake.Identity) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("p2ptest: listen: %w", err)
	}
	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	ac, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		ln.Close()
		return fmt.Errorf("p2ptest: dial: %w", err)
	}
	bc := <-accepted
	ln.Close()
	if bc == nil {
		ac.Close()
		return fmt.Errorf("p2ptest: loopback accept failed")
	}

	aPeer := peer.New(ac, a, false, n.Bus, n.Metrics, nil)
	bPeer := peer.New(bc, b, true, n.Bus, n.Metrics, nil)

	type outcome struct{ err error }
	resA := make(chan outcome, 1)
	resB := make(chan outcome, 1)
	go func() { resA <- outcome{aPeer.Bootstrap()} }()
	go func() { resB <- outcome{bPeer.Bootstrap()} }()

	ra, rb := <-resA, <-resB
	if ra.err != nil {
		return fmt.Errorf("p2ptest: bootstrap: %w", ra.err)
	}
	if rb.err != nil {
		return fmt.Errorf("p2ptest: bootstrap: %w", rb.err)
	}

	n.endpoints = append(n.endpoints, aPeer, bPeer)
	n.wg.Add(2)
	go n.serve(aPeer)
	go n.serve(bPeer)
	return nil
}

func (n *Network) serve(p *peer.Peer) {
	defer n.wg.Done()
	n.errc <- p.Serve()
}

// Endpoints returns every connection endpoint, two per connection, in
// the order they were established.
func (n *Network) Endpoints() []*peer.Peer { return n.endpoints }

// Stop closes every connection and waits for all Serve loops to return.
func (n *Network) Stop() {
	for i, p := range n.endpoints {
		p.Stop(fmt.Sprintf("network teardown %d", i))
	}
	n.wg.Wait()
}

// Errors drains any Serve errors recorded so far without blocking.
func (n *Network) Errors() []error {
	var errs []error
	for {
		select {
		case err := <-n.errc:
			errs = append(errs, err)
		default:
			return errs
		}
	}
}

func newIdentity(chainName string) (handshake.Identity, error) {
	pub, sec, err := box.GenerateKey(nil)
	if err != nil {
		return handshake.Identity{}, err
	}
	return handshake.Identity{
		ListenerPort:     0,
		PublicKey:        boxcrypto.PublicKey(*pub),
		SecretKey:        boxcrypto.SecretKey(*sec),
		ProofOfWorkStamp: make([]byte, 24),
		ChainName:        chainName,
	}, nil
}

func newTestRegistry() *prometheus.Registry { return prometheus.NewRegistry() }

// awaitTimeout bounds how long WaitForEvents blocks per event.
const awaitTimeout = 5 * time.Second

// WaitForEvents subscribes to bus and blocks until count events matching
// kind have arrived, or awaitTimeout elapses without one.
func WaitForEvents(bus *event.Bus, kind event.Kind, count int) error {
	ch := make(chan event.Event, count)
	sub := bus.Subscribe(ch)
	defer sub.Unsubscribe()

	seen := 0
	for seen < count {
		select {
		case e := <-ch:
			if e.Kind == kind {
				seen++
			}
		case <-time.After(awaitTimeout):
			return fmt.Errorf("p2ptest: timed out waiting for %d events of kind %v, saw %d", count, kind, seen)
		}
	}
	return nil
}
