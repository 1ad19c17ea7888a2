package main

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/megamcloud/tezedge/internal/config"
	"github.com/megamcloud/tezedge/internal/metrics"
	"github.com/megamcloud/tezedge/p2p/audit"
	"github.com/megamcloud/tezedge/p2p/event"
	"github.com/megamcloud/tezedge/p2p/handshake"
)

// runtime bundles the shared collaborators a served or dialed connection
// is handed off to: identity, audit store, metrics, and the event bus.
type runtime struct {
	identity handshake.Identity
	store    *audit.BadgerStore
	metrics  *metrics.Metrics
	bus      *event.Bus
}

func newRuntime(configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	identity, err := cfg.Identity()
	if err != nil {
		return nil, err
	}
	store, err := audit.OpenBadgerStore(cfg.AuditDBPath)
	if err != nil {
		return nil, err
	}

	bus := &event.Bus{}
	logEvents(bus)

	return &runtime{
		identity: identity,
		store:    store,
		metrics:  metrics.Default(),
		bus:      bus,
	}, nil
}

func (r *runtime) auditSink() audit.PeerSink { return audit.PeerSink{Store: r.store} }

func (r *runtime) close() {
	if err := r.store.Close(); err != nil {
		log.Error("closing audit store", "err", err)
	}
}

// logEvents subscribes a background logger to every lifecycle event, the
// minimal consumer needed to observe the core end to end without a real
// chain-logic layer attached.
func logEvents(bus *event.Bus) {
	ch := make(chan event.Event, 64)
	bus.Subscribe(ch)
	go func() {
		for e := range ch {
			switch e.Kind {
			case event.PeerBootstrapped:
				log.Info("peer bootstrapped", "peer", e.PeerID, "addr", e.Addr)
			case event.PeerBootstrapFailed:
				log.Warn("peer bootstrap failed", "addr", e.Addr, "err", e.Err)
			case event.PeerMessageReceived:
				log.Debug("peer message received", "peer", e.PeerID, "tag", e.MessageTag)
			case event.PeerDisconnected:
				log.Info("peer disconnected", "peer", e.PeerID)
			}
		}
	}()
}
