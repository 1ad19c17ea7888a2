// Package event publishes peer lifecycle notifications: bootstrap
// success/failure, inbound messages, and disconnects. Rather than
// reimplement a topic-based pub/sub bus, this package is a thin domain
// layer over github.com/ethereum/go-ethereum/event.Feed, the same
// fan-out primitive go-ethereum itself uses for peer and chain-head
// notifications.
package event

import "github.com/ethereum/go-ethereum/event"

// Kind discriminates the Event union.
type Kind int

const (
	// PeerBootstrapped fires once a handshake completes successfully.
	PeerBootstrapped Kind = iota
	// PeerBootstrapFailed fires when a handshake fails, for any reason.
	PeerBootstrapFailed
	// PeerMessageReceived fires once per decoded operational message.
	PeerMessageReceived
	// PeerDisconnected fires once when an established session ends, either
	// through a read or decode failure in the read loop or through Stop.
	PeerDisconnected
)

// Event is the single notification type carried on the Bus. Only the
// fields relevant to Kind are populated.
type Event struct {
	Kind Kind

	PeerID string
	Addr   string

	// Err is set for PeerBootstrapFailed.
	Err error

	// PotentialPeers is set for PeerBootstrapFailed when the remote sent a
	// Nack carrying alternative peers to try.
	PotentialPeers []string

	// MessageTag is set for PeerMessageReceived.
	MessageTag byte
}

// Bus fans out Events to any number of subscribers.
type Bus struct {
	feed event.Feed
}

// Publish sends e to every current subscriber, returning the number that
// received it.
func (b *Bus) Publish(e Event) int {
	return b.feed.Send(e)
}

// Subscribe registers ch to receive every future Event. The returned
// Subscription's Unsubscribe method must be called once the caller is done.
func (b *Bus) Subscribe(ch chan<- Event) event.Subscription {
	return b.feed.Subscribe(ch)
}
