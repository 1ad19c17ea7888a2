package handshake

import (
	"fmt"

	"github.com/megamcloud/tezedge/p2p/encoding"
)

// ErrUnsupportedProtocol means none of the remote's advertised versions were
// compatible with the local node's supported version.
type ErrUnsupportedProtocol struct {
	Local  encoding.Version
	Remote []encoding.Version
}

func (e *ErrUnsupportedProtocol) Error() string {
	return fmt.Sprintf("handshake: no compatible version offered by remote: local %+v, remote %+v", e.Local, e.Remote)
}

// ErrNackReceived means the remote refused the connection with a bare Nack.
type ErrNackReceived struct{}

func (e *ErrNackReceived) Error() string { return "handshake: received nack from remote peer" }

// ErrNackWithMotive means the remote refused the connection and gave a
// reason plus a list of alternative peers to try.
type ErrNackWithMotive struct {
	Motive               uint16
	PotentialPeersToConnect []string
}

func (e *ErrNackWithMotive) Error() string {
	return fmt.Sprintf("handshake: received nack from remote peer, motive %d", e.Motive)
}

// ErrFailedToPrecomputeKey means the remote's advertised public key could
// not be parsed into a usable box key.
type ErrFailedToPrecomputeKey struct {
	Cause error
}

func (e *ErrFailedToPrecomputeKey) Error() string {
	return fmt.Sprintf("handshake: failed to precompute session key: %v", e.Cause)
}

func (e *ErrFailedToPrecomputeKey) Unwrap() error { return e.Cause }

// ErrNetwork wraps an I/O failure (including a step timeout) during the
// handshake.
type ErrNetwork struct {
	Step  string
	Cause error
}

func (e *ErrNetwork) Error() string {
	return fmt.Sprintf("handshake: network error during %s: %v", e.Step, e.Cause)
}

func (e *ErrNetwork) Unwrap() error { return e.Cause }

// ErrDeserialization wraps a decode failure for a message received during
// the handshake.
type ErrDeserialization struct {
	Step  string
	Cause error
}

func (e *ErrDeserialization) Error() string {
	return fmt.Sprintf("handshake: failed to decode message during %s: %v", e.Step, e.Cause)
}

func (e *ErrDeserialization) Unwrap() error { return e.Cause }
