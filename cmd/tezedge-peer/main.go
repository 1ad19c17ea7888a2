// Command tezedge-peer is the minimal external driver for the peer
// networking core: a TCP accept loop (serve) and a one-shot dialer
// (dial), each handing its connection to a p2p/peer.Peer. It deliberately
// does not implement peer discovery, matching the cobra-based daemon
// entrypoints in orbas1-Synnergy's cmd/cli and postalsys-Muti-Metroo's
// cmd packages.
package main

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error("tezedge-peer exited with an error", "err", err)
		os.Exit(1)
	}
}
