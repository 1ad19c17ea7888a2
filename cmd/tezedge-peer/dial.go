package main

import (
	"fmt"
	"net"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"

	"github.com/megamcloud/tezedge/p2p/peer"
)

func newDialCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "dial <host:port>",
		Short: "Dial a remote peer and bootstrap a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDial(configPath, args[0])
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "peer.yaml", "path to the local identity/config YAML file")
	return cmd
}

func runDial(configPath, addr string) error {
	rt, err := newRuntime(configPath)
	if err != nil {
		return err
	}
	defer rt.close()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	p := peer.New(conn, rt.identity, false, rt.bus, rt.metrics, rt.auditSink())
	if err := p.Bootstrap(); err != nil {
		return fmt.Errorf("dial: bootstrap: %w", err)
	}
	log.Info("bootstrapped outbound peer", "peer", p.PeerID(), "addr", addr)
	return p.Serve()
}
