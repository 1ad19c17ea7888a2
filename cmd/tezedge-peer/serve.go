package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/megamcloud/tezedge/p2p/peer"
)

func newServeCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept inbound connections and bootstrap a peer for each",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "peer.yaml", "path to the local identity/config YAML file")
	return cmd
}

func runServe(configPath string) error {
	rt, err := newRuntime(configPath)
	if err != nil {
		return err
	}
	defer rt.close()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", rt.identity.ListenerPort))
	if err != nil {
		return fmt.Errorf("serve: listen: %w", err)
	}
	defer ln.Close()
	log.Info("listening for inbound peers", "addr", ln.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return group.Wait()
			}
			return fmt.Errorf("serve: accept: %w", err)
		}
		group.Go(func() error {
			serveConnection(conn, rt)
			return nil
		})
	}
}

func serveConnection(conn net.Conn, rt *runtime) {
	defer conn.Close()
	p := peer.New(conn, rt.identity, true, rt.bus, rt.metrics, rt.auditSink())
	if err := p.Bootstrap(); err != nil {
		return
	}
	_ = p.Serve()
}
