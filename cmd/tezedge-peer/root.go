package main

import "github.com/spf13/cobra"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tezedge-peer",
		Short: "Run the Tezos-family peer networking core",
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newDialCommand())
	return root
}
