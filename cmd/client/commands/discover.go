package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ecgview/internal/discovery"
)

// discover: print the base URL of the first server that answers.
func discoverCmd(opts *options) *cobra.Command {
	var targets []string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find an ecgview server on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(targets) == 0 {
				targets = discovery.DefaultTargets(opts.discoveryPort)
			}
			base, err := discovery.FindServer(cmd.Context(), targets, opts.discoverWait)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), base)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&targets, "target", nil, "host:port to probe (repeatable; default broadcast then loopback)")
	return cmd
}
