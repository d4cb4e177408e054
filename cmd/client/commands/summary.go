package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

// summary <file.xml>: print what the server reads from the exam.
func summaryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <file.xml>",
		Short: "Print patient, exam and lead metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := opts.resolveServer(cmd.Context())
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			summary, err := opts.newClient(base, "", nil).Summary(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}

			out, err := sonic.ConfigStd.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
