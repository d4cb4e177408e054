package commands

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ecgview/internal/client"
	"ecgview/internal/ui"
)

// upload [file.xml]: render the exam on the server and save the chart.
func uploadCmd(opts *options) *cobra.Command {
	var (
		output string
		layout string
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "upload [file.xml]",
		Short: "Render an ECG export and save the chart as PNG",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output
			if out == "" && len(args) > 0 {
				out = pngName(args[0])
			}

			view := ui.NewTerminalView(cmd.OutOrStdout(), cmd.ErrOrStderr(), out)
			view.Quiet = quiet

			form := &client.Form{Files: args, View: view}
			if len(args) == 0 {
				// nothing to send; the form reports it without a server
				form.Uploader = opts.newClient("", layout, nil)
				return shown(form.Submit(cmd.Context()))
			}

			base, err := opts.resolveServer(cmd.Context())
			if err != nil {
				return err
			}
			opts.log.Debug().Str("server", base).Str("file", args[0]).Msg("uploading")

			progress := cmd.ErrOrStderr()
			if quiet {
				progress = nil
			}
			form.Uploader = opts.newClient(base, layout, progress)
			if err := form.Submit(cmd.Context()); err != nil {
				return shown(err)
			}
			return shown(view.SaveErr())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "where to write the PNG (default <file>.png)")
	cmd.Flags().StringVarP(&layout, "layout", "l", "", "chart layout: standard or strip (default: server's)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no progress output")
	return cmd
}

func pngName(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
}

// shownError marks a failure the terminal view already printed.
type shownError struct{ err error }

func (e shownError) Error() string { return e.err.Error() }
func (e shownError) Unwrap() error { return e.err }

func shown(err error) error {
	if err == nil {
		return nil
	}
	return shownError{err}
}

// Shown reports whether err was already printed to the user.
func Shown(err error) bool {
	var s shownError
	return errors.As(err, &s)
}
