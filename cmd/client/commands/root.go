package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ecgview/internal/client"
	"ecgview/internal/discovery"
	"ecgview/internal/logger"
	"ecgview/internal/protocol"
	"ecgview/internal/security"
	"ecgview/internal/ui"
)

const serverEnv = "ECGVIEW_SERVER_URL"

// options are the persistent flags shared by every subcommand.
type options struct {
	server        string
	insecure      bool
	timeout       time.Duration
	verbose       bool
	discoveryPort int
	discoverWait  time.Duration

	log zerolog.Logger
}

// NewRootCmd builds the command tree. Each call gets fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "ecgview",
		Short:         "Render ECG XML exports as ECG-paper charts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.log = logger.Console(cmd.ErrOrStderr(), opts.verbose)
			if opts.server == "" {
				opts.server = os.Getenv(serverEnv)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.server, "server", "s", "", "server base URL (e.g. http://127.0.0.1:5000); discovered when empty")
	root.PersistentFlags().BoolVarP(&opts.insecure, "insecure", "k", false, "accept self-signed TLS certificates")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "request timeout (0 = none)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output")
	root.PersistentFlags().IntVar(&opts.discoveryPort, "discovery-port", protocol.DiscoveryPort, "UDP port for server discovery")
	root.PersistentFlags().DurationVar(&opts.discoverWait, "discover-wait", 2*time.Second, "how long to wait for a discovery answer")

	root.AddCommand(uploadCmd(opts), summaryCmd(opts), discoverCmd(opts))
	return root
}

// resolveServer returns the configured server or asks the network for one.
func (o *options) resolveServer(ctx context.Context) (string, error) {
	if o.server != "" {
		return o.server, nil
	}

	o.log.Debug().Int("port", o.discoveryPort).Msg("no server given, probing the network")
	base, err := discovery.FindServer(ctx, discovery.DefaultTargets(o.discoveryPort), o.discoverWait)
	if err != nil {
		return "", fmt.Errorf("no server found (use --server or %s): %w", serverEnv, err)
	}
	o.log.Debug().Str("server", base).Msg("discovered server")
	return base, nil
}

// newClient builds an HTTP client for base. progress, when non-nil, receives
// an upload progress bar.
func (o *options) newClient(base, layout string, progress io.Writer) *client.Client {
	clientOpts := []client.Option{
		client.WithTLS(security.ClientTLSConfig(o.insecure)),
		client.WithTimeout(o.timeout),
		client.WithLayout(layout),
	}
	if progress != nil {
		clientOpts = append(clientOpts, client.WithBodyWrapper(ui.UploadProgress(progress)))
	}
	return client.New(base, clientOpts...)
}
