package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/danmuck/dockctl/internal/broker"
	"github.com/danmuck/dockctl/internal/client"
	"github.com/danmuck/dockctl/internal/config"
	"github.com/danmuck/dockctl/internal/logging"
	"github.com/danmuck/dockctl/internal/protocol/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultHost = "localhost"

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "client-tm: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := session.DefaultConfig()
	cmd := &cobra.Command{
		Use:           "client-tm [host] [port]",
		Short:         "Interactive console for a dockctl broker",
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := resolveAddr(args)
			return run(cmd.Context(), addr, cfg)
		},
	}
	cmd.Flags().DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "timeout for each connection attempt")
	cmd.Flags().IntVar(&cfg.MaxConnectAttempts, "attempts", cfg.MaxConnectAttempts, "connection attempts before giving up")
	return cmd
}

// resolveAddr maps the optional host and port arguments to a dial address.
// An invalid port falls back to the default with a warning.
func resolveAddr(args []string) string {
	host := defaultHost
	port := broker.DefaultPort
	if len(args) >= 1 {
		host = args[0]
	}
	if len(args) >= 2 {
		parsed, ok := config.ParsePort(args[1], broker.DefaultPort)
		if !ok {
			log.Warn().Str("port", args[1]).Msgf("Invalid port number. Using default: %d", broker.DefaultPort)
		}
		port = parsed
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func run(ctx context.Context, addr string, cfg session.Config) error {
	conn, err := session.Dial(ctx, addr, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to connect to server at %s\n", addr)
		fmt.Fprintln(os.Stderr, "\nMake sure the server is running and accessible.")
		return err
	}
	log.Info().Str("addr", addr).Msg("client-tm connected")

	app := client.NewApp(conn, os.Stdin, os.Stdout, os.Stderr)
	return app.Run(ctx)
}
