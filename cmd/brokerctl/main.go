package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/danmuck/dockctl/internal/backend"
	"github.com/danmuck/dockctl/internal/broker"
	"github.com/danmuck/dockctl/internal/config"
	"github.com/danmuck/dockctl/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "brokerctl.toml"

// serverFlags are the root command overrides applied on top of config.toml.
type serverFlags struct {
	configPath string
	statusAddr string
	driver     string
}

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "brokerctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags serverFlags
	root := &cobra.Command{
		Use:           "brokerctl [port]",
		Short:         "Serve the docker management broker",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveServerConfig(flags, args)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	root.Flags().StringVar(&flags.configPath, "config", "", "config.toml path (defaults when empty)")
	root.Flags().StringVar(&flags.statusAddr, "status-addr", "", "HTTP status listen address, overrides config")
	root.Flags().StringVar(&flags.driver, "backend", "", "backend driver (engine|cli), overrides config")
	root.AddCommand(newConfigCmd())
	return root
}

// resolveServerConfig loads the optional config file and applies flag and
// port argument overrides. An invalid port falls back to the default.
func resolveServerConfig(flags serverFlags, args []string) (config.ServerConfig, error) {
	cfg := config.DefaultServerConfig()
	if path := strings.TrimSpace(flags.configPath); path != "" {
		loaded, err := config.LoadServerConfig(path)
		if err != nil {
			return config.ServerConfig{}, err
		}
		cfg = loaded
	}
	if len(args) == 1 {
		port, ok := config.ParsePort(args[0], broker.DefaultPort)
		if !ok {
			log.Warn().Str("port", args[0]).Msgf("Invalid port number. Using default: %d", broker.DefaultPort)
		}
		host, _, err := net.SplitHostPort(cfg.Broker.ListenAddr)
		if err != nil {
			host = ""
		}
		cfg.Broker.ListenAddr = net.JoinHostPort(host, strconv.Itoa(port))
	}
	if addr := strings.TrimSpace(flags.statusAddr); addr != "" {
		cfg.Broker.StatusAddr = addr
	}
	if driver := strings.TrimSpace(flags.driver); driver != "" {
		cfg.Backend.Driver = driver
	}
	if err := config.ValidateServerConfig(cfg); err != nil {
		return config.ServerConfig{}, err
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg config.ServerConfig) error {
	gin.SetMode(gin.ReleaseMode)

	b, err := backend.Open(ctx, cfg.Backend)
	if err != nil {
		return err
	}
	svc := broker.NewService(cfg.Broker, b)
	log.Info().
		Str("addr", cfg.Broker.ListenAddr).
		Str("status_addr", cfg.Broker.StatusAddr).
		Str("backend", cfg.Backend.Driver).
		Msg("brokerctl starting")
	if err := svc.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("brokerctl stopped")
	return nil
}
