package main

import (
	"fmt"

	"github.com/danmuck/dockctl/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage brokerctl config.toml",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigValidateCmd(), newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var output string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteTemplate(output, "brokerctl", force); err != nil {
				return err
			}
			log.Info().Str("path", output).Msg("brokerctl config template written")
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", defaultConfigPath, "output path for the template")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := config.LoadServerConfig(input); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Validated brokerctl config at %s\n", input)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", defaultConfigPath, "config path to validate")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config with defaults applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.DefaultServerConfig()
			if input != "" {
				loaded, err := config.LoadServerConfig(input)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			out, err := config.Render(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "config path (defaults when empty)")
	return cmd
}
