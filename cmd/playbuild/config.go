package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stianhazel/play.tailwindcss.com/internal/assembler"
	"github.com/stianhazel/play.tailwindcss.com/internal/config"
)

func newConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and check configuration",
	}
	cmd.AddCommand(newConfigSchemaCommand(), newConfigCheckCommand(root))
	return cmd
}

func newConfigSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bs, err := config.ReflectSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(bs))
			return err
		},
	}
}

func newConfigCheckCommand(root *rootOptions) *cobra.Command {
	var files, patches []string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load and assemble configuration without building",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(files, patches)
			if err != nil {
				return err
			}
			a, err := assembler.New(cfg, root.logger())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d worker(s), %d rule(s), %d target environment(s)\n",
				len(cfg.Workers), a.Pipeline().Len(), a.EnvTargets().Len())
			return err
		},
	}
	addConfigFlags(cmd.Flags(), root.env, &files, &patches)
	return cmd
}
