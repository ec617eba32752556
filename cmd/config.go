package main

import (
	"github.com/spf13/cobra"

	"pdf-qa/internal/helper"
)

func configCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			if cfg.Settings.RedisPassword != "" {
				cfg.Settings.RedisPassword = "***"
			}
			helper.FprettyPrint(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}
