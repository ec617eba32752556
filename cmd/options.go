package main

import (
	"os"

	"github.com/spf13/cobra"

	"pdf-qa/internal/options"
)

func optionsCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Manage the stored API key",
	}

	set := &cobra.Command{
		Use:   "set <api-key>",
		Short: "Store the API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			creds, err := openSettings(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer creds.Close()

			return options.NewPage(creds, options.NewTerminalView(os.Stdout)).Save(cmd.Context(), args[0])
		},
	}

	var reveal bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			creds, err := openSettings(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer creds.Close()

			view := options.NewTerminalView(os.Stdout)
			view.Reveal = reveal
			return options.NewPage(creds, view).Restore(cmd.Context())
		},
	}
	show.Flags().BoolVar(&reveal, "reveal", false, "print the key unmasked")

	cmd.AddCommand(set, show)
	return cmd
}
