package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-qa/internal/messaging"
	"pdf-qa/internal/server"
)

func serveCMD() *cobra.Command {
	var docURL string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the page context for a document over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			page, err := openPage(ctx, cfg, docURL)
			if err != nil {
				return err
			}
			log.Info().Str("url", page.URL).Bool("pdf", page.IsPDFDocument()).Msg("Page loaded")

			return server.Run(ctx, cfg.Server.Addr, messaging.NewHandler(page))
		},
	}

	cmd.Flags().StringVar(&docURL, "url", "", "document to open (http(s):// or file://)")
	cmd.Flags().String("addr", "", "listen address (default \":8787\")")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
