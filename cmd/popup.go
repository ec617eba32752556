package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pdf-qa/internal/llmservice"
	"pdf-qa/internal/messaging"
	"pdf-qa/internal/popup"
	"pdf-qa/internal/session"
)

func popupCMD() *cobra.Command {
	var (
		docURL    string
		pageURL   string
		questions []string
	)

	cmd := &cobra.Command{
		Use:   "popup",
		Short: "Extract the document and answer questions about it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (docURL == "") == (pageURL == "") {
				return errors.New("exactly one of --url or --page is required")
			}

			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			var client messaging.Client
			if pageURL != "" {
				client = messaging.NewHTTPClient(pageURL, nil)
			} else {
				page, err := openPage(ctx, cfg, docURL)
				if err != nil {
					return err
				}
				client = messaging.NewLocalClient(messaging.NewHandler(page))
			}

			creds, err := openSettings(ctx, cfg)
			if err != nil {
				return err
			}
			defer creds.Close()

			sess, err := session.New()
			if err != nil {
				return err
			}

			view := popup.NewTerminalView(os.Stdout)
			ctrl := popup.NewController(client, creds, llmservice.NewProvider(cfg), sess, view,
				popup.WithTopK(cfg.RAG.TopK))
			defer ctrl.Close()

			ctrl.Open(ctx)
			if ctrl.State() == popup.StateNoPdf {
				return nil
			}
			ctrl.Extract(ctx)
			if ctrl.State() != popup.StateReady {
				_, msg := ctrl.LastError()
				return errors.New(msg)
			}

			if len(questions) > 0 {
				for _, q := range questions {
					fmt.Fprintf(os.Stdout, "> %s\n", q)
					ctrl.Ask(ctx, q)
				}
				return nil
			}

			scanner := bufio.NewScanner(os.Stdin)
			for ctx.Err() == nil {
				fmt.Fprint(os.Stdout, "> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					break
				}
				ctrl.Ask(ctx, line)
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&docURL, "url", "", "document to open (http(s):// or file://)")
	cmd.Flags().StringVar(&pageURL, "page", "", "base URL of a running 'serve' page context")
	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "ask these questions and exit")
	return cmd
}
