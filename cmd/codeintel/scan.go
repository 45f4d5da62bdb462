package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"codeintel/internal/codeintel"
	"codeintel/internal/dom/htmldom"
	"codeintel/internal/editor"
	"codeintel/internal/hosts"

	"github.com/spf13/cobra"
)

func scanCmd() *cobra.Command {
	var showContent bool
	cmd := &cobra.Command{
		Use:   "scan <file|url>",
		Short: "Resolve the code views of a static HTML page once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := hosts.Builtin(cfg.TabWidth).Lookup(cfg.Host)
			if err != nil {
				return err
			}
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			fetcher, err := newFetcher(nil)
			if err != nil {
				return err
			}
			editors, err := editor.NewService(nil, logger.Named("editor"))
			if err != nil {
				return err
			}

			ctrl := codeintel.NewController(fetcher, editors, nil, logger.Named("controller"))
			results := ctrl.Scan(cmd.Context(), doc, host)
			if len(results) == 0 {
				fmt.Println(yellow("No code views found"))
				return nil
			}

			p := newPrinter(os.Stdout)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					p.CodeViewFailed(r.State.ElementID, r.Err)
					continue
				}
				p.CodeViewResolved(r.State)
				if showContent && r.State.Info.HasContent() {
					if err := highlight(os.Stdout, *r.State.Info.Content+"\n", codeintel.LanguageID(r.State.Info.FilePath)); err != nil {
						return err
					}
				}
			}
			fmt.Printf("%d code views, %d failed\n", len(results), failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showContent, "content", false, "print the contents of each resolved file")
	return cmd
}

func loadDocument(source string) (*htmldom.Document, error) {
	var r io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", source, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetching %s: %s", source, resp.Status)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", source, err)
		}
		r = f
	}
	defer r.Close()

	doc, err := htmldom.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source, err)
	}
	return doc, nil
}
