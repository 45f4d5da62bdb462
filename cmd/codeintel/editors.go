package main

import (
	"fmt"
	"strings"

	"codeintel/client"
	"codeintel/internal/hosts"

	"github.com/spf13/cobra"
)

func editorsCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "editors",
		Short: "List the editors and code views of a running watch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				server = "http://" + cfg.Addr()
			}
			c := client.New(server)
			ctx := cmd.Context()
			if err := c.Health(ctx); err != nil {
				return fmt.Errorf("no watch running at %s: %w", server, err)
			}

			editors, err := c.ListEditors(ctx)
			if err != nil {
				return err
			}
			fmt.Println(green(fmt.Sprintf("%d editors", len(editors))))
			for _, e := range editors {
				sel := ""
				if len(e.Selections) > 0 {
					s := e.Selections[0]
					sel = fmt.Sprintf(" %d:%d-%d:%d", s.Start.Line, s.Start.Character, s.End.Line, s.End.Character)
				}
				fmt.Printf("  %s %s %s%s\n", e.EditorID, e.Resource, faint(e.Model.LanguageID), sel)
			}

			views, err := c.ListViews(ctx)
			if err != nil {
				return err
			}
			fmt.Println(green(fmt.Sprintf("%d code views", len(views))))
			for _, view := range views {
				line := fmt.Sprintf("  %s %s", view.ElementID, view.Status)
				if view.Info != nil {
					line += " " + describe(*view.Info)
				}
				if view.Error != "" {
					line += " " + red(view.Error)
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "API base URL (default from server.host and server.port)")
	return cmd
}

func hostsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hosts",
		Short: "List the known code hosts",
		Run: func(cmd *cobra.Command, args []string) {
			registry := hosts.Builtin(cfg.TabWidth)
			for _, name := range registry.Names() {
				h, _ := registry.Lookup(name)
				marker := " "
				if name == cfg.Host {
					marker = green("*")
				}
				fmt.Printf("%s %s %s\n", marker, name, faint(fmt.Sprintf("%d code view, %d text field resolvers",
					len(h.CodeViewResolvers), len(h.TextFieldResolvers))))
			}
			fmt.Println(faint(strings.Repeat("-", 3)), "select with --host")
		},
	}
}
