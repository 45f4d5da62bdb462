package main

import (
	"encoding/json"
	"fmt"
	"os"

	"codeintel/internal/codeintel"
	"codeintel/internal/codeview"

	"github.com/spf13/cobra"
)

func fetchCmd() *cobra.Command {
	var (
		id      codeview.FileIdentity
		asJSON  bool
		content bool
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Resolve revisions and fetch the contents of one file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id.RevisionSpec == "" {
				id.RevisionSpec = id.ResolvedRevisionID
			}
			fetcher, err := newFetcher(nil)
			if err != nil {
				return err
			}
			info, err := fetcher.FetchFileContents(cmd.Context(), id)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Println(describe(info))
			fmt.Println(faint(codeintel.Resource(info.FileIdentity)))
			if content && info.HasContent() {
				return highlight(os.Stdout, *info.Content+"\n", codeintel.LanguageID(info.FilePath))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&id.RepoName, "repo", "", "repository name, e.g. github.com/owner/name")
	flags.StringVar(&id.RevisionSpec, "rev", "", "revision (branch, tag or commit)")
	flags.StringVar(&id.ResolvedRevisionID, "commit", "", "full commit id, skips resolution when set")
	flags.StringVar(&id.FilePath, "path", "", "file path")
	flags.StringVar(&id.BaseRevisionSpec, "base-rev", "", "base revision of a diff")
	flags.StringVar(&id.BaseCommitID, "base-commit", "", "base commit id of a diff")
	flags.StringVar(&id.BaseFilePath, "base-path", "", "base file path when renamed")
	flags.BoolVar(&asJSON, "json", false, "print the result as JSON")
	flags.BoolVar(&content, "content", false, "print the file contents")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("path")
	cmd.MarkFlagsOneRequired("rev", "commit")
	return cmd
}
