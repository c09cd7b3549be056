package main

import (
	"github.com/spf13/cobra"

	"github.com/dastanaron/bookmarktree/internal/commands"
)

// The batch commands always work on the local database.

func newImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a Netscape bookmark HTML file",
		Long: `Merge a browser bookmark export into the database. Folders are matched by
name and bookmarks by URL, so importing a file again only updates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := c.stderrLogger()
			if err != nil {
				return err
			}
			repo, err := c.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()
			return commands.NewImportCommand(repo, cmd.OutOrStdout(), log).Execute(cmd.Context(), args[0])
		},
	}
}

func newExportCmd(c *cli) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export every bookmark to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := c.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()
			return commands.NewExportCommand(repo, cmd.OutOrStdout()).Execute(cmd.Context(), args[0], format)
		},
	}
	cmd.Flags().StringVar(&format, "format", commands.FormatHTML, "output format: html or yaml")
	return cmd
}

func newClearDoublesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-doubles",
		Short: "Remove bookmarks whose URL appears earlier in the tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := c.stderrLogger()
			if err != nil {
				return err
			}
			repo, err := c.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()
			_, err = commands.NewClearDoublesCommand(repo, cmd.OutOrStdout(), log).Execute(cmd.Context())
			return err
		},
	}
}
