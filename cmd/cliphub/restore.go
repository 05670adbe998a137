package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/HerbHall/cliphub/internal/backup"
)

func newRestoreCommand(opts *rootOptions) *cobra.Command {
	var (
		input string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the database from a backup archive",
		Long: "Restore the database (and config file, if archived) into the directory\n" +
			"of storage.path. The server must be stopped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			m, err := backup.Restore(cmd.Context(), input, backup.RestoreOptions{
				DataDir:      filepath.Dir(cfg.Storage.Path),
				DatabaseName: filepath.Base(cfg.Storage.Path),
				Force:        force,
			})
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Restore complete: %s clips from a backup taken %s (ClipHub %s) restored to %s\n",
				humanize.Comma(int64(m.Clips)), humanize.Time(m.CreatedAt), m.Build.Version, cfg.Storage.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "backup archive to restore (required)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
