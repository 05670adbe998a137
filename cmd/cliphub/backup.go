package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/HerbHall/cliphub/internal/backup"
	"github.com/HerbHall/cliphub/internal/services"
	"github.com/HerbHall/cliphub/internal/store"
)

func newBackupCommand(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a tar.gz backup of the database and config file",
		Long: "Write a tar.gz archive holding a manifest, the SQLite database and, when\n" +
			"--config is given, the config file. Run it while the server is stopped\n" +
			"or idle; the WAL is checkpointed before copying.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.Storage.Path); err != nil {
				return fmt.Errorf("database %s: %w", cfg.Storage.Path, err)
			}
			if output == "" {
				output = fmt.Sprintf("cliphub-backup-%s.tar.gz", time.Now().Format("20060102-150405"))
			}

			st, err := store.New(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			m, err := backup.Backup(cmd.Context(), st, services.NewClipCounter(st), opts.configPath, output)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			var size uint64
			if info, err := os.Stat(output); err == nil {
				size = uint64(info.Size())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %s (%s, %s clips)\n",
				output, humanize.Bytes(size), humanize.Comma(int64(m.Clips)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default cliphub-backup-{timestamp}.tar.gz)")
	return cmd
}
