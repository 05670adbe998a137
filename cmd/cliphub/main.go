// Command cliphub serves the ClipHub clip store over HTTP and manages its
// backups.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/HerbHall/cliphub/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds state shared by every subcommand.
type rootOptions struct {
	configPath string
	v          *viper.Viper
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:           "cliphub",
		Short:         "ClipHub - a small text clip store",
		Long:          "ClipHub stores short text clips in SQLite and serves them over a JSON API.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (YAML)")
	pf.String("db", "", "SQLite database path (overrides storage.path)")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	_ = opts.v.BindPFlag("storage.path", pf.Lookup("db"))
	_ = opts.v.BindPFlag("log.level", pf.Lookup("log-level"))

	cmd.AddCommand(
		newServeCommand(opts),
		newBackupCommand(opts),
		newRestoreCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// load reads the config file, if any, and decodes the layered configuration.
func (o *rootOptions) load() (*config.Config, error) {
	if o.configPath != "" {
		o.v.SetConfigFile(o.configPath)
		if err := o.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", o.configPath, err)
		}
	}
	return config.FromViper(o.v)
}
