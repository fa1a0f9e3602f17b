// Package cli implements the kanbangraph command line.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hanpama/kanbangraph/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Verbose    bool

	v   *viper.Viper
	cfg *config.Config
	log *slog.Logger
}

// NewRootCommand creates the kanbangraph command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{v: config.New()}

	cmd := &cobra.Command{
		Use:   "kanbangraph",
		Short: "kanbangraph - a batched GraphQL API over kanban boards",
		Long: `kanbangraph serves users, boards, columns and cards as a GraphQL graph.
Field lookups are coalesced into bulk store reads per request, and query
documents with too many aliases are rejected before they run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.v, opts.ConfigFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.log = newLogger(cmd.ErrOrStderr(), cfg.Log, opts.Verbose)
			slog.SetDefault(opts.log)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")
	cmd.PersistentFlags().String("store-driver", "", "store driver (memory|sqlite3|postgres)")
	cmd.PersistentFlags().String("store-dsn", "", "store data source name")
	_ = opts.v.BindPFlag("store.driver", cmd.PersistentFlags().Lookup("store-driver"))
	_ = opts.v.BindPFlag("store.dsn", cmd.PersistentFlags().Lookup("store-dsn"))

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

func newLogger(w io.Writer, c config.LogConfig, verbose bool) *slog.Logger {
	level := c.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}
