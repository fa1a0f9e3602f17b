package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hanpama/kanbangraph/internal/config"
	"github.com/hanpama/kanbangraph/internal/fixture"
)

// NewMigrateCommand creates the SQL tables and the DynamoDB users table.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the storage schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.Store.Driver == config.DriverMemory && opts.cfg.Users.Backend == config.UsersInStore {
				return fmt.Errorf("migrate: nothing to do for driver %q", config.DriverMemory)
			}
			b, err := openBackend(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			if err := b.migrate(cmd.Context()); err != nil {
				return err
			}
			opts.log.Info("schema migrated", "driver", opts.cfg.Store.Driver)
			return nil
		},
	}
}

// NewSeedCommand writes a dataset, the embedded sample by default, into
// the configured stores.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a dataset into the configured stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := readDataset(file)
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			if err := b.migrate(cmd.Context()); err != nil {
				return err
			}
			if err := fixture.Seed(cmd.Context(), b.writer, ds); err != nil {
				return err
			}
			opts.log.Info("dataset seeded", "users", len(ds.Users), "boards", len(ds.Boards))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML dataset (default: embedded sample)")
	return cmd
}

func readDataset(path string) (*fixture.Dataset, error) {
	if path == "" {
		return fixture.Sample()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	defer f.Close()
	return fixture.Read(f)
}
