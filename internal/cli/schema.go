package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hanpama/kanbangraph/internal/kanban"
	"github.com/hanpama/kanbangraph/internal/schema"
)

// NewSchemaCommand prints the public SDL.
func NewSchemaCommand(opts *RootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the GraphQL schema served by kanbangraph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sdl, err := schema.PublicSDL(kanban.SchemaName, kanban.SDL)
			if err != nil {
				return err
			}
			if out == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), sdl)
				return err
			}
			if err := os.WriteFile(out, []byte(sdl), 0o644); err != nil {
				return fmt.Errorf("write schema: %w", err)
			}
			opts.log.Info("schema written", "path", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the schema to a file instead of stdout")
	return cmd
}
