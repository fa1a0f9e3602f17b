package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanpama/kanbangraph/internal/config"
	"github.com/hanpama/kanbangraph/internal/eventbus"
	"github.com/hanpama/kanbangraph/internal/eventlog"
	"github.com/hanpama/kanbangraph/internal/fixture"
	"github.com/hanpama/kanbangraph/internal/kanban"
	"github.com/hanpama/kanbangraph/internal/otel"
	"github.com/hanpama/kanbangraph/internal/resolver"
	"github.com/hanpama/kanbangraph/internal/schema"
	"github.com/hanpama/kanbangraph/internal/server"
)

// NewServeCommand runs the HTTP GraphQL server until interrupted.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the GraphQL HTTP server",
		Long: `Run the GraphQL HTTP server on server.addr.

Example:
  kanbangraph serve --addr :8080
  KANBANGRAPH_STORE_DRIVER=sqlite3 KANBANGRAPH_STORE_DSN=kanban.db kanbangraph serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}
	cmd.Flags().String("addr", "", "HTTP listen address (default :8080)")
	cmd.Flags().Bool("introspection", true, "serve __schema and __type")
	cmd.Flags().Bool("seed", true, "load the sample dataset at startup")
	_ = opts.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = opts.v.BindPFlag("server.introspection", cmd.Flags().Lookup("introspection"))
	_ = opts.v.BindPFlag("store.seed", cmd.Flags().Lookup("seed"))
	return cmd
}

// newHandler builds the GraphQL handler for cfg over b.
func newHandler(cfg *config.Config, b *backend) (*server.Handler, error) {
	sch, err := schema.Load(kanban.SchemaName, kanban.SDL)
	if err != nil {
		return nil, err
	}
	sopts := []server.Option{
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithGraphiQL(cfg.Server.GraphiQL),
		server.WithIntrospection(cfg.Server.Introspection),
		server.WithComplexity(cfg.Complexity),
	}
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	h, err := server.New(resolver.New(b.stores, cfg.Loader), sch, sopts...)
	if err != nil {
		return nil, fmt.Errorf("server init: %w", err)
	}
	return h, nil
}

func serve(ctx context.Context, opts *RootOptions) error {
	cfg := opts.cfg
	eventbus.Use(eventbus.New())
	defer eventlog.Register(opts.log)()

	shutdown, err := otel.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	if err := b.migrate(ctx); err != nil {
		return err
	}
	if cfg.Store.Seed {
		ds, err := fixture.Sample()
		if err != nil {
			return err
		}
		if err := fixture.Seed(ctx, b.writer, ds); err != nil {
			return err
		}
		opts.log.Info("sample dataset loaded", "users", len(ds.Users), "boards", len(ds.Boards))
	}

	h, err := newHandler(cfg, b)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/graphql", h)
	mux.Handle("/", h)

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	opts.log.Info("GraphQL server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	opts.log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
