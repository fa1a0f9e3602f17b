package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hanpama/kanbangraph/internal/config"
	"github.com/hanpama/kanbangraph/internal/kanban"
	"github.com/hanpama/kanbangraph/internal/store/dynamo"
	"github.com/hanpama/kanbangraph/internal/store/memory"
	"github.com/hanpama/kanbangraph/internal/store/sqlstore"
)

// backend is the set of stores one configuration resolves to.
type backend struct {
	stores kanban.Stores
	writer kanban.Writer
	sql    *sqlstore.Store
	users  *dynamo.Users
}

func (b *backend) Close() error {
	if b.sql != nil {
		return b.sql.Close()
	}
	return nil
}

// openBackend connects the configured stores. SQL stores are not migrated
// here.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{}
	switch cfg.Store.Driver {
	case config.DriverMemory:
		m := memory.New()
		b.stores, b.writer = m.Stores(), m
	case config.DriverSQLite, config.DriverPostgres:
		s, err := sqlstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		b.sql = s
		b.stores, b.writer = s.Stores(), s
	default:
		return nil, fmt.Errorf("open store: unsupported driver %q", cfg.Store.Driver)
	}

	if cfg.Users.Backend == config.UsersDynamoDB {
		client, err := dynamo.NewClient(ctx, cfg.Users.DynamoDB)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.users = dynamo.NewUsers(client, cfg.Users.DynamoDB.Table)
		b.stores.Users = b.users
		b.writer = mirroredUsers{Writer: b.writer, users: b.users}
	}
	slog.Debug("stores opened", "driver", cfg.Store.Driver, "users", cfg.Users.Backend)
	return b, nil
}

// migrate creates the SQL schema and the users table, whichever apply.
func (b *backend) migrate(ctx context.Context) error {
	var errs []error
	if b.sql != nil {
		errs = append(errs, b.sql.Migrate(ctx))
	}
	if b.users != nil {
		errs = append(errs, b.users.CreateTable(ctx))
	}
	return errors.Join(errs...)
}

// mirroredUsers writes users to DynamoDB, where they are read from, and to
// the main store, which checks board owners against its own users.
type mirroredUsers struct {
	kanban.Writer
	users kanban.UserWriter
}

func (w mirroredUsers) PutUser(ctx context.Context, u kanban.User) error {
	if err := w.users.PutUser(ctx, u); err != nil {
		return err
	}
	return w.Writer.PutUser(ctx, u)
}
