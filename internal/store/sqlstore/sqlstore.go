// Package sqlstore keeps every entity kind in a relational database. The same
// queries run on SQLite (driver "sqlite3") and PostgreSQL (driver "postgres");
// only placeholders differ.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hanpama/kanbangraph/internal/kanban"
)

//go:embed schema.sql
var schemaSQL string

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var (
	_ kanban.UserStore   = (*Store)(nil)
	_ kanban.BoardStore  = (*Store)(nil)
	_ kanban.ColumnStore = (*Store)(nil)
	_ kanban.CardStore   = (*Store)(nil)
	_ kanban.Writer      = (*Store)(nil)
)

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to dsn with driver and checks the connection. It does not
// create tables; call Migrate for that.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("open store: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer, and ":memory:" databases live on
		// one connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
	}
	return &Store{db: db, driver: driver}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	for _, p := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Migrate creates missing tables and indexes. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Stores exposes s as every collaborator.
func (s *Store) Stores() kanban.Stores {
	return kanban.Stores{Users: s, Boards: s, Columns: s, Cards: s}
}

// rebind rewrites ? placeholders into the driver's syntax.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] != '?' {
			b.WriteByte(q[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// in renders "(?, ?, ...)" for values and returns them as arguments.
func in[T any](values []T) (string, []any) {
	args := make([]any, len(values))
	marks := make([]string, len(values))
	for i, v := range values {
		args[i] = v
		marks[i] = "?"
	}
	return "(" + strings.Join(marks, ", ") + ")", args
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// collect runs q and scans each row with scan.
func collect[T any](ctx context.Context, db querier, q string, args []any, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanUser(r *sql.Rows) (kanban.User, error) {
	var u kanban.User
	err := r.Scan(&u.ID, &u.Name, &u.Email)
	return u, err
}

func scanColumn(r *sql.Rows) (kanban.Column, error) {
	var c kanban.Column
	err := r.Scan(&c.ID, &c.Title, &c.CardCount)
	return c, err
}

func scanCard(r *sql.Rows) (kanban.Card, error) {
	var c kanban.Card
	err := r.Scan(&c.ID, &c.Column, &c.Position, &c.Title, &c.Description)
	return c, err
}

func scanBoard(r *sql.Rows) (kanban.Board, error) {
	var b kanban.Board
	err := r.Scan(&b.ID, &b.Title, &b.Owner)
	return b, err
}

const (
	selectUsers   = "SELECT id, name, email FROM users"
	selectBoards  = "SELECT id, title, owner_id FROM boards"
	selectColumns = "SELECT c.id, c.title, (SELECT COUNT(*) FROM cards k WHERE k.column_id = c.id) FROM kanban_columns c"
	selectCards   = "SELECT id, column_id, pos, title, description FROM cards"
)

func (s *Store) UsersByIDs(ctx context.Context, ids []kanban.UserID) (map[kanban.UserID]kanban.User, error) {
	out := make(map[kanban.UserID]kanban.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	marks, args := in(ids)
	users, err := collect(ctx, s.db, s.rebind(selectUsers+" WHERE id IN "+marks), args, scanUser)
	if err != nil {
		return nil, fmt.Errorf("users by ids: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (s *Store) AllUsers(ctx context.Context) ([]kanban.User, error) {
	users, err := collect(ctx, s.db, selectUsers+" ORDER BY id", nil, scanUser)
	if err != nil {
		return nil, fmt.Errorf("all users: %w", err)
	}
	return users, nil
}

func (s *Store) BoardsByIDs(ctx context.Context, ids []kanban.BoardID) (map[kanban.BoardID]kanban.Board, error) {
	out := make(map[kanban.BoardID]kanban.Board, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	marks, args := in(ids)
	boards, err := s.boards(ctx, " WHERE id IN "+marks, args)
	if err != nil {
		return nil, fmt.Errorf("boards by ids: %w", err)
	}
	for _, b := range boards {
		out[b.ID] = b
	}
	return out, nil
}

func (s *Store) AllBoards(ctx context.Context) ([]kanban.Board, error) {
	boards, err := s.boards(ctx, "", nil)
	if err != nil {
		return nil, fmt.Errorf("all boards: %w", err)
	}
	return boards, nil
}

func (s *Store) BoardsByOwners(ctx context.Context, owners []kanban.UserID) (map[kanban.UserID][]kanban.Board, error) {
	out := map[kanban.UserID][]kanban.Board{}
	if len(owners) == 0 {
		return out, nil
	}
	marks, args := in(owners)
	boards, err := s.boards(ctx, " WHERE owner_id IN "+marks, args)
	if err != nil {
		return nil, fmt.Errorf("boards by owners: %w", err)
	}
	for _, b := range boards {
		out[b.Owner] = append(out[b.Owner], b)
	}
	return out, nil
}

// boards reads the boards matching where, ordered by id, with their column
// lists.
func (s *Store) boards(ctx context.Context, where string, args []any) ([]kanban.Board, error) {
	boards, err := collect(ctx, s.db, s.rebind(selectBoards+where+" ORDER BY id"), args, scanBoard)
	if err != nil || len(boards) == 0 {
		return boards, err
	}
	ids := make([]kanban.BoardID, len(boards))
	index := make(map[kanban.BoardID]int, len(boards))
	for i, b := range boards {
		ids[i] = b.ID
		index[b.ID] = i
	}
	marks, bargs := in(ids)
	type link struct {
		board  kanban.BoardID
		column kanban.ColumnID
	}
	links, err := collect(ctx, s.db,
		s.rebind("SELECT board_id, column_id FROM board_columns WHERE board_id IN "+marks+" ORDER BY board_id, pos"),
		bargs,
		func(r *sql.Rows) (link, error) {
			var l link
			err := r.Scan(&l.board, &l.column)
			return l, err
		})
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		b := &boards[index[l.board]]
		b.Columns = append(b.Columns, l.column)
	}
	return boards, nil
}

func (s *Store) ColumnsByIDs(ctx context.Context, ids []kanban.ColumnID) (map[kanban.ColumnID]kanban.Column, error) {
	out := make(map[kanban.ColumnID]kanban.Column, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	marks, args := in(ids)
	cols, err := collect(ctx, s.db, s.rebind(selectColumns+" WHERE c.id IN "+marks), args, scanColumn)
	if err != nil {
		return nil, fmt.Errorf("columns by ids: %w", err)
	}
	for _, c := range cols {
		out[c.ID] = c
	}
	return out, nil
}

func (s *Store) CardsInRange(ctx context.Context, column kanban.ColumnID, min, max int) ([]kanban.Card, error) {
	cards, err := collect(ctx, s.db,
		s.rebind(selectCards+" WHERE column_id = ? AND pos BETWEEN ? AND ? ORDER BY pos"),
		[]any{column, min, max}, scanCard)
	if err != nil {
		return nil, fmt.Errorf("cards of %s in %d..%d: %w", column, min, max, err)
	}
	return cards, nil
}

func (s *Store) CardsByIDs(ctx context.Context, ids []kanban.CardID) (map[kanban.CardID]kanban.Card, error) {
	out := make(map[kanban.CardID]kanban.Card, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	marks, args := in(ids)
	cards, err := collect(ctx, s.db, s.rebind(selectCards+" WHERE id IN "+marks), args, scanCard)
	if err != nil {
		return nil, fmt.Errorf("cards by ids: %w", err)
	}
	for _, c := range cards {
		out[c.ID] = c
	}
	return out, nil
}

func (s *Store) PutUser(ctx context.Context, u kanban.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO users (id, name, email) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email`),
		u.ID, u.Name, u.Email)
	if err != nil {
		return fmt.Errorf("put user %s: %w", u.ID, err)
	}
	return nil
}

func (s *Store) PutColumn(ctx context.Context, c kanban.Column) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO kanban_columns (id, title) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET title = excluded.title`),
		c.ID, c.Title)
	if err != nil {
		return fmt.Errorf("put column %s: %w", c.ID, err)
	}
	return nil
}

// PutBoard replaces the board row and its column list in one transaction.
func (s *Store) PutBoard(ctx context.Context, b kanban.Board) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if ok, err := s.exists(ctx, tx, "users", b.Owner); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("board %s: unknown owner %s", b.ID, b.Owner)
		}
		for _, c := range b.Columns {
			if ok, err := s.exists(ctx, tx, "kanban_columns", c); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("board %s: unknown column %s", b.ID, c)
			}
		}
		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO boards (id, title, owner_id) VALUES (?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET title = excluded.title, owner_id = excluded.owner_id`),
			b.ID, b.Title, b.Owner); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM board_columns WHERE board_id = ?"), b.ID); err != nil {
			return err
		}
		for pos, c := range b.Columns {
			if _, err := tx.ExecContext(ctx, s.rebind(
				"INSERT INTO board_columns (board_id, pos, column_id) VALUES (?, ?, ?)"),
				b.ID, pos, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutCard places c at its position. A card may replace an existing position
// or append at the end of its column.
func (s *Store) PutCard(ctx context.Context, c kanban.Card) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if ok, err := s.exists(ctx, tx, "kanban_columns", c.Column); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("card %s: unknown column %s", c.ID, c.Column)
		}
		var count int
		if err := tx.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM cards WHERE column_id = ?"), c.Column).Scan(&count); err != nil {
			return err
		}
		if c.Position > count {
			return fmt.Errorf("card %s: position %d leaves a gap after %d cards", c.ID, c.Position, count)
		}
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM cards WHERE column_id = ? AND pos = ?"), c.Column, c.Position); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO cards (id, column_id, pos, title, description) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET column_id = excluded.column_id, pos = excluded.pos,
			   title = excluded.title, description = excluded.description`),
			c.ID, c.Column, c.Position, c.Title, c.Description)
		return err
	})
}

func (s *Store) exists(ctx context.Context, tx *sql.Tx, table string, key any) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, s.rebind("SELECT 1 FROM "+table+" WHERE id = ?"), key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
