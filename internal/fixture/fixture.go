// Package fixture reads board datasets written as YAML and seeds them into
// a store.
package fixture

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/hanpama/kanbangraph/internal/kanban"
)

//go:embed sample.yaml
var sample []byte

// Dataset is a YAML document listing users and their boards. Columns are
// nested in boards and cards in columns, in display order.
type Dataset struct {
	Users  []kanban.User `yaml:"users"`
	Boards []Board       `yaml:"boards"`
}

type Board struct {
	ID      kanban.BoardID `yaml:"id"`
	Title   string         `yaml:"title"`
	Owner   kanban.UserID  `yaml:"owner"`
	Columns []Column       `yaml:"columns"`
}

type Column struct {
	ID    kanban.ColumnID `yaml:"id"`
	Title string          `yaml:"title"`
	Cards []kanban.Card   `yaml:"cards"`
}

// Entities is a dataset flattened into storable values.
type Entities struct {
	Users   []kanban.User
	Boards  []kanban.Board
	Columns []kanban.Column
	Cards   []kanban.Card
}

// Sample returns the built-in dataset: three users, three boards.
func Sample() (*Dataset, error) {
	return Read(bytes.NewReader(sample))
}

// Read decodes a dataset. Unknown keys are rejected.
func Read(r io.Reader) (*Dataset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return &ds, nil
}

// Flatten assigns card positions and column card counts and validates every
// entity, including references between them.
func (ds *Dataset) Flatten() (*Entities, error) {
	out := &Entities{Users: ds.Users}
	users := make(map[kanban.UserID]bool, len(ds.Users))
	for _, u := range ds.Users {
		if err := u.Validate(); err != nil {
			return nil, err
		}
		users[u.ID] = true
	}
	for _, b := range ds.Boards {
		if !users[b.Owner] {
			return nil, fmt.Errorf("board %s: unknown owner %s", b.ID, b.Owner)
		}
		board := kanban.Board{ID: b.ID, Title: b.Title, Owner: b.Owner}
		for _, c := range b.Columns {
			col := kanban.Column{ID: c.ID, Title: c.Title, CardCount: len(c.Cards)}
			if err := col.Validate(); err != nil {
				return nil, err
			}
			for i, card := range c.Cards {
				card.Column = c.ID
				card.Position = i
				if err := card.Validate(); err != nil {
					return nil, err
				}
				out.Cards = append(out.Cards, card)
			}
			board.Columns = append(board.Columns, c.ID)
			out.Columns = append(out.Columns, col)
		}
		if err := board.Validate(); err != nil {
			return nil, err
		}
		out.Boards = append(out.Boards, board)
	}
	return out, nil
}

// Seed writes ds through w. Users come first, then columns with their
// cards, then boards.
func Seed(ctx context.Context, w kanban.Writer, ds *Dataset) error {
	ents, err := ds.Flatten()
	if err != nil {
		return err
	}
	for _, u := range ents.Users {
		if err := w.PutUser(ctx, u); err != nil {
			return fmt.Errorf("put user %s: %w", u.ID, err)
		}
	}
	for _, c := range ents.Columns {
		if err := w.PutColumn(ctx, c); err != nil {
			return fmt.Errorf("put column %s: %w", c.ID, err)
		}
	}
	for _, c := range ents.Cards {
		if err := w.PutCard(ctx, c); err != nil {
			return fmt.Errorf("put card %s: %w", c.ID, err)
		}
	}
	for _, b := range ents.Boards {
		if err := w.PutBoard(ctx, b); err != nil {
			return fmt.Errorf("put board %s: %w", b.ID, err)
		}
	}
	return nil
}
