// Package kanban defines the board domain served by the graph API and the
// storage interfaces the resolvers read it through.
package kanban

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hanpama/kanbangraph/internal/id"
)

type (
	UserID   = id.ID[id.User]
	BoardID  = id.ID[id.Board]
	ColumnID = id.ID[id.Column]
	CardID   = id.ID[id.Card]
)

// MaxUserNameLength is the longest accepted user name, in characters.
const MaxUserNameLength = 20

type User struct {
	ID    UserID `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Board lists its columns in display order.
type Board struct {
	ID      BoardID
	Title   string
	Owner   UserID
	Columns []ColumnID
}

// Column holds CardCount cards at positions 0..CardCount-1.
type Column struct {
	ID        ColumnID
	Title     string
	CardCount int
}

type Card struct {
	ID          CardID   `yaml:"id"`
	Column      ColumnID `yaml:"-"`
	Position    int      `yaml:"-"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
}

// ErrInvariant is matched by every InvariantError.
var ErrInvariant = errors.New("invariant violated")

// InvariantError reports a domain value that cannot be stored.
type InvariantError struct {
	Entity string
	Field  string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Reason)
}

func (e *InvariantError) Is(target error) bool { return target == ErrInvariant }

func (u User) Validate() error {
	switch {
	case u.ID.IsZero():
		return &InvariantError{"user", "id", "missing"}
	case u.Name == "":
		return &InvariantError{"user", "name", "empty"}
	case utf8.RuneCountInString(u.Name) > MaxUserNameLength:
		return &InvariantError{"user", "name", fmt.Sprintf("longer than %d characters", MaxUserNameLength)}
	case !strings.Contains(u.Email, "@"):
		return &InvariantError{"user", "email", `missing "@"`}
	}
	return nil
}

func (b Board) Validate() error {
	switch {
	case b.ID.IsZero():
		return &InvariantError{"board", "id", "missing"}
	case b.Title == "":
		return &InvariantError{"board", "title", "empty"}
	case b.Owner.IsZero():
		return &InvariantError{"board", "owner", "missing"}
	}
	return nil
}

func (c Column) Validate() error {
	switch {
	case c.ID.IsZero():
		return &InvariantError{"column", "id", "missing"}
	case c.Title == "":
		return &InvariantError{"column", "title", "empty"}
	case c.CardCount < 0:
		return &InvariantError{"column", "cardCount", "negative"}
	}
	return nil
}

func (c Card) Validate() error {
	switch {
	case c.ID.IsZero():
		return &InvariantError{"card", "id", "missing"}
	case c.Column.IsZero():
		return &InvariantError{"card", "column", "missing"}
	case c.Position < 0:
		return &InvariantError{"card", "position", "negative"}
	case c.Title == "":
		return &InvariantError{"card", "title", "empty"}
	}
	return nil
}
