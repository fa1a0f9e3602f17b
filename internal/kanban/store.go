package kanban

import "context"

// Lookups by identifier return only the entities that exist; a missing
// identifier is absent from the map and is not an error.

type UserStore interface {
	UsersByIDs(ctx context.Context, ids []UserID) (map[UserID]User, error)
	AllUsers(ctx context.Context) ([]User, error)
}

type BoardStore interface {
	BoardsByIDs(ctx context.Context, ids []BoardID) (map[BoardID]Board, error)
	AllBoards(ctx context.Context) ([]Board, error)
	// BoardsByOwners groups boards by owner. Owners without boards may be
	// absent.
	BoardsByOwners(ctx context.Context, owners []UserID) (map[UserID][]Board, error)
}

type ColumnStore interface {
	ColumnsByIDs(ctx context.Context, ids []ColumnID) (map[ColumnID]Column, error)
}

type CardStore interface {
	// CardsInRange returns the cards of column at positions min..max
	// inclusive, ordered by position. The result is shorter when the column
	// holds fewer cards.
	CardsInRange(ctx context.Context, column ColumnID, min, max int) ([]Card, error)
	CardsByIDs(ctx context.Context, ids []CardID) (map[CardID]Card, error)
}

// Stores bundles the collaborators the resolvers read from. Each one may be
// backed by a different engine.
type Stores struct {
	Users   UserStore
	Boards  BoardStore
	Columns ColumnStore
	Cards   CardStore
}

// UserWriter persists users.
type UserWriter interface {
	PutUser(ctx context.Context, u User) error
}

// Writer persists every entity kind. Cards must be written after their
// column.
type Writer interface {
	UserWriter
	PutBoard(ctx context.Context, b Board) error
	PutColumn(ctx context.Context, c Column) error
	PutCard(ctx context.Context, c Card) error
}
