// Package memory is an in-process store for every entity kind. It backs the
// default configuration and the tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hanpama/kanbangraph/internal/kanban"
)

// Store is safe for concurrent use. Values are copied in and out.
type Store struct {
	mu      sync.RWMutex
	users   map[kanban.UserID]kanban.User
	boards  map[kanban.BoardID]kanban.Board
	columns map[kanban.ColumnID]kanban.Column
	cards   map[kanban.CardID]kanban.Card
	lanes   map[kanban.ColumnID][]kanban.CardID
}

var (
	_ kanban.UserStore   = (*Store)(nil)
	_ kanban.BoardStore  = (*Store)(nil)
	_ kanban.ColumnStore = (*Store)(nil)
	_ kanban.CardStore   = (*Store)(nil)
	_ kanban.Writer      = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:   map[kanban.UserID]kanban.User{},
		boards:  map[kanban.BoardID]kanban.Board{},
		columns: map[kanban.ColumnID]kanban.Column{},
		cards:   map[kanban.CardID]kanban.Card{},
		lanes:   map[kanban.ColumnID][]kanban.CardID{},
	}
}

// Stores exposes s as every collaborator.
func (s *Store) Stores() kanban.Stores {
	return kanban.Stores{Users: s, Boards: s, Columns: s, Cards: s}
}

func (s *Store) UsersByIDs(ctx context.Context, ids []kanban.UserID) (map[kanban.UserID]kanban.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pick(s.users, ids), ctx.Err()
}

func (s *Store) AllUsers(ctx context.Context) ([]kanban.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]kanban.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out, ctx.Err()
}

func (s *Store) BoardsByIDs(ctx context.Context, ids []kanban.BoardID) (map[kanban.BoardID]kanban.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := pick(s.boards, ids)
	for k, b := range out {
		out[k] = cloneBoard(b)
	}
	return out, ctx.Err()
}

func (s *Store) AllBoards(ctx context.Context) ([]kanban.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedBoards(func(kanban.Board) bool { return true }), ctx.Err()
}

func (s *Store) BoardsByOwners(ctx context.Context, owners []kanban.UserID) (map[kanban.UserID][]kanban.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[kanban.UserID]bool, len(owners))
	for _, o := range owners {
		want[o] = true
	}
	out := map[kanban.UserID][]kanban.Board{}
	for _, b := range s.sortedBoards(func(b kanban.Board) bool { return want[b.Owner] }) {
		out[b.Owner] = append(out[b.Owner], b)
	}
	return out, ctx.Err()
}

func (s *Store) sortedBoards(keep func(kanban.Board) bool) []kanban.Board {
	var out []kanban.Board
	for _, b := range s.boards {
		if keep(b) {
			out = append(out, cloneBoard(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out
}

func (s *Store) ColumnsByIDs(ctx context.Context, ids []kanban.ColumnID) (map[kanban.ColumnID]kanban.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := pick(s.columns, ids)
	for k, c := range out {
		c.CardCount = len(s.lanes[k])
		out[k] = c
	}
	return out, ctx.Err()
}

func (s *Store) CardsInRange(ctx context.Context, column kanban.ColumnID, min, max int) ([]kanban.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lane := s.lanes[column]
	if min < 0 {
		min = 0
	}
	if max >= len(lane) {
		max = len(lane) - 1
	}
	var out []kanban.Card
	for pos := min; pos <= max; pos++ {
		out = append(out, s.cards[lane[pos]])
	}
	return out, ctx.Err()
}

func (s *Store) CardsByIDs(ctx context.Context, ids []kanban.CardID) (map[kanban.CardID]kanban.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pick(s.cards, ids), ctx.Err()
}

func (s *Store) PutUser(_ context.Context, u kanban.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *Store) PutBoard(_ context.Context, b kanban.Board) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[b.Owner]; !ok {
		return fmt.Errorf("board %s: unknown owner %s", b.ID, b.Owner)
	}
	for _, c := range b.Columns {
		if _, ok := s.columns[c]; !ok {
			return fmt.Errorf("board %s: unknown column %s", b.ID, c)
		}
	}
	s.boards[b.ID] = cloneBoard(b)
	return nil
}

func (s *Store) PutColumn(_ context.Context, c kanban.Column) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.CardCount = 0
	s.columns[c.ID] = c
	return nil
}

// PutCard places c at its position. Positions must be written in order: a
// card may replace an existing position or append at the end.
func (s *Store) PutCard(_ context.Context, c kanban.Card) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.columns[c.Column]; !ok {
		return fmt.Errorf("card %s: unknown column %s", c.ID, c.Column)
	}
	lane := s.lanes[c.Column]
	switch {
	case c.Position < len(lane):
		delete(s.cards, lane[c.Position])
		lane[c.Position] = c.ID
	case c.Position == len(lane):
		lane = append(lane, c.ID)
	default:
		return fmt.Errorf("card %s: position %d leaves a gap after %d cards", c.ID, c.Position, len(lane))
	}
	s.lanes[c.Column] = lane
	s.cards[c.ID] = c
	return nil
}

func pick[K comparable, V any](m map[K]V, keys []K) map[K]V {
	out := make(map[K]V, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}

func cloneBoard(b kanban.Board) kanban.Board {
	b.Columns = append([]kanban.ColumnID(nil), b.Columns...)
	return b
}
