package resolver

import (
	"context"
	"fmt"

	"github.com/hanpama/kanbangraph/internal/dataloader"
	executor "github.com/hanpama/kanbangraph/internal/executor"
	"github.com/hanpama/kanbangraph/internal/id"
	"github.com/hanpama/kanbangraph/internal/kanban"
)

func (r *Runtime) resolveAsync(ctx context.Context, l *Loaders, task executor.Task) (any, error) {
	switch task.ObjectType {
	case "Query":
		return r.resolveQuery(ctx, l, task.Field, task.Args)
	case "User":
		if u, ok := task.Source.(kanban.User); ok && task.Field == "ownedBoards" {
			return ownedBoards(ctx, l, u)
		}
	case "Board":
		b, ok := task.Source.(kanban.Board)
		if !ok {
			break
		}
		switch task.Field {
		case "owner":
			return loadOne(ctx, l.Users, b.Owner)
		case "columns":
			return boardColumns(ctx, l, b)
		}
	case "Column":
		c, ok := task.Source.(kanban.Column)
		if !ok {
			break
		}
		switch task.Field {
		case "cards":
			return columnCards(ctx, l, c, task.Args)
		case "card":
			return columnCard(ctx, l, c, task.Args)
		}
	}
	return nil, fmt.Errorf("no resolver for %s.%s", task.ObjectType, task.Field)
}

func (r *Runtime) resolveQuery(ctx context.Context, l *Loaders, field string, args map[string]any) (any, error) {
	switch field {
	case "node":
		return node(ctx, l, args)
	case "user":
		uid, err := parseArg[id.User](args, "id")
		if err != nil {
			return nil, err
		}
		return loadOne(ctx, l.Users, uid)
	case "users":
		return users(ctx, l, args)
	case "usersAll":
		all, err := r.stores.Users.AllUsers(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range all {
			l.Users.Prime(u.ID, u)
		}
		if all == nil {
			all = []kanban.User{}
		}
		return all, nil
	case "board":
		bid, err := parseArg[id.Board](args, "id")
		if err != nil {
			return nil, err
		}
		return loadOne(ctx, l.Boards, bid)
	case "boards":
		all, err := r.stores.Boards.AllBoards(ctx)
		if err != nil {
			return nil, err
		}
		for _, b := range all {
			l.Boards.Prime(b.ID, b)
		}
		if all == nil {
			all = []kanban.Board{}
		}
		return all, nil
	case "column":
		cid, err := parseArg[id.Column](args, "id")
		if err != nil {
			return nil, err
		}
		return loadOne(ctx, l.Columns, cid)
	case "card":
		cid, err := parseArg[id.Card](args, "id")
		if err != nil {
			return nil, err
		}
		return loadOne(ctx, l.Cards, cid)
	}
	return nil, fmt.Errorf("no resolver for Query.%s", field)
}

// node dispatches on the identifier's kind prefix.
func node(ctx context.Context, l *Loaders, args map[string]any) (any, error) {
	raw, _ := args["id"].(string)
	kind, err := id.KindOf(raw)
	if err != nil {
		return nil, &InputError{Argument: "id", Err: err}
	}
	switch kind {
	case id.User{}.KindName():
		return loadOne(ctx, l.Users, id.MustParse[id.User](raw))
	case id.Board{}.KindName():
		return loadOne(ctx, l.Boards, id.MustParse[id.Board](raw))
	case id.Column{}.KindName():
		return loadOne(ctx, l.Columns, id.MustParse[id.Column](raw))
	case id.Card{}.KindName():
		return loadOne(ctx, l.Cards, id.MustParse[id.Card](raw))
	}
	return nil, fmt.Errorf("node: unhandled kind %q", kind)
}

// users keeps the argument order; unknown identifiers yield null entries.
func users(ctx context.Context, l *Loaders, args map[string]any) (any, error) {
	raw, _ := args["ids"].([]any)
	ids := make([]kanban.UserID, len(raw))
	for i, v := range raw {
		s, _ := v.(string)
		uid, err := id.Parse[id.User](s)
		if err != nil {
			return nil, &InputError{Argument: fmt.Sprintf("ids[%d]", i), Err: err}
		}
		ids[i] = uid
	}
	found, err := l.Users.LoadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(ids))
	for i, uid := range ids {
		if u, ok := found[uid]; ok {
			out[i] = u
		}
	}
	return out, nil
}

func ownedBoards(ctx context.Context, l *Loaders, u kanban.User) (any, error) {
	boards, _, err := l.OwnedBoards.Load(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	for _, b := range boards {
		l.Boards.Prime(b.ID, b)
	}
	if boards == nil {
		boards = []kanban.Board{}
	}
	return boards, nil
}

// boardColumns keeps the board's column order and skips dangling references.
func boardColumns(ctx context.Context, l *Loaders, b kanban.Board) (any, error) {
	found, err := l.Columns.LoadMany(ctx, b.Columns)
	if err != nil {
		return nil, err
	}
	out := make([]kanban.Column, 0, len(b.Columns))
	for _, cid := range b.Columns {
		if c, ok := found[cid]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// columnCards reads positions offset..offset+first-1, clipped to the
// column's card count.
func columnCards(ctx context.Context, l *Loaders, c kanban.Column, args map[string]any) (any, error) {
	first, _ := args["first"].(int)
	offset, _ := args["offset"].(int)
	if first < 0 {
		return nil, &InputError{Argument: "first", Err: fmt.Errorf("must not be negative, got %d", first)}
	}
	if offset < 0 {
		return nil, &InputError{Argument: "offset", Err: fmt.Errorf("must not be negative, got %d", offset)}
	}
	end := c.CardCount
	if offset+first < end {
		end = offset + first
	}
	if offset >= end {
		return []kanban.Card{}, nil
	}
	keys := make([]columnCardKey, 0, end-offset)
	for pos := offset; pos < end; pos++ {
		keys = append(keys, columnCardKey{Group: c.ID, Offset: pos})
	}
	found, err := l.ColumnCards.LoadMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]kanban.Card, 0, len(keys))
	for _, k := range keys {
		if card, ok := found[k]; ok {
			l.Cards.Prime(card.ID, card)
			out = append(out, card)
		}
	}
	return out, nil
}

func columnCard(ctx context.Context, l *Loaders, c kanban.Column, args map[string]any) (any, error) {
	pos, _ := args["position"].(int)
	if pos < 0 || pos >= c.CardCount {
		return nil, nil
	}
	card, ok, err := l.ColumnCards.Load(ctx, columnCardKey{Group: c.ID, Offset: pos})
	if err != nil || !ok {
		return nil, err
	}
	l.Cards.Prime(card.ID, card)
	return card, nil
}

// loadOne returns the value or an untyped nil when the key is absent.
func loadOne[K comparable, V any](ctx context.Context, l *dataloader.Loader[K, V], key K) (any, error) {
	v, ok, err := l.Load(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

func parseArg[K id.Kind](args map[string]any, name string) (id.ID[K], error) {
	s, _ := args[name].(string)
	v, err := id.Parse[K](s)
	if err != nil {
		return v, &InputError{Argument: name, Err: err}
	}
	return v, nil
}
