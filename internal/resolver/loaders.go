package resolver

import (
	"context"

	"github.com/hanpama/kanbangraph/internal/dataloader"
	"github.com/hanpama/kanbangraph/internal/kanban"
)

// LoaderConfig bounds the bulk calls issued by the loaders. Zero means
// unbounded.
type LoaderConfig struct {
	MaxBatch int `mapstructure:"max_batch"`
	MaxSpan  int `mapstructure:"max_span"`
}

type columnCardKey = dataloader.RangeKey[kanban.ColumnID]

// Loaders holds the loaders of one request. They share one scheduler, so a
// depth of resolvers flushes every loader it touched together.
type Loaders struct {
	sched *dataloader.Scheduler

	Users       *dataloader.Loader[kanban.UserID, kanban.User]
	Boards      *dataloader.Loader[kanban.BoardID, kanban.Board]
	Columns     *dataloader.Loader[kanban.ColumnID, kanban.Column]
	Cards       *dataloader.Loader[kanban.CardID, kanban.Card]
	OwnedBoards *dataloader.Loader[kanban.UserID, []kanban.Board]
	ColumnCards *dataloader.Loader[columnCardKey, kanban.Card]
}

// NewLoaders builds the loaders of one request. Fetches run on ctx.
func NewLoaders(ctx context.Context, stores kanban.Stores, cfg LoaderConfig) *Loaders {
	s := dataloader.NewScheduler(ctx)
	batch := dataloader.WithMaxBatch(cfg.MaxBatch)
	return &Loaders{
		sched: s,
		Users: dataloader.New[kanban.UserID, kanban.User](s, stores.Users.UsersByIDs,
			dataloader.WithName("users"), batch),
		Boards: dataloader.New[kanban.BoardID, kanban.Board](s, stores.Boards.BoardsByIDs,
			dataloader.WithName("boards"), batch),
		Columns: dataloader.New[kanban.ColumnID, kanban.Column](s, stores.Columns.ColumnsByIDs,
			dataloader.WithName("columns"), batch),
		Cards: dataloader.New[kanban.CardID, kanban.Card](s, stores.Cards.CardsByIDs,
			dataloader.WithName("cards"), batch),
		OwnedBoards: dataloader.New[kanban.UserID, []kanban.Board](s, stores.Boards.BoardsByOwners,
			dataloader.WithName("ownedBoards"), batch),
		ColumnCards: dataloader.NewRange[kanban.ColumnID, kanban.Card](s, stores.Cards.CardsInRange,
			dataloader.WithName("columnCards"), dataloader.WithMaxSpan(cfg.MaxSpan)),
	}
}

type loadersKey struct{}

func withLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey{}, l)
}

func loadersFrom(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey{}).(*Loaders)
	return l
}
