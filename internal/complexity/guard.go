package complexity

import (
	"context"
	"errors"
	"fmt"

	"github.com/hanpama/kanbangraph/internal/eventbus"
	"github.com/hanpama/kanbangraph/internal/events"
	language "github.com/hanpama/kanbangraph/internal/language"
)

// Config bounds alias usage. A limit of zero or less disables that check.
type Config struct {
	MaxAliases         int `mapstructure:"max_aliases"`
	MaxAliasesPerLevel int `mapstructure:"max_aliases_per_level"`
}

// DefaultConfig allows 10 aliases in total and 3 at any one depth.
func DefaultConfig() Config {
	return Config{MaxAliases: 10, MaxAliasesPerLevel: 3}
}

// ErrTooComplex is matched by every rejection.
var ErrTooComplex = errors.New("query too complex")

type TooManyAliasesError struct {
	Limit  int
	Actual int
}

func (e *TooManyAliasesError) Error() string {
	return fmt.Sprintf("aliases may not exceed %d in total (found %d)", e.Limit, e.Actual)
}

func (e *TooManyAliasesError) Is(target error) bool { return target == ErrTooComplex }

type TooManyAliasesAtLevelError struct {
	Limit  int
	Actual int
	Level  int
}

func (e *TooManyAliasesAtLevelError) Error() string {
	return fmt.Sprintf("aliases may not exceed %d per level (found %d at level %d)", e.Limit, e.Actual, e.Level)
}

func (e *TooManyAliasesAtLevelError) Is(target error) bool { return target == ErrTooComplex }

// Guard checks documents against a Config. It holds no per-request state.
type Guard struct {
	cfg Config
}

func NewGuard(cfg Config) *Guard { return &Guard{cfg: cfg} }

func (g *Guard) Config() Config { return g.cfg }

// Check inspects every query operation of doc. Mutation and subscription
// selections are not counted. The total limit is checked before the
// per-level limit.
func (g *Guard) Check(ctx context.Context, doc *language.QueryDocument) error {
	c := Analyze(doc)
	level, peak := c.Peak()

	var err error
	switch {
	case g.cfg.MaxAliases > 0 && c.Total > g.cfg.MaxAliases:
		err = &TooManyAliasesError{Limit: g.cfg.MaxAliases, Actual: c.Total}
	case g.cfg.MaxAliasesPerLevel > 0 && peak > g.cfg.MaxAliasesPerLevel:
		err = &TooManyAliasesAtLevelError{Limit: g.cfg.MaxAliasesPerLevel, Actual: peak, Level: level}
	default:
		return nil
	}

	eventbus.Publish(ctx, events.QueryRejected{
		OperationName: operationName(doc),
		Reason:        err,
		Aliases:       c.Total,
		Level:         level,
		LevelAliases:  peak,
	})
	return err
}

func operationName(doc *language.QueryDocument) string {
	if len(doc.Operations) == 1 {
		return doc.Operations[0].Name
	}
	return ""
}
