package base

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/journal"
	"github.com/pingsantohq/subpub/internal/plugin"
	"github.com/pingsantohq/subpub/pkg/types"
)

const journalOpenTimeout = 10 * time.Second

// Journal appends every message it receives to a SQL table.
type Journal struct {
	id     uuid.UUID
	store  journal.Store
	now    func() time.Time
	logger *zap.Logger
}

func NewJournal(opts config.Options, deps plugin.Dependencies) (plugin.Action, error) {
	deps = deps.WithDefaults()
	if err := opts.Require("dsn"); err != nil {
		return nil, err
	}
	driver, err := opts.String("driver", "sqlite")
	if err != nil {
		return nil, err
	}
	dsn, err := opts.String("dsn", "")
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" || driver == "sqlite3" {
		if dsn, err = config.ExpandPath(dsn); err != nil {
			return nil, err
		}
	}
	table, err := opts.String("table", journal.DefaultTable)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalOpenTimeout)
	defer cancel()
	store, err := journal.Open(ctx, driver, dsn, table)
	if err != nil {
		return nil, err
	}
	id := deps.InstanceID
	if id == uuid.Nil {
		id = uuid.New()
	}
	deps.Logger.Debug("journal opened", zap.String("driver", driver), zap.String("table", table))
	return &Journal{id: id, store: store, now: deps.Now, logger: deps.Logger}, nil
}

func (j *Journal) Run(ctx context.Context, messages []types.Message) error {
	if len(messages) == 0 {
		return nil
	}
	return j.store.Append(ctx, journal.NewEntries(j.id, j.now(), messages))
}

// Store exposes the underlying journal store.
func (j *Journal) Store() journal.Store {
	return j.store
}

func (j *Journal) Close() error {
	return j.store.Close()
}
