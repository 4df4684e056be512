package base

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
	"github.com/pingsantohq/subpub/pkg/types"
)

// Log writes each message it receives to the process logger at level.
type Log struct {
	logger *zap.Logger
	level  zapcore.Level
}

func NewLog(opts config.Options, deps plugin.Dependencies) (plugin.Action, error) {
	deps = deps.WithDefaults()
	raw, err := opts.String("level", "info")
	if err != nil {
		return nil, err
	}
	level, err := zapcore.ParseLevel(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", raw)
	}
	name, err := opts.String("name", "")
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if name != "" {
		logger = logger.With(zap.String("action", name))
	}
	return &Log{logger: logger, level: level}, nil
}

func (l *Log) Run(ctx context.Context, messages []types.Message) error {
	for _, msg := range messages {
		l.logger.Log(l.level, "message",
			zap.String("kind", msg.Kind),
			zap.String("name", msg.Name),
			zap.String("key", msg.Key),
			zap.String("location", msg.Location),
			zap.Float64("weight", msg.Weight),
			zap.Strings("tags", msg.Tags.Sorted()),
			zap.Any("attributes", msg.Attributes),
		)
	}
	return nil
}
