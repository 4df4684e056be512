// Package plugin defines the capabilities the engine drives and the static
// registry that maps "[pack.]name" identifiers to their constructors.
package plugin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/pkg/types"
)

// Source pulls data from somewhere external. A nil error from Run marks the
// source fresh for the current tick; Data exposes the last successful payload.
type Source interface {
	Run(ctx context.Context) error
	Data() any
}

// Check turns source data into raw message parts. A nil error is a successful
// run even when no parts are returned.
type Check interface {
	Run(ctx context.Context) ([]types.Parts, error)
}

// Defaulter is implemented by checks that supply message parts shared by every
// message they emit.
type Defaulter interface {
	MessageDefaults() types.Parts
}

// Action consumes the messages that passed its filters.
type Action interface {
	Run(ctx context.Context, messages []types.Message) error
}

// Filter is a predicate over a single message.
type Filter interface {
	Match(msg types.Message) bool
}

// Schema fetches a raw document for a source.
type Schema interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Parser turns a fetched document into structured data.
type Parser interface {
	Parse(raw []byte) (any, error)
}

// SourceBinder attaches a shared source to the check being constructed under
// a check-local name.
type SourceBinder interface {
	Bind(local, identifier string, opts config.Options) (Source, error)
}

// Dependencies carries what a plugin constructor may use besides its options.
// Sources is only set while a check is being constructed.
type Dependencies struct {
	Logger     *zap.Logger
	Registry   *Registry
	Sources    SourceBinder
	Now        func() time.Time
	InstanceID uuid.UUID
}

// WithDefaults fills unset dependencies.
func (d Dependencies) WithDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

type (
	SourceFactory func(opts config.Options, deps Dependencies) (Source, error)
	CheckFactory  func(opts config.Options, deps Dependencies) (Check, error)
	ActionFactory func(opts config.Options, deps Dependencies) (Action, error)
	SchemaFactory func(opts config.Options, deps Dependencies) (Schema, error)
	ParserFactory func(opts config.Options) (Parser, error)
	// FilterFactory receives the raw filter configuration, which may be a
	// scalar, a list or a mapping.
	FilterFactory func(raw any) (Filter, error)
)

// DataHolder stores a source payload. Embed it to satisfy Source.Data.
type DataHolder struct {
	data any
}

func (h *DataHolder) Data() any {
	return h.data
}

func (h *DataHolder) SetData(data any) {
	h.data = data
}
