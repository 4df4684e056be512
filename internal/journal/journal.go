// Package journal records dispatched messages in a SQL table.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pingsantohq/subpub/pkg/types"
)

const DefaultTable = "subpub_journal"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Entry is one journaled message.
type Entry struct {
	ID         uuid.UUID
	ActionID   uuid.UUID
	RecordedAt time.Time
	Message    types.Message
}

// Store persists journal entries.
type Store interface {
	Append(ctx context.Context, entries []Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Open connects to the journal for driver ("sqlite" or "postgres") and
// creates table if it does not exist.
func Open(ctx context.Context, driver, dsn, table string) (Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid journal table name %q", table)
	}
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return NewSQLiteStore(ctx, dsn, table)
	case "postgres", "postgresql", "pgx":
		return NewPostgresStore(ctx, dsn, table)
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}
}

// NewEntries stamps messages for a single dispatch.
func NewEntries(actionID uuid.UUID, at time.Time, messages []types.Message) []Entry {
	out := make([]Entry, 0, len(messages))
	for _, msg := range messages {
		out = append(out, Entry{
			ID:         uuid.New(),
			ActionID:   actionID,
			RecordedAt: at.UTC(),
			Message:    msg,
		})
	}
	return out
}

type row struct {
	id, actionID, recordedAt  string
	name, kind, key, location string
	weight                    float64
	tags, attributes          string
}

func toRow(e Entry) (row, error) {
	attrs, err := json.Marshal(e.Message.Attributes)
	if err != nil {
		return row{}, fmt.Errorf("encode attributes: %w", err)
	}
	return row{
		id:         e.ID.String(),
		actionID:   e.ActionID.String(),
		recordedAt: e.RecordedAt.UTC().Format(time.RFC3339Nano),
		name:       e.Message.Name,
		kind:       e.Message.Kind,
		key:        e.Message.Key,
		location:   e.Message.Location,
		weight:     e.Message.Weight,
		tags:       strings.Join(e.Message.Tags.Sorted(), ","),
		attributes: string(attrs),
	}, nil
}

func (r row) entry() (Entry, error) {
	id, err := uuid.Parse(r.id)
	if err != nil {
		return Entry{}, fmt.Errorf("parse entry id: %w", err)
	}
	actionID, err := uuid.Parse(r.actionID)
	if err != nil {
		return Entry{}, fmt.Errorf("parse action id: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, r.recordedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse recorded_at: %w", err)
	}
	attrs := map[string]any{}
	if r.attributes != "" {
		if err := json.Unmarshal([]byte(r.attributes), &attrs); err != nil {
			return Entry{}, fmt.Errorf("decode attributes: %w", err)
		}
	}
	var tags []string
	if r.tags != "" {
		tags = strings.Split(r.tags, ",")
	}
	return Entry{
		ID:         id,
		ActionID:   actionID,
		RecordedAt: at,
		Message: types.Message{
			Name:       r.name,
			Kind:       r.kind,
			Key:        r.key,
			Location:   r.location,
			Weight:     r.weight,
			Tags:       types.NewTags(tags...),
			Attributes: attrs,
		},
	}, nil
}
