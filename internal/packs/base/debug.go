package base

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
	"github.com/pingsantohq/subpub/pkg/types"
)

// Debug prints every message it receives to stdout.
type Debug struct {
	id   uuid.UUID
	name string
	out  io.Writer
}

func NewDebug(opts config.Options, deps plugin.Dependencies) (plugin.Action, error) {
	name, err := opts.String("name", "noname")
	if err != nil {
		return nil, err
	}
	id := deps.InstanceID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Debug{id: id, name: name, out: color.Output}, nil
}

func (d *Debug) Run(ctx context.Context, messages []types.Message) error {
	header := color.New(color.FgCyan, color.Bold).SprintFunc()
	if _, err := fmt.Fprintf(d.out, "%s (%s) %s\n", header("DEBUG"), d.id, d.name); err != nil {
		return err
	}
	for _, msg := range messages {
		if _, err := fmt.Fprintln(d.out, formatMessage(msg)); err != nil {
			return err
		}
	}
	return nil
}

func formatMessage(msg types.Message) string {
	weight := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	tags := msg.Tags.Sorted()
	if msg.Tags.Has(types.TagNew) {
		tags = highlightNew(tags)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  [%s] %s %s: %s", weight(fmt.Sprintf("%g", msg.Weight)), msg.Kind, msg.Name, msg.Key)
	if len(tags) > 0 {
		fmt.Fprintf(&b, " tags=%s", strings.Join(tags, ","))
	}
	if msg.Location != "" {
		fmt.Fprintf(&b, " %s", gray(msg.Location))
	}
	return b.String()
}

func highlightNew(tags []string) []string {
	green := color.New(color.FgGreen).SprintFunc()
	out := make([]string, len(tags))
	for i, tag := range tags {
		if tag == types.TagNew {
			tag = green(tag)
		}
		out[i] = tag
	}
	return out
}
