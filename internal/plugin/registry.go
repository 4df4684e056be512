package plugin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pingsantohq/subpub/internal/config"
)

// DefaultPack is assumed for identifiers that carry no pack prefix.
const DefaultPack = "base"

type Kind string

const (
	KindSources Kind = "sources"
	KindChecks  Kind = "checks"
	KindActions Kind = "actions"
	KindFilters Kind = "filters"
	KindSchemas Kind = "schemas"
	KindParsers Kind = "parsers"
)

// ParseIdentifier splits "[pack.]name" into its pack and name.
func ParseIdentifier(identifier string) (pack, name string, err error) {
	identifier = strings.TrimSpace(identifier)
	parts := strings.Split(identifier, ".")
	switch len(parts) {
	case 1:
		pack, name = DefaultPack, parts[0]
	case 2:
		pack, name = parts[0], parts[1]
	default:
		return "", "", fmt.Errorf("malformed plugin identifier %q", identifier)
	}
	if pack == "" || name == "" {
		return "", "", fmt.Errorf("malformed plugin identifier %q", identifier)
	}
	return pack, name, nil
}

// Canonical returns identifier in "pack.name" form.
func Canonical(identifier string) (string, error) {
	pack, name, err := ParseIdentifier(identifier)
	if err != nil {
		return "", err
	}
	return pack + "." + name, nil
}

// Namespace holds the constructors of one plugin kind.
type Namespace[F any] struct {
	kind    Kind
	packs   map[string]struct{}
	entries map[string]F
}

func newNamespace[F any](kind Kind) *Namespace[F] {
	return &Namespace[F]{
		kind:    kind,
		packs:   make(map[string]struct{}),
		entries: make(map[string]F),
	}
}

func (n *Namespace[F]) Kind() Kind {
	return n.kind
}

// Register adds a constructor. Registration happens at startup from code, so a
// malformed or duplicate identifier panics.
func (n *Namespace[F]) Register(identifier string, factory F) {
	pack, name, err := ParseIdentifier(identifier)
	if err != nil {
		panic(fmt.Sprintf("plugin: register %s: %v", n.kind, err))
	}
	key := pack + "." + name
	if _, exists := n.entries[key]; exists {
		panic(fmt.Sprintf("plugin: %s %q registered twice", n.kind, key))
	}
	n.packs[pack] = struct{}{}
	n.entries[key] = factory
}

// Resolve looks up the constructor for identifier. Failures are
// configuration errors.
func (n *Namespace[F]) Resolve(identifier string) (F, error) {
	var zero F
	pack, name, err := ParseIdentifier(identifier)
	if err != nil {
		return zero, config.Wrap("resolve "+string(n.kind), err)
	}
	if _, ok := n.packs[pack]; !ok {
		return zero, config.Errorf("resolve "+string(n.kind), "unknown pack %q in %q", pack, identifier)
	}
	factory, ok := n.entries[pack+"."+name]
	if !ok {
		return zero, config.Errorf("resolve "+string(n.kind), "no %s named %q in pack %q", n.kind, name, pack)
	}
	return factory, nil
}

// Identifiers lists registered identifiers in "pack.name" form, sorted.
func (n *Namespace[F]) Identifiers() []string {
	out := make([]string, 0, len(n.entries))
	for key := range n.entries {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Registry maps identifiers to constructors, one namespace per kind.
type Registry struct {
	Sources *Namespace[SourceFactory]
	Checks  *Namespace[CheckFactory]
	Actions *Namespace[ActionFactory]
	Filters *Namespace[FilterFactory]
	Schemas *Namespace[SchemaFactory]
	Parsers *Namespace[ParserFactory]
}

func NewRegistry() *Registry {
	return &Registry{
		Sources: newNamespace[SourceFactory](KindSources),
		Checks:  newNamespace[CheckFactory](KindChecks),
		Actions: newNamespace[ActionFactory](KindActions),
		Filters: newNamespace[FilterFactory](KindFilters),
		Schemas: newNamespace[SchemaFactory](KindSchemas),
		Parsers: newNamespace[ParserFactory](KindParsers),
	}
}

// Catalog lists every registered identifier by kind.
func (r *Registry) Catalog() map[Kind][]string {
	return map[Kind][]string{
		KindSources: r.Sources.Identifiers(),
		KindChecks:  r.Checks.Identifiers(),
		KindActions: r.Actions.Identifiers(),
		KindFilters: r.Filters.Identifiers(),
		KindSchemas: r.Schemas.Identifiers(),
		KindParsers: r.Parsers.Identifiers(),
	}
}

// NewSchema resolves and constructs a schema in one step.
func (r *Registry) NewSchema(identifier string, opts config.Options, deps Dependencies) (Schema, error) {
	factory, err := r.Schemas.Resolve(identifier)
	if err != nil {
		return nil, err
	}
	schema, err := factory(opts, deps)
	if err != nil {
		return nil, config.Wrap("schema "+identifier, err)
	}
	return schema, nil
}

// NewParser resolves and constructs a parser in one step.
func (r *Registry) NewParser(identifier string, opts config.Options) (Parser, error) {
	factory, err := r.Parsers.Resolve(identifier)
	if err != nil {
		return nil, err
	}
	parser, err := factory(opts)
	if err != nil {
		return nil, config.Wrap("parser "+identifier, err)
	}
	return parser, nil
}

// NewFilter resolves and constructs a filter in one step.
func (r *Registry) NewFilter(identifier string, raw any) (Filter, error) {
	factory, err := r.Filters.Resolve(identifier)
	if err != nil {
		return nil, err
	}
	filter, err := factory(raw)
	if err != nil {
		return nil, config.Wrap("filter "+identifier, err)
	}
	return filter, nil
}
