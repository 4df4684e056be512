package base

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
	"github.com/pingsantohq/subpub/internal/verify"
)

// Flatfile fetches a whole document through a schema and parses it. The
// schema is the location's URL scheme, or "file" when it has none.
//
// With minisign_key set, every fetch is checked against a detached signature
// fetched from signature (default: location + ".minisig") before parsing.
type Flatfile struct {
	plugin.DataHolder

	location  string
	schema    plugin.Schema
	parser    plugin.Parser
	verifier  *verify.MinisignVerifier
	signature plugin.Schema
	logger    *zap.Logger
}

func NewFlatfile(opts config.Options, deps plugin.Dependencies) (plugin.Source, error) {
	deps = deps.WithDefaults()
	if deps.Registry == nil {
		return nil, fmt.Errorf("flatfile requires a plugin registry")
	}
	opts = config.Merge(config.Options{"parser": "raw"}, opts)
	if err := opts.Require("location"); err != nil {
		return nil, err
	}
	location, err := opts.String("location", "")
	if err != nil {
		return nil, err
	}
	parserName, err := opts.String("parser", "raw")
	if err != nil {
		return nil, err
	}

	f := &Flatfile{location: location, logger: deps.Logger}
	if f.schema, err = newLocationSchema(deps, opts, location); err != nil {
		return nil, err
	}
	if f.parser, err = deps.Registry.NewParser(parserName, opts); err != nil {
		return nil, err
	}

	key, err := opts.String("minisign_key", "")
	if err != nil {
		return nil, err
	}
	if key != "" {
		if f.verifier, err = verify.NewMinisignVerifier(key); err != nil {
			return nil, err
		}
		sigLocation, err := opts.String("signature", location+".minisig")
		if err != nil {
			return nil, err
		}
		sigOpts := config.Merge(opts, config.Options{"location": sigLocation})
		if f.signature, err = newLocationSchema(deps, sigOpts, sigLocation); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// newLocationSchema splits location into schema and clean location and
// builds the schema with both injected into opts.
func newLocationSchema(deps plugin.Dependencies, opts config.Options, location string) (plugin.Schema, error) {
	schema, clean, found := strings.Cut(location, "://")
	if !found {
		schema, clean = "file", location
	}
	schemaOpts := config.Merge(opts, config.Options{
		"schema":         schema,
		"clean_location": clean,
	})
	return deps.Registry.NewSchema(schema, schemaOpts, deps)
}

func (f *Flatfile) Run(ctx context.Context) error {
	raw, err := f.schema.Fetch(ctx)
	if err != nil {
		return err
	}
	if f.verifier != nil {
		sig, err := f.signature.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetch signature: %w", err)
		}
		if err := f.verifier.Verify(ctx, raw, sig); err != nil {
			return fmt.Errorf("%s: %w", f.location, err)
		}
		f.logger.Debug("signature verified", zap.String("location", f.location))
	}
	data, err := f.parser.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", f.location, err)
	}
	f.SetData(data)
	return nil
}
