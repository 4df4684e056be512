package base

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
)

// rawParser hands the fetched document through as a string.
type rawParser struct{}

func newRawParser(config.Options) (plugin.Parser, error) { return rawParser{}, nil }

func (rawParser) Parse(raw []byte) (any, error) {
	return string(raw), nil
}

type yamlParser struct{}

func newYAMLParser(config.Options) (plugin.Parser, error) { return yamlParser{}, nil }

func (yamlParser) Parse(raw []byte) (any, error) {
	var out any
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return out, nil
}

type jsonParser struct{}

func newJSONParser(config.Options) (plugin.Parser, error) { return jsonParser{}, nil }

func (jsonParser) Parse(raw []byte) (any, error) {
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return out, nil
}
