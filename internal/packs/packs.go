// Package packs assembles the plugin registry from every compiled-in pack.
package packs

import (
	"github.com/pingsantohq/subpub/internal/packs/base"
	"github.com/pingsantohq/subpub/internal/plugin"
)

// Default returns a registry holding every built-in pack.
func Default() *plugin.Registry {
	reg := plugin.NewRegistry()
	base.Register(reg)
	return reg
}
