// Package base is the default plugin pack. Its plugins resolve without a pack
// prefix: "flatfile" and "base.flatfile" name the same source.
package base

import "github.com/pingsantohq/subpub/internal/plugin"

// Register adds every base plugin to reg.
func Register(reg *plugin.Registry) {
	reg.Sources.Register("base.flatfile", NewFlatfile)
	reg.Sources.Register("base.followfile", NewFollowfile)

	reg.Checks.Register("base.kernel", NewKernel)
	reg.Checks.Register("base.match", NewMatch)

	reg.Actions.Register("base.debug", NewDebug)
	reg.Actions.Register("base.log", NewLog)
	reg.Actions.Register("base.journal", NewJournal)

	reg.Filters.Register("base.tags", NewTagsFilter)
	reg.Filters.Register("base.weight", NewWeightFilter)

	reg.Schemas.Register("base.file", NewFileSchema)
	reg.Schemas.Register("base.http", NewHTTPSchema)
	reg.Schemas.Register("base.https", NewHTTPSchema)

	reg.Parsers.Register("base.raw", newRawParser)
	reg.Parsers.Register("base.yaml", newYAMLParser)
	reg.Parsers.Register("base.json", newJSONParser)
}
