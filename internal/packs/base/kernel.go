package base

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/mod/semver"
	"go.uber.org/zap"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
	"github.com/pingsantohq/subpub/pkg/types"
)

const DefaultKernelReleasesURL = "https://www.kernel.org/releases.json"

var kernelMonikers = []string{"mainline", "stable", "longterm", "linux-next"}

// Kernel reports the newest kernel.org releases for a moniker. With
// check_current set it stays quiet while the running kernel is one of them.
type Kernel struct {
	moniker string
	show    int
	current string
	source  plugin.Source
}

func kernelDefaults() config.Options {
	return config.Options{
		"url":           DefaultKernelReleasesURL,
		"moniker":       "stable",
		"show":          1,
		"check_current": false,
	}
}

func NewKernel(opts config.Options, deps plugin.Dependencies) (plugin.Check, error) {
	deps = deps.WithDefaults()
	if deps.Sources == nil {
		return nil, fmt.Errorf("kernel check requires a source binder")
	}
	opts = config.Merge(kernelDefaults(), opts)

	url, err := opts.String("url", DefaultKernelReleasesURL)
	if err != nil {
		return nil, err
	}
	moniker, err := opts.String("moniker", "stable")
	if err != nil {
		return nil, err
	}
	if !slices.Contains(kernelMonikers, moniker) {
		return nil, fmt.Errorf("moniker must be one of %s, got %q", strings.Join(kernelMonikers, ", "), moniker)
	}
	show, err := opts.Int("show", 1)
	if err != nil {
		return nil, err
	}
	if show < 1 || show > 9 {
		return nil, fmt.Errorf("show must be between 1 and 9, got %d", show)
	}
	checkCurrent, err := opts.Bool("check_current", false)
	if err != nil {
		return nil, err
	}

	k := &Kernel{moniker: moniker, show: show}
	if checkCurrent {
		release, err := runningKernel()
		switch {
		case err != nil:
			deps.Logger.Warn("cannot read running kernel; disabling kernel comparison", zap.Error(err))
		case release == "":
			deps.Logger.Warn("this is not a Linux system; disabling kernel comparison")
		default:
			k.current = normalizeKernelVersion(release)
			deps.Logger.Debug("running kernel", zap.String("release", release), zap.String("version", k.current))
		}
	}

	k.source, err = deps.Sources.Bind("releases", "flatfile", config.Options{
		"location": url,
		"parser":   "json",
	})
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (k *Kernel) MessageDefaults() types.Parts {
	return types.Parts{
		types.PartKind:     "Kernel",
		types.PartName:     k.moniker,
		types.PartWeight:   1,
		types.PartLocation: "http://www.kernel.org/",
	}
}

func (k *Kernel) Run(ctx context.Context) ([]types.Parts, error) {
	versions, err := k.releases()
	if err != nil {
		return nil, err
	}
	if k.current != "" {
		for _, v := range versions {
			if normalizeKernelVersion(v) == k.current {
				return nil, nil
			}
		}
	}
	if len(versions) > k.show {
		versions = versions[:k.show]
	}
	out := make([]types.Parts, 0, len(versions))
	for _, v := range versions {
		out = append(out, types.Parts{types.PartKey: v})
	}
	return out, nil
}

// releases returns the versions published under the moniker, in document
// order.
func (k *Kernel) releases() ([]string, error) {
	doc, ok := config.ToOptions(k.source.Data())
	if !ok {
		return nil, fmt.Errorf("releases document is not a mapping")
	}
	list, ok := doc["releases"].([]any)
	if !ok {
		return nil, fmt.Errorf("releases document has no releases list")
	}
	var versions []string
	for _, item := range list {
		entry, ok := config.ToOptions(item)
		if !ok {
			continue
		}
		if moniker, _ := entry["moniker"].(string); moniker != k.moniker {
			continue
		}
		if version, ok := entry["version"].(string); ok {
			versions = append(versions, version)
		}
	}
	return versions, nil
}

// normalizeKernelVersion reduces a kernel release string to a canonical
// semantic version: "6.8" and "6.8.0-45-generic" both become "v6.8.0".
// Release candidates keep their suffix ("6.9-rc3" becomes "v6.9.0-rc3").
func normalizeKernelVersion(release string) string {
	release = strings.TrimSpace(release)
	release, _, _ = strings.Cut(release, "_")
	core, rest, _ := strings.Cut(release, "-")
	if strings.Count(core, ".") == 1 {
		core += ".0"
	}
	pre := ""
	if strings.HasPrefix(rest, "rc") {
		pre = "-" + rest
	}
	v := semver.Canonical("v" + core + pre)
	if v == "" {
		return release
	}
	return v
}
