package douyin

import (
	"media-resolver-go/internal/extract"
	"media-resolver-go/internal/platform"
	"media-resolver-go/internal/source"
)

func init() {
	platform.Register("douyin", []string{"dy"}, New)
}

// New assembles the douyin platform. Sources named in DISABLED_SOURCES start
// disabled.
func New(deps platform.Deps) platform.Platform {
	c := newClient(deps)
	var sources []source.Config
	for _, ep := range endpoints() {
		sources = append(sources, c.apiSource(ep))
	}
	sources = append(sources,
		c.thirdPartySource(deps.Config.ThirdPartyAPIURL),
		c.htmlSource(),
		c.probeSource(deps.Config.ProbeSourceEnabled),
	)

	disabled := map[string]bool{}
	for _, name := range deps.Config.DisabledSources {
		disabled[name] = true
	}
	for i := range sources {
		if disabled[sources[i].Name] {
			sources[i].Disabled = true
		}
	}

	return platform.Platform{
		Name:          "douyin",
		Rules:         LinkRules(),
		Extractor:     extract.New(),
		ExpandHeaders: c.headers.For(PresetMobile, "", nil),
		Sources:       sources,
	}
}
