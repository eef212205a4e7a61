package domain

// Provider identifies the backing generation pathway a slot uses.
type Provider string

const (
	ProviderMCP Provider = "mcp"
)

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	_, ok := Providers[p]
	return ok
}

// ModelMode selects between the model tiers exposed to the user.
type ModelMode string

const (
	ModelModePerformance ModelMode = "performance"
	ModelModeQuality     ModelMode = "quality"
)

// ProviderInfo is the catalog entry for a provider.
type ProviderInfo struct {
	DisplayName string
	Models      []string
}

var Providers = map[Provider]ProviderInfo{
	ProviderMCP: {
		DisplayName: "Tattty AI",
		Models:      []string{"default"},
	},
}

var ModelConfigs = map[ModelMode]map[Provider]string{
	ModelModePerformance: {ProviderMCP: "default"},
	ModelModeQuality:     {ProviderMCP: "default"},
}

// ProviderOrder is the display and dispatch order of providers.
var ProviderOrder = []Provider{ProviderMCP}

// ParseModelMode maps free-form input onto a known mode, defaulting to performance.
func ParseModelMode(v string) ModelMode {
	switch ModelMode(v) {
	case ModelModeQuality:
		return ModelModeQuality
	default:
		return ModelModePerformance
	}
}

// ProviderModels returns a copy of the provider to model mapping for mode.
func ProviderModels(mode ModelMode) map[Provider]string {
	src, ok := ModelConfigs[mode]
	if !ok {
		src = ModelConfigs[ModelModePerformance]
	}
	out := make(map[Provider]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
