package gradio

import "sort"

// DefaultEndpoint is used when the Space descriptor cannot be fetched.
const DefaultEndpoint = "/predict"

// EndpointInfo describes one named endpoint of the Space API.
type EndpointInfo struct {
	Parameters []ParameterInfo `json:"parameters"`
}

type ParameterInfo struct {
	Label         string `json:"label"`
	ParameterName string `json:"parameter_name"`
}

// EndpointPicker selects the generation endpoint from the Space
// descriptor. Spaces rename endpoints between revisions, so selection
// is a replaceable strategy rather than a hardcoded name.
type EndpointPicker interface {
	Pick(endpoints map[string]EndpointInfo) string
}

// ParamCountPicker picks the first endpoint, in lexical name order,
// declaring exactly Want parameters: the assumed {image, video, mode,
// quality} signature. Nothing matching falls back to the first
// endpoint, an empty descriptor to DefaultEndpoint.
//
// TODO: replace with exact-name lookup once the Space API settles; a
// 4-parameter endpoint is not necessarily the generator.
type ParamCountPicker struct {
	Want int
}

func (p ParamCountPicker) Pick(endpoints map[string]EndpointInfo) string {
	if len(endpoints) == 0 {
		return DefaultEndpoint
	}

	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if len(endpoints[name].Parameters) == p.Want {
			return name
		}
	}
	return names[0]
}
