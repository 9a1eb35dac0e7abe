package model

import (
	_ "embed"
	"fmt"
	"net/url"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// BackendKind names the protocol implementation used by a profile.
type BackendKind string

// Supported backend kinds.
const (
	BackendOpenAI     BackendKind = "openai"
	BackendCompatible BackendKind = "compatible"
	BackendAnthropic  BackendKind = "anthropic"
	BackendGemini     BackendKind = "gemini"
)

// FallbackProfileID is used for endpoints that match no known host.
const FallbackProfileID = "compatible"

//go:embed catalog.yaml
var catalogYAML []byte

// ToolCallQuirks captures how a provider streams tool calls.
type ToolCallQuirks struct {
	// Lookahead is the number of content chunks read before concluding the answer has no tool calls.
	Lookahead int `yaml:"lookahead"`
	// MergeByID ignores delta indices and starts a new call whenever the call ID changes.
	MergeByID bool `yaml:"merge_by_id"`
	// AwaitStopReason defers the decision to the finish reason when no tool-call fragment arrived.
	AwaitStopReason bool `yaml:"await_stop_reason"`
}

// Profile describes one provider: how to reach it and what its models can do.
type Profile struct {
	ID               string         `yaml:"id"`
	Name             string         `yaml:"name"`
	Backend          BackendKind    `yaml:"backend"`
	BaseURL          string         `yaml:"base_url"`
	Hosts            []string       `yaml:"hosts"`
	Models           []string       `yaml:"models"`
	MultimodalModels []string       `yaml:"multimodal_models"`
	ReasoningModels  []string       `yaml:"reasoning_models"`
	ToolCalls        ToolCallQuirks `yaml:"tool_calls"`
}

// Detector returns the tool-call detector configured for the profile.
func (p *Profile) Detector() ToolCallDetector {
	return ToolCallDetector{Lookahead: p.ToolCalls.Lookahead, AwaitStopReason: p.ToolCalls.AwaitStopReason}
}

// NewAccumulator returns a tool-call accumulator configured for the profile.
func (p *Profile) NewAccumulator() *ToolCallAccumulator {
	return NewToolCallAccumulator(p.ToolCalls.MergeByID)
}

// IsMultimodal reports whether the model accepts image input.
func (p *Profile) IsMultimodal(model string) bool {
	return matchAny(p.MultimodalModels, model)
}

// IsReasoning reports whether the model is a reasoning model.
func (p *Profile) IsReasoning(model string) bool {
	return matchAny(p.ReasoningModels, model)
}

func matchAny(patterns []string, model string) bool {
	if model == "" {
		return false
	}
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, model); err == nil && ok {
			return true
		}
	}
	return false
}

type catalog struct {
	Profiles []*Profile `yaml:"profiles"`
}

var profiles = mustLoadCatalog(catalogYAML)

func mustLoadCatalog(data []byte) map[string]*Profile {
	loaded, err := loadCatalog(data)
	if err != nil {
		panic(err)
	}
	return loaded
}

func loadCatalog(data []byte) (map[string]*Profile, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse provider catalog: %w", err)
	}

	out := make(map[string]*Profile, len(c.Profiles))
	for _, p := range c.Profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("provider catalog: profile without id")
		}
		if _, exists := out[p.ID]; exists {
			return nil, fmt.Errorf("provider catalog: duplicate profile %q", p.ID)
		}
		switch p.Backend {
		case BackendOpenAI, BackendCompatible, BackendAnthropic, BackendGemini:
		default:
			return nil, fmt.Errorf("provider catalog: profile %q has unknown backend %q", p.ID, p.Backend)
		}
		if p.ToolCalls.Lookahead <= 0 {
			p.ToolCalls.Lookahead = 1
		}
		out[p.ID] = p
	}
	if _, ok := out[FallbackProfileID]; !ok {
		return nil, fmt.Errorf("provider catalog: missing %q profile", FallbackProfileID)
	}
	return out, nil
}

// LookupProfile returns the catalog profile with the given id.
func LookupProfile(id string) (*Profile, bool) {
	p, ok := profiles[id]
	return p, ok
}

// ProfileIDs returns the ids of every catalog profile.
func ProfileIDs() []string {
	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	return ids
}

// SelectProfile picks the provider profile for an endpoint URL.
// The host (with port) is matched first, then the bare hostname; anything else gets the compatible profile.
func SelectProfile(endpoint string) *Profile {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || u.Host == "" {
		return profiles[FallbackProfileID]
	}

	host := strings.ToLower(u.Host)
	hostname := strings.ToLower(u.Hostname())
	for _, p := range profiles {
		for _, h := range p.Hosts {
			if h == host {
				return p
			}
		}
	}
	for _, p := range profiles {
		for _, h := range p.Hosts {
			if h == hostname {
				return p
			}
		}
	}
	return profiles[FallbackProfileID]
}
