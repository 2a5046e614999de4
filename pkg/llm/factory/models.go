// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package factory

// ModelInfo describes a supported model. Vision is required for flowchart
// image analysis; models without it can still drive text-only sessions.
type ModelInfo struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Provider      string   `json:"provider"`
	Capabilities  []string `json:"capabilities"`
	ContextWindow int      `json:"context_window"`
	Available     bool     `json:"available"`
}

// ModelRegistry holds the known models per provider.
type ModelRegistry struct {
	models map[string][]ModelInfo
}

// NewModelRegistry creates a registry with all supported models.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models: map[string][]ModelInfo{
			"anthropic": {
				{
					ID:            "claude-sonnet-4-5-20250929",
					Name:          "Claude Sonnet 4.5",
					Provider:      "anthropic",
					Capabilities:  []string{"text", "vision", "tool-use"},
					ContextWindow: 200000,
				},
				{
					ID:            "claude-haiku-4-5-20251001",
					Name:          "Claude Haiku 4.5",
					Provider:      "anthropic",
					Capabilities:  []string{"text", "vision", "tool-use"},
					ContextWindow: 200000,
				},
				{
					ID:            "claude-opus-4-5-20251101",
					Name:          "Claude Opus 4.5",
					Provider:      "anthropic",
					Capabilities:  []string{"text", "vision", "tool-use"},
					ContextWindow: 200000,
				},
			},
			"bedrock": {
				{
					ID:            "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
					Name:          "Claude Sonnet 4.5 (Bedrock)",
					Provider:      "bedrock",
					Capabilities:  []string{"text", "vision", "tool-use"},
					ContextWindow: 200000,
				},
				{
					ID:            "us.anthropic.claude-haiku-4-5-20251001-v1:0",
					Name:          "Claude Haiku 4.5 (Bedrock)",
					Provider:      "bedrock",
					Capabilities:  []string{"text", "vision", "tool-use"},
					ContextWindow: 200000,
				},
				{
					ID:            "us.anthropic.claude-opus-4-5-20251101-v1:0",
					Name:          "Claude Opus 4.5 (Bedrock)",
					Provider:      "bedrock",
					Capabilities:  []string{"text", "vision", "tool-use"},
					ContextWindow: 200000,
				},
			},
		},
	}
}

// ModelsForProvider returns the models for one provider.
func (r *ModelRegistry) ModelsForProvider(provider string) []ModelInfo {
	models := r.models[provider]
	if models == nil {
		return nil
	}
	return append([]ModelInfo(nil), models...)
}

// AllModels returns every known model.
func (r *ModelRegistry) AllModels() []ModelInfo {
	var all []ModelInfo
	for _, provider := range []string{"anthropic", "bedrock"} {
		all = append(all, r.models[provider]...)
	}
	return all
}

// AvailableModels returns every known model with Available set according
// to whether its provider is configured.
func (r *ModelRegistry) AvailableModels(factory *ProviderFactory) []ModelInfo {
	var out []ModelInfo
	for _, provider := range []string{"anthropic", "bedrock"} {
		available := factory.IsProviderAvailable(provider)
		for _, m := range r.models[provider] {
			m.Available = available
			out = append(out, m)
		}
	}
	return out
}

// SupportsVision reports whether a model in the registry can analyze
// images. Unknown models are assumed capable.
func (r *ModelRegistry) SupportsVision(modelID string) bool {
	for _, models := range r.models {
		for _, m := range models {
			if m.ID != modelID {
				continue
			}
			for _, c := range m.Capabilities {
				if c == "vision" {
					return true
				}
			}
			return false
		}
	}
	return true
}
