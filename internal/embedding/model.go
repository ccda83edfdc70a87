// Package embedding produces fixed-length text embeddings through a
// device-bound inference backend, handling sub-batching and retry so a
// caller always receives one output slot per input text.
package embedding

import (
	"fmt"
	"strings"
)

// Model describes a supported embedding family.
type Model struct {
	Alias      string
	ID         string
	Dimensions int
}

// SupportedModels lists the embedding families this server can serve.
// The first entry is the default.
var SupportedModels = []Model{
	{Alias: "qwen", ID: "Qwen/Qwen3-Embedding-0.6B", Dimensions: 1024},
}

// DefaultModel returns the model used when none is configured.
func DefaultModel() Model {
	return SupportedModels[0]
}

// Resolve maps a model alias or full identifier to a supported model.
// Matching is case-insensitive.
func Resolve(name string) (Model, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, m := range SupportedModels {
		if key == strings.ToLower(m.Alias) || key == strings.ToLower(m.ID) {
			return m, nil
		}
	}
	supported := make([]string, 0, len(SupportedModels))
	for _, m := range SupportedModels {
		supported = append(supported, fmt.Sprintf("alias %q (model id %q)", m.Alias, m.ID))
	}
	return Model{}, fmt.Errorf("model %q is not supported, supported values: %s",
		name, strings.Join(supported, ", "))
}
