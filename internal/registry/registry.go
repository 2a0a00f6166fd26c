package registry

import (
	"errors"
	"fmt"
)

// Provider identifies which hosted API serves a model.
type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderGoogleAI   Provider = "googleai"
)

// ModelDescriptor describes one selectable model. Descriptors are immutable
// and fixed at process start; selection happens by display name.
type ModelDescriptor struct {
	DisplayName     string
	Provider        Provider
	EndpointID      string
	RequiredKeyName string
}

// UnknownModelError reports a lookup for a display name that is not in the
// registry, e.g. a hand-edited settings file naming a retired model.
type UnknownModelError struct {
	Name string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.Name)
}

// IsUnknownModel checks if err is an UnknownModelError.
func IsUnknownModel(err error) (*UnknownModelError, bool) {
	var ue *UnknownModelError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

var models = []ModelDescriptor{
	{
		DisplayName:     "Sonoma Sky (OpenRouter)",
		Provider:        ProviderOpenRouter,
		EndpointID:      "openrouter/sonoma-sky-alpha",
		RequiredKeyName: "OPENROUTER_API_KEY",
	},
	{
		DisplayName:     "Sonoma Dusk (OpenRouter)",
		Provider:        ProviderOpenRouter,
		EndpointID:      "openrouter/sonoma-dusk-alpha",
		RequiredKeyName: "OPENROUTER_API_KEY",
	},
	{
		DisplayName:     "Gemini 2.0 Flash (OpenRouter)",
		Provider:        ProviderOpenRouter,
		EndpointID:      "google/gemini-2.0-flash-exp:free",
		RequiredKeyName: "OPENROUTER_API_KEY",
	},
	{
		DisplayName:     "Gemini 1.5 Flash (Google AI)",
		Provider:        ProviderGoogleAI,
		EndpointID:      "gemini-1.5-flash-latest",
		RequiredKeyName: "GOOGLE_API_KEY",
	},
}

// List returns every registered model in selector order.
func List() []ModelDescriptor {
	out := make([]ModelDescriptor, len(models))
	copy(out, models)
	return out
}

// Resolve looks up a descriptor by display name.
func Resolve(displayName string) (ModelDescriptor, error) {
	for _, m := range models {
		if m.DisplayName == displayName {
			return m, nil
		}
	}
	return ModelDescriptor{}, &UnknownModelError{Name: displayName}
}

// Default returns the model selected on first run.
func Default() ModelDescriptor {
	return models[0]
}
