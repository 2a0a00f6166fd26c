// Package providers constructs the right streaming client for a model
// descriptor, gating on credentials before any request is issued.
package providers

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"rehearse/internal/credentials"
	"rehearse/internal/googleai"
	"rehearse/internal/llm"
	"rehearse/internal/llm/mockclient"
	"rehearse/internal/openrouter"
	"rehearse/internal/registry"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// Factory builds and caches one client per provider. With
// REHEARSE_MOCK_LLM=1 every descriptor resolves to the mock client, which
// keeps interactive testing offline.
type Factory struct {
	creds   *credentials.Manager
	timeout time.Duration
	logger  *log.Logger
	mock    bool

	mu      sync.Mutex
	clients map[registry.Provider]llm.Client
}

// NewFactory wires a factory. timeout applies to each provider request.
func NewFactory(creds *credentials.Manager, timeout time.Duration, logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &Factory{
		creds:   creds,
		timeout: timeout,
		logger:  logger,
		mock:    os.Getenv("REHEARSE_MOCK_LLM") == "1",
		clients: make(map[registry.Provider]llm.Client),
	}
}

// ClientFor resolves the client for a descriptor. A missing API key yields
// *llm.MissingCredentialError before any network traffic.
func (f *Factory) ClientFor(desc registry.ModelDescriptor) (llm.Client, error) {
	if f.mock {
		return mockclient.New(), nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if client, ok := f.clients[desc.Provider]; ok {
		return client, nil
	}

	key := f.creds.Resolve(desc.RequiredKeyName)
	if key == "" {
		return nil, &llm.MissingCredentialError{KeyName: desc.RequiredKeyName}
	}

	var client llm.Client
	switch desc.Provider {
	case registry.ProviderOpenRouter:
		client = openrouter.NewClient(defaultOpenRouterBaseURL, key, f.timeout, f.logger)
	case registry.ProviderGoogleAI:
		client = googleai.NewClient("", key, f.timeout, f.logger)
	default:
		return nil, fmt.Errorf("no client for provider %q", desc.Provider)
	}
	f.clients[desc.Provider] = client
	return client, nil
}
