package model

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"pagepilot/internal/logger"
)

// Config is everything needed to build a Service.
type Config struct {
	// Endpoint selects the provider profile and is the base URL of the API.
	// An empty endpoint uses the profile named by Provider.
	Endpoint   string
	Provider   string
	APIKey     string
	Settings   Settings
	HTTPClient *http.Client
}

// NewService selects the provider profile for the configuration and builds its backend.
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	logger.ServiceOperation("model", "initialize", "starting")

	profile, err := resolveProfile(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := NewBackend(ctx, profile, cfg)
	if err != nil {
		return nil, err
	}

	settings := cfg.Settings
	if settings.ChatModel == "" && len(profile.Models) > 0 {
		settings.ChatModel = profile.Models[0]
	}
	if settings.ToolModel == "" {
		settings.ToolModel = settings.ChatModel
	}

	logger.Debug("Model service created", "provider", profile.ID, "backend", profile.Backend, "chat_model", settings.ChatModel)
	logger.ServiceOperation("model", "initialize", "completed")
	return New(profile, backend, settings), nil
}

func resolveProfile(cfg Config) (*Profile, error) {
	if cfg.Endpoint != "" {
		return SelectProfile(cfg.Endpoint), nil
	}
	if cfg.Provider == "" {
		return nil, fmt.Errorf("either an endpoint or a provider is required")
	}
	profile, ok := LookupProfile(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unsupported provider '%s'", cfg.Provider)
	}
	return profile, nil
}

// NewBackend creates the protocol backend a profile calls for.
func NewBackend(ctx context.Context, profile *Profile, cfg Config) (Backend, error) {
	opts := BackendOptions{
		APIKey:     cfg.APIKey,
		BaseURL:    strings.TrimSuffix(cfg.Endpoint, "/"),
		HTTPClient: cfg.HTTPClient,
	}
	if opts.BaseURL == "" {
		opts.BaseURL = profile.BaseURL
	}

	switch profile.Backend {
	case BackendOpenAI:
		return NewOpenAIBackend(opts)
	case BackendAnthropic:
		return NewAnthropicBackend(opts)
	case BackendGemini:
		// the genai SDK appends its own API version to the base URL
		if cfg.Endpoint == "" {
			opts.BaseURL = ""
		}
		return NewGeminiBackend(ctx, opts)
	case BackendCompatible:
		return NewCompatibleBackend(profile.ID, opts)
	default:
		return nil, fmt.Errorf("unsupported backend '%s' for provider '%s'", profile.Backend, profile.ID)
	}
}
