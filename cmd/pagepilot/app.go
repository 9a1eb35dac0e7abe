package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"pagepilot/internal/agent"
	"pagepilot/internal/assistants"
	"pagepilot/internal/config"
	"pagepilot/internal/logger"
	"pagepilot/internal/model"
	"pagepilot/internal/output"
	"pagepilot/internal/services"
	"pagepilot/internal/storage"
)

// app holds everything one CLI invocation needs.
type app struct {
	cfg       *config.Config
	registry  *services.Registry
	markdown  *services.MarkdownService
	store     storage.Repository
	assistant *assistants.Assistant
	out       *output.Printer
}

// modelFactory is replaced in tests.
var modelFactory = func(ctx context.Context, cfg *config.Config) (agent.ModelService, error) {
	return model.NewService(ctx, cfg.ModelConfig())
}

// newApp wires the model service, the services registry, the conversation store and the assistant.
func newApp(ctx context.Context, cfg *config.Config, page assistants.Page, out *output.Printer) (*app, error) {
	m, err := modelFactory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create model service: %w", err)
	}

	registry := services.NewRegistry()
	for _, svc := range []services.Service{
		services.NewMarkdownService(cfg.Style),
		services.NewReflectionService(m, cfg.Language),
		services.NewGoalService(m),
	} {
		if err := registry.RegisterService(svc); err != nil {
			return nil, err
		}
	}
	if err := registry.InitializeAll(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	markdown, err := services.Lookup[*services.MarkdownService](registry, "markdown")
	if err != nil {
		return nil, err
	}
	reflection, err := services.Lookup[*services.ReflectionService](registry, "reflection")
	if err != nil {
		return nil, err
	}
	goal, err := services.Lookup[*services.GoalService](registry, "goal")
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}

	opts := agent.Options{
		Model:            m,
		Reflection:       reflection,
		Repository:       store,
		EnableReflection: cfg.Reflection,
		MaxReflections:   cfg.MaxReflections,
		ChainOfThought:   cfg.ChainOfThought,
		Multimodal:       cfg.Multimodal,
		ContextLength:    cfg.ContextLength,
	}
	if cfg.ChainOfThought {
		opts.Thinker = goal
	}

	assistant, err := assistants.NewAssistant(opts, page, cfg.Language)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Info("Assistant ready", "agent", assistant.Name(), "tools", len(assistant.Tools()))
	return &app{cfg: cfg, registry: registry, markdown: markdown, store: store, assistant: assistant, out: out}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// render formats an answer for the printer: raw markdown for JSON, glamour output otherwise.
func (a *app) render(text string) string {
	return renderMarkdown(a.markdown, a.out, text)
}

func renderMarkdown(markdown *services.MarkdownService, out *output.Printer, text string) string {
	var (
		rendered string
		err      error
	)
	switch {
	case out.Mode() == output.ModeJSON:
		return text
	case out.Mode() == output.ModePlain:
		rendered, err = markdown.RenderPlain(text)
	default:
		rendered, err = markdown.Render(text)
	}
	if err != nil {
		logger.Warn("Markdown rendering failed", "error", err)
		return text
	}
	return rendered
}

// newPrinter returns the printer for w. plain disables styling and asJSON selects JSON lines.
func newPrinter(w io.Writer, plain, asJSON bool) *output.Printer {
	opts := []output.Option{output.WithWriter(w), output.WithStyles(output.NewPalette())}
	switch {
	case asJSON:
		opts = append(opts, output.JSON())
	case plain:
		opts = append(opts, output.PlainText())
	}
	return output.NewPrinter(opts...)
}

// loadPage reads the page named by --page. Without one the assistant works on an empty page.
func loadPage(path string) (assistants.Page, error) {
	if path == "" {
		return assistants.NewPage(""), nil
	}
	page, err := assistants.ReadPage(path, os.Stdin)
	if err != nil {
		return assistants.Page{}, fmt.Errorf("failed to read page: %w", err)
	}
	return page, nil
}

// describeTurnError turns a failed turn into a message for the user.
func describeTurnError(err error) string {
	switch {
	case errors.Is(err, agent.ErrTurnInProgress):
		return "A turn is already in progress."
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	default:
		return err.Error()
	}
}
