package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/webterm/webterm/internal/ai"
	"github.com/webterm/webterm/internal/ai/gemini"
	"github.com/webterm/webterm/internal/ai/openai"
	"github.com/webterm/webterm/internal/core"
	"github.com/webterm/webterm/internal/core/execution"
	"github.com/webterm/webterm/internal/core/security"
	"github.com/webterm/webterm/internal/core/session"
	"github.com/webterm/webterm/internal/core/translate"
	"github.com/webterm/webterm/internal/storage"
)

// newModel builds the configured model backend. It returns nil without an
// API key, which leaves translation disabled.
func newModel(ctx context.Context, c *storage.Config) (ai.Model, error) {
	if c.AI.Provider == "none" || c.AI.APIKey == "" {
		return nil, nil
	}

	switch c.AI.Provider {
	case "gemini":
		client, err := gemini.NewClient(ctx, c.AI.APIKey, c.AI.Model)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "openai":
		return openai.NewClient(c.AI.APIKey, c.AI.Model, c.AI.BaseURL, c.AI.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", c.AI.Provider)
	}
}

// newEngine wires the pipeline from configuration. homeDir is the working
// directory of new sessions; empty means the user's home.
func newEngine(ctx context.Context, c *storage.Config, log *zap.Logger, homeDir string) (*core.Engine, error) {
	model, err := newModel(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}
	if model == nil {
		log.Warn("AI translation disabled: no API key configured",
			zap.String("provider", c.AI.Provider))
	} else {
		log.Info("AI translation enabled", zap.String("model", model.Name()))
	}

	policy := c.Security
	sc := security.NewSecurityController(&policy)

	sessions := session.NewStore(session.Options{
		MaxHistory:  c.Session.MaxHistory,
		MaxSessions: c.Server.MaxSessions,
		HomeDir:     homeDir,
		Logger:      log.Named("session"),
	})

	translator := translate.New(translate.Options{
		Model:       model,
		Timeout:     c.AI.Timeout,
		IsKnownVerb: sc.IsAllowedVerb,
		Logger:      log.Named("translate"),
	})

	executor := execution.NewEngine(execution.Options{
		Sessions:       sessions,
		Timeout:        c.Execution.Timeout,
		MonitorTimeout: c.Execution.MonitorTimeout,
		MaxProcesses:   c.Execution.MaxProcesses,
		MaxOutputBytes: c.Execution.MaxOutputBytes,
		HelpText:       execution.HelpText(sc.Verbs()),
		Logger:         log.Named("execution"),
	})

	return core.NewEngine(core.Options{
		Sessions:   sessions,
		Security:   sc,
		Translator: translator,
		Executor:   executor,
		Logger:     log.Named("core"),
	}), nil
}
