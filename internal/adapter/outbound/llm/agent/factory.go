package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kube-rca/agent/internal/adapter/outbound/llm/tools"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

// Factory builds ToolAgents sharing one model, registry and history store.
type Factory struct {
	model    ChatModel
	registry *tools.Registry
	history  outbound.MessageStore
	cfg      Config
	logger   *slog.Logger
}

var _ outbound.AgentFactory = (*Factory)(nil)

// NewFactory validates its collaborators. history may be nil.
func NewFactory(chat ChatModel, registry *tools.Registry, history outbound.MessageStore, cfg Config, logger *slog.Logger) (*Factory, error) {
	if chat == nil {
		return nil, errors.New("agent factory: chat model is required")
	}
	if registry == nil {
		return nil, errors.New("agent factory: tool registry is required")
	}
	if cfg.MaxToolTurns <= 0 {
		cfg.MaxToolTurns = 1
	}
	return &Factory{model: chat, registry: registry, history: history, cfg: cfg, logger: logger}, nil
}

func (f *Factory) NewAgent(_ context.Context, durableKey string) (outbound.Agent, error) {
	return &ToolAgent{
		durableKey: durableKey,
		model:      f.model,
		registry:   f.registry,
		history:    f.history,
		cfg:        f.cfg,
		logger:     f.logger.With("agent", durableKey),
	}, nil
}
