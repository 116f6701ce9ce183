// Package app wires the application components together.
//
// Setup builds the full dependency graph from a validated Config: the OAuth
// credential manager, the Vertex RAG data-plane client, the engine registry,
// the instruction library, the document manager, the chat manager, and the
// todo store. Commands (serve, ask) consume the assembled App rather than
// constructing components themselves.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/mirag/ragchat/internal/auth"
	"github.com/mirag/ragchat/internal/chat"
	"github.com/mirag/ragchat/internal/config"
	"github.com/mirag/ragchat/internal/document"
	"github.com/mirag/ragchat/internal/engine"
	"github.com/mirag/ragchat/internal/instruction"
	"github.com/mirag/ragchat/internal/log"
	"github.com/mirag/ragchat/internal/rag"
	"github.com/mirag/ragchat/internal/todo"
)

// App holds the assembled application components.
type App struct {
	Config *config.Config
	Logger log.Logger

	Auth      *auth.Manager
	RAG       *rag.Client
	Engines   *engine.Registry
	Library   *instruction.Library
	Documents *document.Manager
	Models    *chat.ModelSelection
	Chat      *chat.Manager
	Todos     *todo.Store
}

// Setup initializes all application components from configuration.
//
// The returned App is ready for serving: the document manager already tracks
// the selected engine's corpus, and the chat manager resolves its binding
// from the live engine selection, model selection, and active instruction.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	flow, err := auth.NewFlow(cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("creating OAuth flow: %w", err)
	}
	store := auth.NewStore(cfg.TokenFile())
	authManager := auth.NewManager(flow, store, logger.With("component", "auth"))

	// All Vertex calls (data plane and generation) authenticate with the
	// user's OAuth credential, refreshed transparently by the manager.
	httpClient := authManager.HTTPClient(ctx)

	ragClient := rag.NewClient(cfg.ProjectID, cfg.Location, httpClient,
		logger.With("component", "rag"))

	registry := engine.NewRegistry(
		cfg.EnginesFile(),
		cfg.DefaultCorpusID,
		&corpusService{client: ragClient},
		logger.With("component", "engine"),
	)

	library := instruction.NewLibrary(cfg.InstructionsFile(),
		logger.With("component", "instruction"))

	documents := document.NewManager(ragClient, logger.With("component", "document"))
	if eng, err := registry.Selected(); err == nil {
		documents.SetCorpus(eng.CorpusID)
	}

	models := chat.NewModelSelection(cfg.ModelName)

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:    cfg.ProjectID,
		Location:   cfg.Location,
		Backend:    genai.BackendVertexAI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	generator := chat.NewVertexGenerator(genaiClient, cfg.ProjectID, cfg.Location,
		cfg.RetrievalTopK, cfg.DistanceThreshold)

	chatManager := chat.NewManager(generator, bindingResolver(registry, models, library),
		logger.With("component", "chat"))

	todos := todo.NewStore(cfg.TodosFile(), logger.With("component", "todo"))

	return &App{
		Config:    cfg,
		Logger:    logger,
		Auth:      authManager,
		RAG:       ragClient,
		Engines:   registry,
		Library:   library,
		Documents: documents,
		Models:    models,
		Chat:      chatManager,
		Todos:     todos,
	}, nil
}

// bindingResolver composes the live (corpus, model, instruction) binding for
// each chat turn. With no engine selected it returns a zero binding, which
// the chat manager rejects before calling the generator.
func bindingResolver(registry *engine.Registry, models *chat.ModelSelection, library *instruction.Library) chat.BindingResolver {
	return func(ctx context.Context) (chat.Binding, error) {
		eng, err := registry.Selected()
		if err != nil {
			if errors.Is(err, engine.ErrNoSelection) {
				return chat.Binding{}, nil
			}
			return chat.Binding{}, fmt.Errorf("resolving engine selection: %w", err)
		}

		active, err := library.Active()
		if err != nil {
			return chat.Binding{}, fmt.Errorf("resolving active instruction: %w", err)
		}

		return chat.Binding{
			CorpusID:    eng.CorpusID,
			Model:       models.Current(),
			Instruction: active,
		}, nil
	}
}

// corpusService adapts *rag.Client to the registry's corpus interface.
type corpusService struct {
	client *rag.Client
}

func (s *corpusService) CreateCorpus(ctx context.Context, displayName string) (engine.RemoteCorpus, error) {
	c, err := s.client.CreateCorpus(ctx, displayName)
	if err != nil {
		return engine.RemoteCorpus{}, err
	}
	return engine.RemoteCorpus{ID: c.ID(), DisplayName: c.DisplayName}, nil
}

func (s *corpusService) DeleteCorpus(ctx context.Context, corpusID string) error {
	return s.client.DeleteCorpus(ctx, corpusID)
}
