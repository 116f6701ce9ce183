// Package api exposes the chat application over a JSON HTTP API.
//
// Endpoints:
//
//	GET    /health                          liveness probe
//	GET    /ready                           readiness probe
//	GET    /api/v1/auth/url                 OAuth authorization URL
//	GET    /auth/callback                   OAuth redirect target
//	GET    /api/v1/auth/status              authentication state
//	POST   /api/v1/auth/logout              drop credentials
//	GET    /api/v1/engines                  list engines (synced with remote)
//	POST   /api/v1/engines                  create engine
//	DELETE /api/v1/engines/{name}           delete engine
//	POST   /api/v1/engines/{name}/select    select engine
//	GET    /api/v1/models                   model catalog and selection
//	POST   /api/v1/models/select            select model
//	GET    /api/v1/instructions             list preset names
//	GET    /api/v1/instructions/{name}      read preset
//	PUT    /api/v1/instructions/{name}      write preset
//	DELETE /api/v1/instructions/{name}      delete preset
//	POST   /api/v1/instructions/activate    save-and-activate instruction
//	GET    /api/v1/documents                list corpus documents
//	POST   /api/v1/documents                upload document (multipart)
//	POST   /api/v1/documents/refresh        refetch document list
//	DELETE /api/v1/documents/{id}           delete document
//	POST   /api/v1/chat                     send one turn
//	GET    /api/v1/chat/history             conversation history
//	DELETE /api/v1/chat                     clear conversation
//	GET    /api/v1/todos                    note lists
//	POST   /api/v1/todos                    create list
//	...
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mirag/ragchat/internal/auth"
	"github.com/mirag/ragchat/internal/chat"
	"github.com/mirag/ragchat/internal/document"
	"github.com/mirag/ragchat/internal/engine"
	"github.com/mirag/ragchat/internal/instruction"
	"github.com/mirag/ragchat/internal/rag"
	"github.com/mirag/ragchat/internal/todo"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to mitigate Slowloris.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 60 * time.Second

	// WriteTimeout is generous because chat turns block on generation.
	WriteTimeout = 180 * time.Second

	// IdleTimeout for keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// CorpusLister provides the remote corpus list for engine reconciliation.
// Satisfied by *rag.Client; tests substitute a stub.
type CorpusLister interface {
	ListCorpora(ctx context.Context) ([]rag.Corpus, error)
}

// ServerConfig carries the dependencies for the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Auth        *auth.Manager        // required
	Engines     *engine.Registry     // required
	Corpora     CorpusLister         // optional: nil disables remote sync on list
	Library     *instruction.Library // required
	Documents   *document.Manager    // required
	Chat        *chat.Manager        // required
	Models      *chat.ModelSelection // required
	Todos       *todo.Store          // optional: nil disables the todos API
	CORSOrigins []string             // allowed origins for CORS
	TrustProxy  bool                 // trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int                  // rate limiter burst per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Auth == nil {
		return nil, errors.New("auth manager is required")
	}
	if cfg.Engines == nil {
		return nil, errors.New("engine registry is required")
	}
	if cfg.Library == nil {
		return nil, errors.New("instruction library is required")
	}
	if cfg.Documents == nil {
		return nil, errors.New("document manager is required")
	}
	if cfg.Chat == nil {
		return nil, errors.New("chat manager is required")
	}
	if cfg.Models == nil {
		return nil, errors.New("model selection is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	ah := &authHandler{auth: cfg.Auth, chat: cfg.Chat, logger: logger, states: make(map[string]time.Time)}
	mux.HandleFunc("GET /api/v1/auth/url", ah.authorizeURL)
	mux.HandleFunc("GET /auth/callback", ah.callback)
	mux.HandleFunc("GET /api/v1/auth/status", ah.status)
	mux.HandleFunc("POST /api/v1/auth/logout", ah.logout)

	eh := &engineHandler{registry: cfg.Engines, corpora: cfg.Corpora, documents: cfg.Documents, logger: logger}
	mux.HandleFunc("GET /api/v1/engines", eh.list)
	mux.HandleFunc("POST /api/v1/engines", eh.create)
	mux.HandleFunc("DELETE /api/v1/engines/{name}", eh.delete)
	mux.HandleFunc("POST /api/v1/engines/{name}/select", eh.selectEngine)

	mh := &modelHandler{models: cfg.Models, logger: logger}
	mux.HandleFunc("GET /api/v1/models", mh.list)
	mux.HandleFunc("POST /api/v1/models/select", mh.selectModel)

	ih := &instructionHandler{library: cfg.Library, logger: logger}
	mux.HandleFunc("GET /api/v1/instructions", ih.list)
	mux.HandleFunc("GET /api/v1/instructions/{name}", ih.get)
	mux.HandleFunc("PUT /api/v1/instructions/{name}", ih.put)
	mux.HandleFunc("DELETE /api/v1/instructions/{name}", ih.delete)
	mux.HandleFunc("POST /api/v1/instructions/activate", ih.activate)

	dh := &documentHandler{documents: cfg.Documents, registry: cfg.Engines, logger: logger}
	mux.HandleFunc("GET /api/v1/documents", dh.list)
	mux.HandleFunc("POST /api/v1/documents", dh.upload)
	mux.HandleFunc("POST /api/v1/documents/refresh", dh.refresh)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", dh.delete)

	ch := &chatHandler{chat: cfg.Chat, logger: logger}
	mux.HandleFunc("POST /api/v1/chat", ch.send)
	mux.HandleFunc("GET /api/v1/chat/history", ch.history)
	mux.HandleFunc("DELETE /api/v1/chat", ch.clear)

	if cfg.Todos != nil {
		th := &todoHandler{store: cfg.Todos, logger: logger}
		mux.HandleFunc("GET /api/v1/todos", th.lists)
		mux.HandleFunc("POST /api/v1/todos", th.createList)
		mux.HandleFunc("DELETE /api/v1/todos/{list}", th.deleteList)
		mux.HandleFunc("POST /api/v1/todos/{list}/items", th.addItem)
		mux.HandleFunc("POST /api/v1/todos/{list}/items/{id}/toggle", th.toggleItem)
		mux.HandleFunc("DELETE /api/v1/todos/{list}/items/{id}", th.removeItem)
	}

	// Rate limiter: per-IP token bucket (1 token/sec refill).
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery -> Logging -> CORS -> RateLimit -> Routes
	// CORS sits before RateLimit so preflight OPTIONS gets proper headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes stay outside the middleware stack.
	topMux := http.NewServeMux()
	hh := &healthHandler{auth: cfg.Auth}
	topMux.HandleFunc("GET /health", hh.liveness)
	topMux.HandleFunc("GET /ready", hh.readiness)
	topMux.Handle("/", handler)

	return &Server{mux: topMux, logger: logger}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
