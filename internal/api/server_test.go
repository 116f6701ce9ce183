package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mirag/ragchat/internal/auth"
	"github.com/mirag/ragchat/internal/chat"
	"github.com/mirag/ragchat/internal/document"
	"github.com/mirag/ragchat/internal/engine"
	"github.com/mirag/ragchat/internal/instruction"
	"github.com/mirag/ragchat/internal/log"
	"github.com/mirag/ragchat/internal/rag"
	"github.com/mirag/ragchat/internal/todo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// stubFlow satisfies auth.AuthFlow without an identity provider.
type stubFlow struct {
	exchangeErr error
}

func (f *stubFlow) AuthorizeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *stubFlow) Exchange(context.Context, string) (*auth.Credentials, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &auth.Credentials{
		AccessToken:  "token",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

func (f *stubFlow) Refresh(_ context.Context, c *auth.Credentials) (*auth.Credentials, error) {
	return c, nil
}

// stubRemote serves as both the engine corpus service and the corpus lister.
type stubRemote struct {
	corpora   []rag.Corpus
	createErr error
	listErr   error
}

func (s *stubRemote) ListCorpora(context.Context) ([]rag.Corpus, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.corpora, nil
}

func (s *stubRemote) CreateCorpus(_ context.Context, displayName string) (engine.RemoteCorpus, error) {
	if s.createErr != nil {
		return engine.RemoteCorpus{}, s.createErr
	}
	id := fmt.Sprintf("corpus-%d", len(s.corpora)+100)
	s.corpora = append(s.corpora, rag.Corpus{
		Name:        "projects/p/locations/l/ragCorpora/" + id,
		DisplayName: displayName,
	})
	return engine.RemoteCorpus{ID: id, DisplayName: displayName}, nil
}

func (s *stubRemote) DeleteCorpus(context.Context, string) error {
	return nil
}

// stubGenerator satisfies chat.Generator.
type stubGenerator struct {
	reply chat.Reply
	err   error
}

func (g *stubGenerator) Generate(context.Context, chat.Binding, []chat.Message, string) (chat.Reply, error) {
	if g.err != nil {
		return chat.Reply{}, g.err
	}
	return g.reply, nil
}

// fixtures bundles the stubbed dependencies behind a test server.
type fixtures struct {
	flow      *stubFlow
	remote    *stubRemote
	generator *stubGenerator
	registry  *engine.Registry
	library   *instruction.Library
}

func newTestServer(t *testing.T) (http.Handler, *fixtures) {
	t.Helper()
	dir := t.TempDir()
	logger := log.NewNop()

	f := &fixtures{
		flow:      &stubFlow{},
		remote: &stubRemote{corpora: []rag.Corpus{{
			Name:        "projects/p/locations/l/ragCorpora/default-corpus",
			DisplayName: "Shared",
		}}},
		generator: &stubGenerator{reply: chat.Reply{Text: "Hi!"}},
	}

	authMgr := auth.NewManager(f.flow, auth.NewStore(filepath.Join(dir, "token.json")), logger)
	f.registry = engine.NewRegistry(filepath.Join(dir, "rag_engines.json"), "default-corpus", f.remote, logger)
	f.library = instruction.NewLibrary(filepath.Join(dir, "system_instructions.json"), logger)
	documents := document.NewManager(&fileService{}, logger)
	models := chat.NewModelSelection("")
	todos := todo.NewStore(filepath.Join(dir, "todo_lists.json"), logger)

	resolve := func(context.Context) (chat.Binding, error) {
		eng, err := f.registry.Selected()
		if err != nil {
			if errors.Is(err, engine.ErrNoSelection) {
				return chat.Binding{}, nil
			}
			return chat.Binding{}, err
		}
		instr, err := f.library.Active()
		if err != nil {
			return chat.Binding{}, err
		}
		return chat.Binding{CorpusID: eng.CorpusID, Model: models.Current(), Instruction: instr}, nil
	}
	chatMgr := chat.NewManager(f.generator, resolve, logger)

	srv, err := NewServer(ServerConfig{
		Logger:    logger,
		Auth:      authMgr,
		Engines:   f.registry,
		Corpora:   f.remote,
		Library:   f.library,
		Documents: documents,
		Chat:      chatMgr,
		Models:    models,
		Todos:     todos,
		RateBurst: 1000,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv.Handler(), f
}

// fileService is a minimal in-memory document.FileService.
type fileService struct {
	files []rag.File
}

func (s *fileService) UploadFile(_ context.Context, corpusID, displayName string, r io.Reader) (rag.File, error) {
	if _, err := io.ReadAll(r); err != nil {
		return rag.File{}, err
	}
	file := rag.File{
		Name:        fmt.Sprintf("projects/p/locations/l/ragCorpora/%s/ragFiles/f%d", corpusID, len(s.files)+1),
		DisplayName: displayName,
	}
	s.files = append(s.files, file)
	return file, nil
}

func (s *fileService) ListFiles(context.Context, string) ([]rag.File, error) {
	return s.files, nil
}

func (s *fileService) DeleteFile(_ context.Context, _, fileID string) error {
	for i, f := range s.files {
		if f.ID() == fileID {
			s.files = append(s.files[:i], s.files[i+1:]...)
			return nil
		}
	}
	return nil
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	handler, _ := newTestServer(t)

	w := doJSON(t, handler, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("GET /health body = %q, want ok", w.Body.String())
	}

	w = doJSON(t, handler, http.MethodGet, "/ready", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET /ready = %d, want 200", w.Code)
	}
	var ready struct {
		Ready         bool `json:"ready"`
		Authenticated bool `json:"authenticated"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ready); err != nil {
		t.Fatal(err)
	}
	if !ready.Ready || ready.Authenticated {
		t.Errorf("ready = %+v, want ready and not authenticated", ready)
	}
}

func TestAuthFlowRoundTrip(t *testing.T) {
	handler, _ := newTestServer(t)

	w := doJSON(t, handler, http.MethodGet, "/api/v1/auth/url", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/auth/url = %d, want 200", w.Code)
	}
	var urlResp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &urlResp); err != nil {
		t.Fatal(err)
	}
	state := urlResp.URL[strings.Index(urlResp.URL, "state=")+len("state="):]
	if state == "" {
		t.Fatal("authorization URL carries no state")
	}

	w = doJSON(t, handler, http.MethodGet, "/auth/callback?code=abc&state="+state, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /auth/callback = %d, want 200: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, handler, http.MethodGet, "/api/v1/auth/status", nil)
	var status struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if !status.Authenticated {
		t.Error("status should report authenticated after callback")
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/auth/logout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/auth/logout = %d, want 200", w.Code)
	}
	w = doJSON(t, handler, http.MethodGet, "/api/v1/auth/status", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Authenticated {
		t.Error("status should report logged out after logout")
	}
}

func TestAuthCallbackRejectsUnknownState(t *testing.T) {
	handler, _ := newTestServer(t)

	w := doJSON(t, handler, http.MethodGet, "/auth/callback?code=abc&state=forged", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("GET /auth/callback with forged state = %d, want 403", w.Code)
	}
}

func TestEngineLifecycle(t *testing.T) {
	handler, _ := newTestServer(t)

	// Bootstrap default engine survives the sync because its corpus is in
	// the remote list.
	w := doJSON(t, handler, http.MethodGet, "/api/v1/engines", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/engines = %d: %s", w.Code, w.Body.String())
	}
	var listed struct {
		Engines  []engine.Engine `json:"engines"`
		Selected string          `json:"selected"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Engines) != 1 || !listed.Engines[0].IsDefault {
		t.Fatalf("engines = %+v, want only the default engine", listed.Engines)
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/engines", map[string]string{"name": "research"})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/v1/engines = %d: %s", w.Code, w.Body.String())
	}
	var created engine.Engine
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Name != "research" || created.IsDefault {
		t.Errorf("created engine = %+v", created)
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/engines", map[string]string{"name": "research"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/engines/research/select", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("select = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, handler, http.MethodDelete, "/api/v1/engines/research", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, handler, http.MethodDelete, "/api/v1/engines/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete missing = %d, want 404", w.Code)
	}
}

func TestModelSelection(t *testing.T) {
	handler, _ := newTestServer(t)

	w := doJSON(t, handler, http.MethodGet, "/api/v1/models", nil)
	var resp struct {
		Models   []chat.ModelOption `json:"models"`
		Selected string             `json:"selected"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Selected != chat.DefaultModel {
		t.Errorf("selected = %s, want %s", resp.Selected, chat.DefaultModel)
	}
	if len(resp.Models) == 0 {
		t.Error("model catalog is empty")
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/models/select", map[string]string{"id": "gemini-2.5-pro"})
	if w.Code != http.StatusOK {
		t.Fatalf("select model = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/models/select", map[string]string{"id": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("select empty model = %d, want 400", w.Code)
	}
}

func TestInstructionEndpoints(t *testing.T) {
	handler, _ := newTestServer(t)

	w := doJSON(t, handler, http.MethodGet, "/api/v1/instructions/default", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET default preset = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, handler, http.MethodPut, "/api/v1/instructions/strict", map[string]string{"text": "Cite everything."})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT preset = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, handler, http.MethodDelete, "/api/v1/instructions/default", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("DELETE default preset = %d, want 403", w.Code)
	}

	w = doJSON(t, handler, http.MethodDelete, "/api/v1/instructions/strict", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("DELETE preset = %d, want 204", w.Code)
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/instructions/activate", map[string]string{"text": "Be terse."})
	if w.Code != http.StatusOK {
		t.Errorf("POST activate = %d, want 200", w.Code)
	}
}

func TestChatTurn(t *testing.T) {
	handler, f := newTestServer(t)

	f.generator.reply = chat.Reply{
		Text: "Grounded answer.",
		Sources: []chat.Source{
			{URI: "gs://corpus/doc.pdf", Text: "passage"},
		},
	}

	w := doJSON(t, handler, http.MethodPost, "/api/v1/chat", map[string]string{"prompt": "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/chat = %d: %s", w.Code, w.Body.String())
	}
	var msg chat.Message
	if err := json.Unmarshal(w.Body.Bytes(), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Role != chat.RoleAssistant || msg.Content != "Grounded answer." {
		t.Errorf("message = %+v", msg)
	}
	if len(msg.Sources) != 1 {
		t.Errorf("sources = %v, want 1 source", msg.Sources)
	}

	w = doJSON(t, handler, http.MethodGet, "/api/v1/chat/history", nil)
	var hist struct {
		Messages []chat.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatal(err)
	}
	if len(hist.Messages) != 2 {
		t.Errorf("history length = %d, want 2", len(hist.Messages))
	}

	w = doJSON(t, handler, http.MethodDelete, "/api/v1/chat", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE /api/v1/chat = %d, want 204", w.Code)
	}
	w = doJSON(t, handler, http.MethodGet, "/api/v1/chat/history", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatal(err)
	}
	if len(hist.Messages) != 0 {
		t.Errorf("history length after clear = %d, want 0", len(hist.Messages))
	}
}

func TestChatGenerationFailure(t *testing.T) {
	handler, f := newTestServer(t)

	f.generator.err = errors.New("model unavailable")

	w := doJSON(t, handler, http.MethodPost, "/api/v1/chat", map[string]string{"prompt": "hello"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("POST /api/v1/chat = %d, want 502: %s", w.Code, w.Body.String())
	}

	// The user's turn is still visible for retry.
	w = doJSON(t, handler, http.MethodGet, "/api/v1/chat/history", nil)
	var hist struct {
		Messages []chat.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatal(err)
	}
	if len(hist.Messages) != 1 || hist.Messages[0].Role != chat.RoleUser {
		t.Errorf("history = %+v, want only the user turn", hist.Messages)
	}
}

func TestChatEmptyPromptIsNoOp(t *testing.T) {
	handler, _ := newTestServer(t)

	w := doJSON(t, handler, http.MethodPost, "/api/v1/chat", map[string]string{"prompt": "  "})
	if w.Code != http.StatusNoContent {
		t.Errorf("POST /api/v1/chat with blank prompt = %d, want 204", w.Code)
	}

	// History is untouched.
	w = doJSON(t, handler, http.MethodGet, "/api/v1/chat/history", nil)
	var resp struct {
		Messages []chat.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Messages) != 0 {
		t.Errorf("history after blank prompt = %+v, want empty", resp.Messages)
	}
}

func TestDocumentUploadAndList(t *testing.T) {
	handler, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("document body")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/v1/documents = %d: %s", w.Code, w.Body.String())
	}

	lw := doJSON(t, handler, http.MethodGet, "/api/v1/documents", nil)
	if lw.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/documents = %d: %s", lw.Code, lw.Body.String())
	}
}

func TestTodoEndpoints(t *testing.T) {
	handler, _ := newTestServer(t)

	w := doJSON(t, handler, http.MethodPost, "/api/v1/todos", map[string]string{"name": "follow-ups"})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/v1/todos = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/todos/follow-ups/items", map[string]string{"text": "re-check citations"})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST item = %d: %s", w.Code, w.Body.String())
	}
	var item todo.Item
	if err := json.Unmarshal(w.Body.Bytes(), &item); err != nil {
		t.Fatal(err)
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/todos/follow-ups/items/"+item.ID+"/toggle", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("toggle = %d, want 204", w.Code)
	}

	w = doJSON(t, handler, http.MethodDelete, "/api/v1/todos/follow-ups/items/"+item.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("remove item = %d, want 204", w.Code)
	}

	w = doJSON(t, handler, http.MethodDelete, "/api/v1/todos/follow-ups", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete list = %d, want 204", w.Code)
	}
}

func TestRecoveryFromPanicHandler(t *testing.T) {
	// The stack around the mux must swallow handler panics.
	logger := log.NewNop()
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(logger)(panicking)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
