package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mirag/ragchat/internal/log"
)

// newTestClient points a client at the given test server for both the data
// and upload endpoints.
func newTestClient(srv *httptest.Server) *Client {
	c := NewClient("test-project", "us-east1", srv.Client(), log.NewNop())
	c.baseURL = srv.URL + "/v1beta1"
	c.uploadURL = srv.URL + "/upload/v1beta1"
	c.pollInterval = time.Millisecond
	return c
}

func TestListCorporaPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		wantPath := "/v1beta1/projects/test-project/locations/us-east1/ragCorpora"
		if r.URL.Path != wantPath {
			t.Errorf("path = %s, want %s", r.URL.Path, wantPath)
		}

		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{
				"ragCorpora": [{"name": "projects/p/locations/l/ragCorpora/100", "displayName": "alpha"}],
				"nextPageToken": "page2"
			}`)
			return
		}
		fmt.Fprint(w, `{
			"ragCorpora": [{"name": "projects/p/locations/l/ragCorpora/200", "displayName": "beta"}]
		}`)
	}))
	defer srv.Close()

	corpora, err := newTestClient(srv).ListCorpora(context.Background())
	if err != nil {
		t.Fatalf("ListCorpora() error = %v", err)
	}
	if len(corpora) != 2 {
		t.Fatalf("got %d corpora, want 2", len(corpora))
	}
	if corpora[0].ID() != "100" || corpora[1].ID() != "200" {
		t.Errorf("corpus IDs = %s, %s; want 100, 200", corpora[0].ID(), corpora[1].ID())
	}
	if corpora[0].DisplayName != "alpha" {
		t.Errorf("DisplayName = %s, want alpha", corpora[0].DisplayName)
	}
}

func TestCreateCorpusWaitsForOperation(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decoding create body: %v", err)
			}
			if body["displayName"] != "my-engine" {
				t.Errorf("displayName = %s, want my-engine", body["displayName"])
			}
			fmt.Fprint(w, `{"name": "projects/p/locations/l/operations/op-1", "done": false}`)

		case strings.Contains(r.URL.Path, "operations/op-1"):
			polls++
			if polls < 2 {
				fmt.Fprint(w, `{"name": "projects/p/locations/l/operations/op-1", "done": false}`)
				return
			}
			fmt.Fprint(w, `{
				"name": "projects/p/locations/l/operations/op-1",
				"done": true,
				"response": {"name": "projects/p/locations/l/ragCorpora/300", "displayName": "my-engine"}
			}`)

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	corpus, err := newTestClient(srv).CreateCorpus(context.Background(), "my-engine")
	if err != nil {
		t.Fatalf("CreateCorpus() error = %v", err)
	}
	if corpus.ID() != "300" {
		t.Errorf("corpus ID = %s, want 300", corpus.ID())
	}
	if polls != 2 {
		t.Errorf("polled %d times, want 2", polls)
	}
}

func TestCreateCorpusOperationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"name": "projects/p/locations/l/operations/op-2",
			"done": true,
			"error": {"code": 7, "message": "permission denied"}
		}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).CreateCorpus(context.Background(), "my-engine")
	if !errors.Is(err, ErrOperationFailed) {
		t.Errorf("CreateCorpus() error = %v, want ErrOperationFailed", err)
	}
}

func TestDeleteCorpusForces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		if r.URL.Query().Get("force") != "true" {
			t.Error("delete should force-remove corpus contents")
		}
		fmt.Fprint(w, `{"name": "projects/p/locations/l/operations/op-3", "done": true}`)
	}))
	defer srv.Close()

	if err := newTestClient(srv).DeleteCorpus(context.Background(), "300"); err != nil {
		t.Fatalf("DeleteCorpus() error = %v", err)
	}
}

func TestListFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/v1beta1/projects/test-project/locations/us-east1/ragCorpora/300/ragFiles"
		if r.URL.Path != wantPath {
			t.Errorf("path = %s, want %s", r.URL.Path, wantPath)
		}
		fmt.Fprint(w, `{
			"ragFiles": [
				{"name": "projects/p/locations/l/ragCorpora/300/ragFiles/f1", "displayName": "report.pdf", "sizeBytes": "2048"}
			]
		}`)
	}))
	defer srv.Close()

	files, err := newTestClient(srv).ListFiles(context.Background(), "300")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if files[0].ID() != "f1" || files[0].DisplayName != "report.pdf" {
		t.Errorf("file = %+v", files[0])
	}
}

func TestUploadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/upload/v1beta1/projects/test-project/locations/us-east1/ragCorpora/300/ragFiles:upload"
		if r.URL.Path != wantPath {
			t.Errorf("path = %s, want %s", r.URL.Path, wantPath)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart form: %v", err)
		}

		var meta struct {
			RagFile struct {
				DisplayName string `json:"display_name"`
			} `json:"rag_file"`
		}
		if err := json.Unmarshal([]byte(r.FormValue("metadata")), &meta); err != nil {
			t.Fatalf("parsing metadata part: %v", err)
		}
		if meta.RagFile.DisplayName != "notes.txt" {
			t.Errorf("display_name = %s, want notes.txt", meta.RagFile.DisplayName)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()

		fmt.Fprint(w, `{"ragFile": {"name": "projects/p/locations/l/ragCorpora/300/ragFiles/f9", "displayName": "notes.txt"}}`)
	}))
	defer srv.Close()

	file, err := newTestClient(srv).UploadFile(context.Background(), "300", "notes.txt", strings.NewReader("document body"))
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if file.ID() != "f9" {
		t.Errorf("file ID = %s, want f9", file.ID())
	}
}

func TestUploadFileServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"code": 3, "message": "unsupported file type"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).UploadFile(context.Background(), "300", "notes.bin", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "unsupported file type") {
		t.Errorf("UploadFile() error = %v, want service error", err)
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 401, "message": "unauthenticated"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ListCorpora(context.Background())
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Errorf("ListCorpora() error = %v, want status 401 error", err)
	}
}

func TestResourceNameHelpers(t *testing.T) {
	got := CorpusResource("p", "us-east1", "42")
	if got != "projects/p/locations/us-east1/ragCorpora/42" {
		t.Errorf("CorpusResource() = %s", got)
	}
	gotFile := FileResource("p", "us-east1", "42", "f7")
	if gotFile != "projects/p/locations/us-east1/ragCorpora/42/ragFiles/f7" {
		t.Errorf("FileResource() = %s", gotFile)
	}
}
