// Package rag is a client for the Vertex AI RAG data plane: corpus and file
// management over the v1beta1 REST surface. Generation against a corpus goes
// through the genai SDK instead; this package covers only the operations the
// SDK does not expose.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// defaultPollInterval is the delay between long-running operation polls.
const defaultPollInterval = 2 * time.Second

// ErrOperationFailed indicates the service reported a terminal error for a
// long-running operation.
var ErrOperationFailed = errors.New("operation failed")

// Client calls the Vertex AI RAG REST API.
//
// The HTTP client must attach credentials to every request; pass the client
// returned by auth.Manager.HTTPClient.
type Client struct {
	project   string
	location  string
	baseURL   string // https://{location}-aiplatform.googleapis.com/v1beta1
	uploadURL string // https://{location}-aiplatform.googleapis.com/upload/v1beta1

	httpClient   *http.Client
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewClient creates a RAG client for the given project and location.
func NewClient(project, location string, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	host := fmt.Sprintf("https://%s-aiplatform.googleapis.com", location)
	return &Client{
		project:      project,
		location:     location,
		baseURL:      host + "/v1beta1",
		uploadURL:    host + "/upload/v1beta1",
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: defaultPollInterval,
	}
}

func (c *Client) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", c.project, c.location)
}

// ListCorpora returns every RAG corpus in the project and location. Handles
// pagination and returns the full set.
func (c *Client) ListCorpora(ctx context.Context) ([]Corpus, error) {
	var all []Corpus
	pageToken := ""

	for {
		url := fmt.Sprintf("%s/%s/ragCorpora", c.baseURL, c.parent())
		if pageToken != "" {
			url += "?pageToken=" + pageToken
		}

		var resp struct {
			RagCorpora    []Corpus `json:"ragCorpora"`
			NextPageToken string   `json:"nextPageToken"`
		}
		if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
			return nil, fmt.Errorf("list corpora failed: %w", err)
		}
		all = append(all, resp.RagCorpora...)

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return all, nil
}

// CreateCorpus creates a corpus with the given display name and waits for the
// operation to complete.
func (c *Client) CreateCorpus(ctx context.Context, displayName string) (Corpus, error) {
	url := fmt.Sprintf("%s/%s/ragCorpora", c.baseURL, c.parent())
	body := map[string]string{"displayName": displayName}

	var op operation
	if err := c.doJSON(ctx, http.MethodPost, url, body, &op); err != nil {
		return Corpus{}, fmt.Errorf("create corpus failed: %w", err)
	}

	result, err := c.waitOperation(ctx, op)
	if err != nil {
		return Corpus{}, fmt.Errorf("create corpus failed: %w", err)
	}

	var corpus Corpus
	if err := json.Unmarshal(result, &corpus); err != nil {
		return Corpus{}, fmt.Errorf("create corpus failed: parsing result: %w", err)
	}

	c.logger.Info("rag corpus created", "name", corpus.Name, "display_name", corpus.DisplayName)
	return corpus, nil
}

// DeleteCorpus deletes a corpus and all files in it, waiting for completion.
func (c *Client) DeleteCorpus(ctx context.Context, corpusID string) error {
	url := fmt.Sprintf("%s/%s?force=true", c.baseURL, CorpusResource(c.project, c.location, corpusID))

	var op operation
	if err := c.doJSON(ctx, http.MethodDelete, url, nil, &op); err != nil {
		return fmt.Errorf("delete corpus failed: %w", err)
	}
	if _, err := c.waitOperation(ctx, op); err != nil {
		return fmt.Errorf("delete corpus failed: %w", err)
	}

	c.logger.Info("rag corpus deleted", "corpus_id", corpusID)
	return nil
}

// ListFiles returns every file in the given corpus.
func (c *Client) ListFiles(ctx context.Context, corpusID string) ([]File, error) {
	var all []File
	pageToken := ""

	for {
		url := fmt.Sprintf("%s/%s/ragFiles", c.baseURL, CorpusResource(c.project, c.location, corpusID))
		if pageToken != "" {
			url += "?pageToken=" + pageToken
		}

		var resp struct {
			RagFiles      []File `json:"ragFiles"`
			NextPageToken string `json:"nextPageToken"`
		}
		if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
			return nil, fmt.Errorf("list files failed: %w", err)
		}
		all = append(all, resp.RagFiles...)

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return all, nil
}

// DeleteFile removes a single file from a corpus.
func (c *Client) DeleteFile(ctx context.Context, corpusID, fileID string) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, FileResource(c.project, c.location, corpusID, fileID))

	var op operation
	if err := c.doJSON(ctx, http.MethodDelete, url, nil, &op); err != nil {
		return fmt.Errorf("delete file failed: %w", err)
	}
	if _, err := c.waitOperation(ctx, op); err != nil {
		return fmt.Errorf("delete file failed: %w", err)
	}

	c.logger.Info("rag file deleted", "corpus_id", corpusID, "file_id", fileID)
	return nil
}

// UploadFile streams a document into a corpus under the given display name.
// The service chunks and indexes the document; the returned File describes
// the imported record.
func (c *Client) UploadFile(ctx context.Context, corpusID, displayName string, r io.Reader) (File, error) {
	url := fmt.Sprintf("%s/%s/ragFiles:upload", c.uploadURL, CorpusResource(c.project, c.location, corpusID))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	meta, err := mw.CreateFormField("metadata")
	if err != nil {
		return File{}, fmt.Errorf("upload file failed: %w", err)
	}
	metadata := map[string]any{
		"rag_file": map[string]string{"display_name": displayName},
	}
	if err := json.NewEncoder(meta).Encode(metadata); err != nil {
		return File{}, fmt.Errorf("upload file failed: %w", err)
	}

	part, err := mw.CreateFormFile("file", displayName)
	if err != nil {
		return File{}, fmt.Errorf("upload file failed: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return File{}, fmt.Errorf("upload file failed: reading document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return File{}, fmt.Errorf("upload file failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return File{}, fmt.Errorf("upload file failed: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Goog-Upload-Protocol", "multipart")

	respBody, err := c.do(req)
	if err != nil {
		return File{}, fmt.Errorf("upload file failed: %w", err)
	}

	var resp struct {
		RagFile File            `json:"ragFile"`
		Error   *operationError `json:"error"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return File{}, fmt.Errorf("upload file failed: parsing response: %w", err)
	}
	if resp.Error != nil {
		return File{}, fmt.Errorf("upload file failed: %w", resp.Error)
	}

	c.logger.Info("rag file uploaded",
		"corpus_id", corpusID,
		"display_name", displayName,
		"file_id", resp.RagFile.ID())
	return resp.RagFile, nil
}

// operation is a google.longrunning.Operation envelope.
type operation struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done"`
	Error    *operationError `json:"error"`
	Response json.RawMessage `json:"response"`
}

type operationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *operationError) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

// waitOperation polls a long-running operation until it completes and returns
// the response payload.
func (c *Client) waitOperation(ctx context.Context, op operation) (json.RawMessage, error) {
	for {
		if op.Done {
			if op.Error != nil {
				return nil, fmt.Errorf("%w: %s", ErrOperationFailed, op.Error)
			}
			return op.Response, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		url := c.baseURL + "/" + op.Name
		var next operation
		if err := c.doJSON(ctx, http.MethodGet, url, nil, &next); err != nil {
			return nil, fmt.Errorf("polling operation %s: %w", op.Name, err)
		}
		op = next
	}
}

// doJSON makes a JSON request and decodes the response into result.
func (c *Client) doJSON(ctx context.Context, method, url string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	respBody, err := c.do(req)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

// do executes a request and returns the body, converting non-2xx statuses to
// errors.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vertex API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
