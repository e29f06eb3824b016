package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultURL is where a local server listens.
const DefaultURL = "http://127.0.0.1:8188"

// ErrNoPromptID means the server answered but did not accept the job.
var ErrNoPromptID = errors.New("server returned no prompt_id")

// Client talks to the job server's HTTP API.
type Client struct {
	baseURL    string
	clientID   string
	HTTPClient *http.Client
}

// NewClient returns a client with a fresh client id.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: uuid.NewString(),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) URL() string {
	return c.baseURL
}

// Depth is the number of running and pending jobs.
type Depth struct {
	Running int
	Pending int
}

// Queue reports the server's queue depth.
func (c *Client) Queue(ctx context.Context) (Depth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/queue", nil)
	if err != nil {
		return Depth{}, fmt.Errorf("failed to create request: %w", err)
	}

	var body struct {
		Running []json.RawMessage `json:"queue_running"`
		Pending []json.RawMessage `json:"queue_pending"`
	}
	if err := c.do(req, &body); err != nil {
		return Depth{}, err
	}
	return Depth{Running: len(body.Running), Pending: len(body.Pending)}, nil
}

// Submit posts a workflow and returns the server's prompt id.
func (c *Client) Submit(ctx context.Context, w Workflow) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"prompt":    w,
		"client_id": c.clientID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		PromptID string `json:"prompt_id"`
	}
	if err := c.do(req, &body); err != nil {
		return "", err
	}
	if body.PromptID == "" {
		return "", ErrNoPromptID
	}
	return body.PromptID, nil
}

// Upload sends a local image and returns the name the server stored it as.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read reference image: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.WriteField("overwrite", "true"); err != nil {
		return "", fmt.Errorf("failed to write form field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var body struct {
		Name string `json:"name"`
	}
	if err := c.do(req, &body); err != nil {
		return "", err
	}
	if body.Name == "" {
		return "", fmt.Errorf("upload of %s returned no name", filepath.Base(path))
	}
	return body.Name, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
