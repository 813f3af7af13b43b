// Package gemini talks to the Gemini API: file upload, state polling, cleanup
// and content generation.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"google.golang.org/genai"
)

// Static errors for Gemini client operations.
var (
	// ErrAPIKeyRequired is returned when the client is built without an API key.
	ErrAPIKeyRequired = errors.New("gemini: API key is required")
	// ErrFileNameRequired is returned when a file operation receives no name.
	ErrFileNameRequired = errors.New("gemini: file name is required")
	// ErrEmptyResponse is returned when generation yields no text.
	ErrEmptyResponse = errors.New("gemini: empty response")
)

// State is the processing state of an uploaded file.
type State string

const (
	// StatePending means the backend is still ingesting the file.
	StatePending State = "PENDING"
	// StateActive means the file can be used as generation context.
	StateActive State = "ACTIVE"
	// StateFailed means the backend could not process the file.
	StateFailed State = "FAILED"
)

// RemoteFile is a handle on a file uploaded to the backend. It is scoped to a
// single local artifact and a single analysis attempt.
type RemoteFile struct {
	Name      string
	URI       string
	MIMEType  string
	State     State
	LocalPath string
}

// Active reports whether the file can be used for generation.
func (f *RemoteFile) Active() bool {
	return f != nil && f.State == StateActive
}

// Backend is the subset of the Gemini API the pipeline consumes.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Upload sends a local file and returns its handle in whatever state the
	// backend reports.
	Upload(ctx context.Context, localPath, mimeType string) (*RemoteFile, error)
	// Get re-fetches the handle's current state.
	Get(ctx context.Context, name string) (*RemoteFile, error)
	// Delete removes an uploaded file.
	Delete(ctx context.Context, name string) error
	// Generate runs the model on prompt, with file as context when non-nil,
	// and returns the response text.
	Generate(ctx context.Context, model, prompt string, file *RemoteFile) (string, error)
}

// Client implements Backend on top of the genai SDK.
type Client struct {
	genai *genai.Client
}

type clientOptions struct {
	httpClient *http.Client
	baseURL    string
}

// ClientOption is a function that configures a Client.
type ClientOption func(*clientOptions)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// NewClient creates a Client for the Gemini Developer API.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}

	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{genai: c}, nil
}

// Upload implements Backend.
func (c *Client) Upload(ctx context.Context, localPath, mimeType string) (*RemoteFile, error) {
	f, err := os.Open(localPath) // #nosec G304 - path is a temp artifact created by this process
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	file, err := c.genai.Files.Upload(ctx, f, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}

	rf := toRemoteFile(file)
	rf.LocalPath = localPath
	if rf.MIMEType == "" {
		rf.MIMEType = mimeType
	}
	return rf, nil
}

// Get implements Backend.
func (c *Client) Get(ctx context.Context, name string) (*RemoteFile, error) {
	if name == "" {
		return nil, ErrFileNameRequired
	}
	file, err := c.genai.Files.Get(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", name, err)
	}
	return toRemoteFile(file), nil
}

// Delete implements Backend.
func (c *Client) Delete(ctx context.Context, name string) error {
	if name == "" {
		return ErrFileNameRequired
	}
	if _, err := c.genai.Files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("delete file %s: %w", name, err)
	}
	return nil
}

// Generate implements Backend.
func (c *Client) Generate(ctx context.Context, model, prompt string, file *RemoteFile) (string, error) {
	parts := []*genai.Part{{Text: prompt}}
	if file != nil {
		parts = append(parts, &genai.Part{
			FileData: &genai.FileData{MIMEType: file.MIMEType, FileURI: file.URI},
		})
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	resp, err := c.genai.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func toRemoteFile(f *genai.File) *RemoteFile {
	rf := &RemoteFile{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    StatePending,
	}
	switch f.State {
	case genai.FileStateActive:
		rf.State = StateActive
	case genai.FileStateFailed:
		rf.State = StateFailed
	}
	return rf
}
