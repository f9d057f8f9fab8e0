// Package api is the HTTP client for the document service REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"doc-manager-app/internal/models"
	apperrors "doc-manager-app/pkg/errors"
	"doc-manager-app/pkg/logger"
)

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 4 << 10

// TokenSource returns the bearer token for a request. An empty token sends
// the request unauthenticated.
type TokenSource func(ctx context.Context) (string, error)

// FileService is the document service as seen by the controllers
type FileService interface {
	List(ctx context.Context, query models.ListQuery) (models.FilePage, error)
	Stat(ctx context.Context, id string) (*models.FileRecord, error)
	Upload(ctx context.Context, req UploadRequest, progress ProgressFunc) (*models.FileRecord, error)
	Download(ctx context.Context, id string, dst io.Writer) (int64, error)
	Delete(ctx context.Context, id string) error
	Preview(ctx context.Context, id string) (*PreviewContent, error)
	PreviewURL(id string) string
}

// FolderService lists upload targets
type FolderService interface {
	ListFolders(ctx context.Context) ([]models.FolderRecord, error)
}

// Authenticator exchanges credentials for an access token
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// PreviewContent is the payload of GET /files/preview/:id
type PreviewContent struct {
	FileID      string
	ContentType string
	Data        []byte
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource sets where bearer tokens come from
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRetry sets the retry policy for idempotent reads
func WithRetry(cfg apperrors.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// Client implements FileService, FolderService and Authenticator over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	retry      apperrors.RetryConfig
	logger     *logger.Logger
}

// NewClient creates a client for the service rooted at baseURL
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidConfig, fmt.Sprintf("invalid API base URL %q", baseURL), err)
	}
	if log == nil {
		log = logger.NewWithComponent("api")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{MaxIdleConnsPerHost: 10},
		},
		retry:  apperrors.DefaultRetryConfig(),
		logger: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List fetches one page of files
func (c *Client) List(ctx context.Context, query models.ListQuery) (models.FilePage, error) {
	var page models.FilePage
	err := apperrors.RetryWithBackoff(ctx, func() error {
		page = models.FilePage{}
		return c.getJSON(ctx, "list files", "/files?"+query.Values().Encode(), &page)
	}, c.retry)
	if err != nil {
		return models.FilePage{}, err
	}
	if page.Items == nil {
		page.Items = []models.FileRecord{}
	}
	return page, nil
}

// Stat fetches a single file record
func (c *Client) Stat(ctx context.Context, id string) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := apperrors.RetryWithBackoff(ctx, func() error {
		return c.getJSON(ctx, "stat file", "/files/"+url.PathEscape(id), &rec)
	}, c.retry)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListFolders fetches the folder tree as a flat list
func (c *Client) ListFolders(ctx context.Context) ([]models.FolderRecord, error) {
	var folders []models.FolderRecord
	err := apperrors.RetryWithBackoff(ctx, func() error {
		folders = nil
		return c.getJSON(ctx, "list folders", "/folders", &folders)
	}, c.retry)
	if err != nil {
		return nil, err
	}
	return folders, nil
}

// Download streams the file body into dst and returns the bytes written
func (c *Client) Download(ctx context.Context, id string, dst io.Writer) (int64, error) {
	const op = "download file"

	resp, err := c.do(ctx, op, http.MethodGet, "/files/"+url.PathEscape(id)+"/download", nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return n, apperrors.NewAppError(apperrors.ErrDownloadFailed, fmt.Sprintf("%s: copy interrupted after %d bytes", op, n), err)
	}

	c.logger.InfoWithFields("File downloaded", map[string]interface{}{
		"file_id": id,
		"bytes":   n,
	})
	return n, nil
}

// Delete removes a file
func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.do(ctx, "delete file", http.MethodDelete, "/files/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// Preview fetches the preview payload and its content type
func (c *Client) Preview(ctx context.Context, id string) (*PreviewContent, error) {
	const op = "preview file"

	resp, err := c.do(ctx, op, http.MethodGet, previewPath(id), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(op, err)
	}
	return &PreviewContent{
		FileID:      id,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// PreviewURL is the absolute preview address for embedding
func (c *Client) PreviewURL(id string) string {
	return c.baseURL + previewPath(id)
}

// Login posts credentials and returns the access token
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	const op = "login"

	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", apperrors.NewAppError(apperrors.ErrInternalError, "encode login request", err)
	}

	resp, err := c.send(ctx, op, http.MethodPost, "/auth/login", bytes.NewReader(body), "application/json", false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.NewAppError(apperrors.ErrBackendError, "login: malformed response", err)
	}
	if out.AccessToken == "" {
		return "", apperrors.NewAppError(apperrors.ErrBackendError, "login: response has no access token", nil)
	}

	c.logger.InfoWithOperation(op, "Signed in")
	return out.AccessToken, nil
}

func previewPath(id string) string {
	return "/files/preview/" + url.PathEscape(id)
}

func (c *Client) getJSON(ctx context.Context, op, path string, out interface{}) error {
	resp, err := c.do(ctx, op, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewAppError(apperrors.ErrBackendError, op+": malformed response", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	return c.send(ctx, op, method, path, body, contentType, true)
}

// send performs one request. Non-2xx responses are closed and returned as
// status errors; otherwise the caller owns resp.Body.
func (c *Client) send(ctx context.Context, op, method, path string, body io.Reader, contentType string, auth bool) (*http.Response, error) {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrInternalError, op+": build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if auth && c.tokens != nil {
		token, err := c.tokens(ctx)
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrUnauthorized, op+": no session token", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnWithError(op+" request failed", err)
		return nil, c.transportError(op, err)
	}

	c.logger.DebugWithFields("Request completed", map[string]interface{}{
		"operation":   op,
		"method":      method,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, apperrors.NewStatusError(resp.StatusCode, op, readErrorBody(resp.Body))
	}
	return resp, nil
}

// transportError classifies a round-trip failure, defaulting to a network error
func (c *Client) transportError(op string, err error) *apperrors.AppError {
	classified := apperrors.ClassifyError(err)
	code := classified.Code
	if code == apperrors.ErrUnknownError {
		code = apperrors.ErrNetworkError
	}
	return apperrors.NewAppError(code, fmt.Sprintf("%s: %s", op, classified.Message), err)
}

// readErrorBody extracts a message from a JSON error body, falling back to raw text
func readErrorBody(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return string(raw)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
