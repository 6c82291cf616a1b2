// Package remote implements the HTTP client for the project
// versioning service: authentication, project CRUD, archive transfer
// and the per-project mutual-exclusion lock.
//
// Every call carries a bounded timeout through its context plus the
// client-level timeout; transport failures surface as *NetworkError,
// authentication failures as ErrUnauthorized, lock contention as
// ErrLockConflict and vanished entities as ErrNotFound.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Service is the remote operation surface consumed by the manager.
// *Client implements it; tests substitute fakes.
type Service interface {
	FetchProjects(ctx context.Context) ([]ProjectInfo, error)
	FetchProject(ctx context.Context, id uuid.UUID) (*ProjectInfo, error)
	CreateProject(ctx context.Context, req NewProject) (*ProjectInfo, error)
	Download(ctx context.Context, id uuid.UUID) ([]byte, error)
	Upload(ctx context.Context, id uuid.UUID, message string, archive []byte) (*UploadResult, error)
	AcquireLock(ctx context.Context, id uuid.UUID) (token string, err error)
	ReleaseLock(ctx context.Context, id uuid.UUID, token string) error
}

// Compile-time check: Client implements Service.
var _ Service = (*Client)(nil)

// Client talks to one remote instance with one auth token.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient creates a Client for the given instance base URL.
func NewClient(instance, token string, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(instance)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid instance URL %q", instance)
	}
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: timeout},
	}, nil
}

// Login exchanges email/password for an auth token. It does not
// require an existing token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (token, user string, err error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := c.do(ctx, http.MethodPost, "api/v1/user/auth-token/", bytes.NewReader(body), "application/json", false)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "login"); err != nil {
		return "", "", err
	}

	var payload struct {
		Token string `json:"token"`
		User  string `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", "", fmt.Errorf("unexpected login response: %w", err)
	}
	return payload.Token, payload.User, nil
}

// VerifyToken validates the client's token against the instance and
// returns the account it belongs to.
func (c *Client) VerifyToken(ctx context.Context) (user string, err error) {
	resp, err := c.do(ctx, http.MethodGet, "api/v1/user/auth-token/", nil, "", true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "verify token"); err != nil {
		return "", err
	}

	var payload struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("unexpected token response: %w", err)
	}
	return payload.User, nil
}

// FetchProjects lists every project visible to the account.
func (c *Client) FetchProjects(ctx context.Context) ([]ProjectInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "api/v1/projects/", nil, "", true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "fetch projects"); err != nil {
		return nil, err
	}

	var payload struct {
		Data []ProjectInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("unexpected project list response: %w", err)
	}
	return payload.Data, nil
}

// FetchProject returns the metadata of a single project.
func (c *Client) FetchProject(ctx context.Context, id uuid.UUID) (*ProjectInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("api/v1/projects/%s/", id), nil, "", true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "fetch project"); err != nil {
		return nil, err
	}

	var payload struct {
		Data ProjectInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("unexpected project response: %w", err)
	}
	return &payload.Data, nil
}

// CreateProject creates a remote project and returns its metadata.
func (c *Client) CreateProject(ctx context.Context, req NewProject) (*ProjectInfo, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode project: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "api/v1/projects/", bytes.NewReader(body), "application/json", true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "create project"); err != nil {
		return nil, err
	}

	var payload struct {
		Data ProjectInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("unexpected create response: %w", err)
	}
	return &payload.Data, nil
}

// Download fetches the project archive. A project that has no
// content yet comes back as an empty archive.
func (c *Client) Download(ctx context.Context, id uuid.UUID) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("api/v1/projects/%s/download/", id), nil, "", true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "download project"); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "download project", Err: err}
	}
	return data, nil
}

// Upload pushes the packed working copy with a commit message.
// A 204 response means the remote detected no changes.
func (c *Client) Upload(ctx context.Context, id uuid.UUID, message string, archive []byte) (*UploadResult, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("message", message); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	part, err := form.CreateFormFile("artifact", fmt.Sprintf("project_%s.zip", id))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(archive); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, fmt.Sprintf("api/v1/projects/%s/upload/", id), &body, form.FormDataContentType(), true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return &UploadResult{Saved: false}, nil
	}
	if err := checkStatus(resp, "upload project"); err != nil {
		return nil, err
	}

	var payload struct {
		Data CommitInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("unexpected upload response: %w", err)
	}
	return &UploadResult{Saved: true, Commit: &payload.Data}, nil
}

// AcquireLock takes the project mutex. 409 and 423 both mean another
// collaborator holds it.
func (c *Client) AcquireLock(ctx context.Context, id uuid.UUID) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("api/v1/projects/%s/acquire/", id), nil, "", true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "acquire lock"); err != nil {
		return "", err
	}

	// The token is optional: older instances identify the holder by
	// account instead.
	var payload struct {
		Token string `json:"token"`
	}
	if resp.ContentLength != 0 {
		_ = json.NewDecoder(resp.Body).Decode(&payload)
	}
	return payload.Token, nil
}

// ReleaseLock drops the project mutex. Releasing a lock the server no
// longer attributes to us is not an error.
func (c *Client) ReleaseLock(ctx context.Context, id uuid.UUID, token string) error {
	var body io.Reader
	contentType := ""
	if token != "" {
		encoded, _ := json.Marshal(map[string]string{"token": token})
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("api/v1/projects/%s/release/", id), body, contentType, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// A conflict here means the lock is already held by someone else
	// (or was force-cleared and retaken); release is idempotent.
	if resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return checkStatus(resp, "release lock")
}

// do issues one request. Transport failures (including timeouts) come
// back as *NetworkError.
func (c *Client) do(ctx context.Context, method, route string, body io.Reader, contentType string, authed bool) (*http.Response, error) {
	target, err := c.base.Parse(route)
	if err != nil {
		return nil, fmt.Errorf("invalid route %q: %w", route, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		if c.token == "" {
			return nil, ErrNoCredentials
		}
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + route, Err: err}
	}
	return resp, nil
}

// checkStatus maps HTTP statuses onto the error taxonomy.
func checkStatus(resp *http.Response, op string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusLocked:
		return ErrLockConflict
	default:
		return &StatusError{Op: op, Status: resp.StatusCode}
	}
}
