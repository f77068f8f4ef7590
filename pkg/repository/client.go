package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	v1 "github.com/riotkit-org/backup-e2e/api/v1"
	srvErrors "github.com/riotkit-org/backup-e2e/pkg/errors"
)

// Client talks to the backup repository API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Authenticated returns a copy of the client sending token.
func (c *Client) Authenticated(token string) *Client {
	return &Client{baseURL: c.baseURL, token: token, httpClient: c.httpClient}
}

// Login exchanges credentials for an access token
// POST /api/stable/auth/login
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	zap.S().Named("repository").Debugw("login", "url", c.baseURL, "username", username)

	var resp v1.LoginResponse
	status, body, err := c.do(ctx, http.MethodPost, v1.LoginPath, v1.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return "", err
	}

	switch status {
	case http.StatusOK:
		if resp.Data.Token == "" {
			return "", srvErrors.NewLoginError(status, "response carries no token")
		}
		return resp.Data.Token, nil
	default:
		return "", srvErrors.NewLoginError(status, body)
	}
}

// WhoAmI returns the identity behind the client token
// GET /api/stable/auth/whoami
func (c *Client) WhoAmI(ctx context.Context) (v1.WhoAmIData, error) {
	var resp v1.WhoAmIResponse
	status, body, err := c.do(ctx, http.MethodGet, v1.WhoAmIPath, nil, &resp)
	if err != nil {
		return v1.WhoAmIData{}, err
	}

	switch status {
	case http.StatusOK:
		return resp.Data, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return v1.WhoAmIData{}, srvErrors.NewUnauthorizedError(body)
	default:
		return v1.WhoAmIData{}, fmt.Errorf("failed to query identity: status %d: %s", status, body)
	}
}

// Health is nil when the repository answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodGet, v1.HealthPath, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("backup repository is unhealthy: status %d: %s", status, body)
	}
	return nil
}

// do sends a request and decodes a 2xx JSON body into out. The raw body is
// returned for error reporting.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, string, error) {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, "", err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+v1.BasePath+path, reader)
	if err != nil {
		return 0, "", err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, string(raw), fmt.Errorf("malformed response from %s: %w", path, err)
		}
	}
	return resp.StatusCode, string(raw), nil
}
