package syncapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"shieldline/internal/logger"
	"shieldline/internal/model"
)

var (
	ErrNoServer        = errors.New("no sync server configured")
	ErrUnauthenticated = errors.New("not logged in")
)

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Client talks to the account server. Calls are single attempts.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    http.DefaultClient,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

// RemoteProfile is a profile as stored by the server. ID is assigned by the
// server and may differ from Profile.ID.
type RemoteProfile struct {
	ID      string        `json:"id"`
	Profile model.Profile `json:"profile"`
}

// Login returns a bearer token for the account.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", false, credentials{username, password}, &resp); err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login failed: server returned no token")
	}
	return resp.Token, nil
}

// Register creates an account. Servers that log the new user in directly
// return a token; otherwise the token is empty.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", false, credentials{username, password}, &resp); err != nil {
		return "", fmt.Errorf("registration failed: %w", err)
	}
	return resp.Token, nil
}

// PushProfiles replaces the server copy with profiles.
func (c *Client) PushProfiles(ctx context.Context, profiles []model.Profile) error {
	if profiles == nil {
		profiles = []model.Profile{}
	}
	if err := c.do(ctx, http.MethodPut, "/api/profiles", true, profiles, nil); err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	return nil
}

func (c *Client) PullProfiles(ctx context.Context) ([]RemoteProfile, error) {
	var remote []RemoteProfile
	if err := c.do(ctx, http.MethodGet, "/api/profiles", true, nil, &remote); err != nil {
		return nil, fmt.Errorf("pull failed: %w", err)
	}
	return remote, nil
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, in, out interface{}) error {
	if c.BaseURL == "" {
		return ErrNoServer
	}
	if auth && c.Token == "" {
		return ErrUnauthenticated
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	logger.Log.Debugf("Sync: %s %s", method, path)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
