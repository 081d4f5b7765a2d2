package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"shieldline/internal/config"
	"shieldline/internal/logger"
	"shieldline/internal/publishers"
)

// Publisher writes the subscription into a repository file through the
// contents API, creating it or updating it in place.
type Publisher struct {
	cfg    config.GitHubConfig
	client *http.Client
}

type fileRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // base64
	Sha     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type fileResponse struct {
	Sha string `json:"sha"`
}

func New(cfg config.GitHubConfig) (*Publisher, error) {
	if cfg.Token == "" || cfg.Owner == "" || cfg.Repo == "" || cfg.Path == "" {
		return nil, fmt.Errorf("github publisher requires token, owner, repo, and path")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.github.com"
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.Path = strings.TrimPrefix(cfg.Path, "/")
	return &Publisher{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (p *Publisher) fileURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", p.cfg.APIURL, p.cfg.Owner, p.cfg.Repo, p.cfg.Path)
}

func (p *Publisher) Publish(ctx context.Context, payload string) error {
	sha, err := p.currentSha(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(fileRequest{
		Message: p.cfg.Message,
		Content: base64.StdEncoding.EncodeToString([]byte(payload)),
		Sha:     sha,
		Branch:  p.cfg.Branch,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.fileURL(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	p.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	logger.Log.Debugf("GitHub: uploading %s", p.cfg.Path)
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("github upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github upload failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	return nil
}

// currentSha returns the blob sha of the existing file, or "" when the file
// does not exist yet.
func (p *Publisher) currentSha(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.fileURL(), nil)
	if err != nil {
		return "", err
	}
	p.setHeaders(req)
	if p.cfg.Branch != "" {
		q := req.URL.Query()
		q.Add("ref", p.cfg.Branch)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("github fetch failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var existing fileResponse
		if err := json.NewDecoder(resp.Body).Decode(&existing); err != nil {
			return "", fmt.Errorf("failed to parse github response: %w", err)
		}
		logger.Log.Debugf("GitHub: file exists (sha %s), updating", existing.Sha)
		return existing.Sha, nil
	case http.StatusNotFound:
		logger.Log.Debugf("GitHub: file not found, creating")
		return "", nil
	default:
		return "", fmt.Errorf("github unexpected status: %d", resp.StatusCode)
	}
}

func (p *Publisher) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
}

func init() {
	publishers.Register("github", func(cfg config.ExportConfig) (publishers.Publisher, error) {
		return New(cfg.GitHub)
	})
}
