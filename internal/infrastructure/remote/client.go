// Package remote adapts the git platform REST API: commit history and
// settings blob reads, plus the two side-effecting promotion writes (test
// commit, production pull request). Write support targets the GitHub API
// surface; other platforms classify as unsupported.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/ports"
)

// Client talks to the git hosting REST API.
type Client struct {
	httpClient *http.Client
	logger     ports.Logger
	now        func() time.Time
}

// NewClient builds a client. A nil httpClient falls back to a 30s-timeout
// default.
func NewClient(httpClient *http.Client, log ports.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient, logger: log, now: time.Now}
}

// TestAccess verifies the credentials can read the repository.
func (c *Client) TestAccess(ctx context.Context, creds domain.Credentials, repo domain.RepoRef) error {
	var out json.RawMessage
	return c.do(ctx, creds, repo, http.MethodGet, c.repoPath(repo, ""), nil, &out)
}

// CommitHistory lists commits touching pathPrefix, newest first.
func (c *Client) CommitHistory(ctx context.Context, creds domain.Credentials, repo domain.RepoRef, pathPrefix string, limit int) ([]domain.CommitEvent, error) {
	if limit <= 0 {
		limit = 30
	}
	query := url.Values{}
	if pathPrefix != "" {
		query.Set("path", pathPrefix)
	}
	query.Set("per_page", fmt.Sprint(limit))

	var commits []struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string `json:"message"`
			Author  struct {
				Name string `json:"name"`
				Date string `json:"date"`
			} `json:"author"`
		} `json:"commit"`
		HTMLURL string `json:"html_url"`
	}
	path := c.repoPath(repo, "/commits") + "?" + query.Encode()
	if err := c.do(ctx, creds, repo, http.MethodGet, path, nil, &commits); err != nil {
		return nil, err
	}

	events := make([]domain.CommitEvent, 0, len(commits))
	for _, raw := range commits {
		event := domain.CommitEvent{
			SHA:     raw.SHA,
			Author:  raw.Commit.Author.Name,
			Message: raw.Commit.Message,
			Path:    pathPrefix,
			Kind:    classifyCommit(raw.Commit.Message),
			URL:     raw.HTMLURL,
		}
		if ts, err := time.Parse(time.RFC3339, raw.Commit.Author.Date); err == nil {
			event.Timestamp = ts
		}
		events = append(events, event)
	}
	return events, nil
}

// FetchSettings reads and decodes a settings blob from the repository.
func (c *Client) FetchSettings(ctx context.Context, creds domain.Credentials, repo domain.RepoRef, path string) (domain.PromptSettings, error) {
	var file struct {
		Content string `json:"content"`
	}
	if err := c.do(ctx, creds, repo, http.MethodGet, c.repoPath(repo, "/contents/"+path), nil, &file); err != nil {
		return domain.PromptSettings{}, err
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return domain.PromptSettings{}, fmt.Errorf("decode settings content: %w", err)
	}
	var settings domain.PromptSettings
	if err := json.Unmarshal(decoded, &settings); err != nil {
		return domain.PromptSettings{}, fmt.Errorf("parse settings blob: %w", err)
	}
	return settings, nil
}

// CommitSettings writes the settings blob to path on the default branch and
// returns the resulting commit.
func (c *Client) CommitSettings(ctx context.Context, creds domain.Credentials, repo domain.RepoRef, path, message string, settings domain.PromptSettings) (domain.CommitRef, error) {
	if err := c.requireWriteSupport(repo); err != nil {
		return domain.CommitRef{}, err
	}

	body, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return domain.CommitRef{}, fmt.Errorf("encode settings blob: %w", err)
	}

	payload := map[string]interface{}{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(body),
	}
	if sha, ok := c.existingFileSHA(ctx, creds, repo, path, ""); ok {
		payload["sha"] = sha
	}

	var result struct {
		Commit struct {
			SHA     string `json:"sha"`
			HTMLURL string `json:"html_url"`
		} `json:"commit"`
	}
	if err := c.do(ctx, creds, repo, http.MethodPut, c.repoPath(repo, "/contents/"+path), payload, &result); err != nil {
		return domain.CommitRef{}, err
	}
	return domain.CommitRef{SHA: result.Commit.SHA, URL: result.Commit.HTMLURL}, nil
}

// CreatePromotionPR creates a branch carrying the settings blob and opens a
// pull request against the default branch.
func (c *Client) CreatePromotionPR(ctx context.Context, creds domain.Credentials, repo domain.RepoRef, path, title string, settings domain.PromptSettings) (domain.PullRequest, error) {
	if err := c.requireWriteSupport(repo); err != nil {
		return domain.PullRequest{}, err
	}

	defaultBranch, baseSHA, err := c.defaultBranchHead(ctx, creds, repo)
	if err != nil {
		return domain.PullRequest{}, err
	}

	branch := fmt.Sprintf("promote-prod-%d", c.now().Unix())
	refPayload := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": baseSHA,
	}
	var ref json.RawMessage
	if err := c.do(ctx, creds, repo, http.MethodPost, c.repoPath(repo, "/git/refs"), refPayload, &ref); err != nil {
		return domain.PullRequest{}, err
	}

	body, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return domain.PullRequest{}, fmt.Errorf("encode settings blob: %w", err)
	}
	filePayload := map[string]interface{}{
		"message": title,
		"content": base64.StdEncoding.EncodeToString(body),
		"branch":  branch,
	}
	if sha, ok := c.existingFileSHA(ctx, creds, repo, path, defaultBranch); ok {
		filePayload["sha"] = sha
	}
	var put json.RawMessage
	if err := c.do(ctx, creds, repo, http.MethodPut, c.repoPath(repo, "/contents/"+path), filePayload, &put); err != nil {
		return domain.PullRequest{}, err
	}

	prPayload := map[string]string{
		"title": title,
		"body":  fmt.Sprintf("Promotes `%s` to production.", path),
		"head":  branch,
		"base":  defaultBranch,
	}
	var pr struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
	if err := c.do(ctx, creds, repo, http.MethodPost, c.repoPath(repo, "/pulls"), prPayload, &pr); err != nil {
		return domain.PullRequest{}, err
	}
	return domain.PullRequest{Number: pr.Number, URL: pr.HTMLURL}, nil
}

// PullRequestState reports whether a promotion PR is open, closed or merged.
func (c *Client) PullRequestState(ctx context.Context, creds domain.Credentials, repo domain.RepoRef, number int) (domain.PullRequestState, error) {
	var pr struct {
		Merged bool   `json:"merged"`
		State  string `json:"state"`
	}
	if err := c.do(ctx, creds, repo, http.MethodGet, c.repoPath(repo, fmt.Sprintf("/pulls/%d", number)), nil, &pr); err != nil {
		return "", err
	}
	switch {
	case pr.Merged:
		return domain.PullRequestMerged, nil
	case pr.State == "closed":
		return domain.PullRequestClosed, nil
	default:
		return domain.PullRequestOpen, nil
	}
}

func (c *Client) requireWriteSupport(repo domain.RepoRef) error {
	if repo.Platform == domain.PlatformGitHub {
		return nil
	}
	return &domain.RemoteError{
		Kind:    domain.FailureUnsupportedPlatform,
		Status:  http.StatusNotImplemented,
		Message: fmt.Sprintf("promotion writes are not supported on %s", repo.Platform),
	}
}

func (c *Client) defaultBranchHead(ctx context.Context, creds domain.Credentials, repo domain.RepoRef) (string, string, error) {
	var info struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := c.do(ctx, creds, repo, http.MethodGet, c.repoPath(repo, ""), nil, &info); err != nil {
		return "", "", err
	}
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := c.do(ctx, creds, repo, http.MethodGet, c.repoPath(repo, "/git/refs/heads/"+info.DefaultBranch), nil, &ref); err != nil {
		return "", "", err
	}
	return info.DefaultBranch, ref.Object.SHA, nil
}

func (c *Client) existingFileSHA(ctx context.Context, creds domain.Credentials, repo domain.RepoRef, path, ref string) (string, bool) {
	target := c.repoPath(repo, "/contents/"+path)
	if ref != "" {
		target += "?ref=" + url.QueryEscape(ref)
	}
	var file struct {
		SHA string `json:"sha"`
	}
	if err := c.do(ctx, creds, repo, http.MethodGet, target, nil, &file); err != nil {
		return "", false
	}
	return file.SHA, file.SHA != ""
}

func (c *Client) repoPath(repo domain.RepoRef, suffix string) string {
	return fmt.Sprintf("/repos/%s/%s%s", repo.Owner, repo.Name, suffix)
}

func (c *Client) do(ctx context.Context, creds domain.Credentials, repo domain.RepoRef, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, repo.APIBase+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "token "+creds.Token)
	if repo.Platform == domain.PlatformGitHub {
		req.Header.Set("Accept", "application/vnd.github.v3+json")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.RemoteError{Kind: domain.FailureNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.RemoteError{Kind: domain.FailureNetwork, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.logger != nil {
			c.logger.Debug("remote request failed", map[string]interface{}{
				"method": method,
				"path":   path,
				"status": resp.StatusCode,
			})
		}
		return &domain.RemoteError{
			Kind:    Classify(resp.StatusCode, raw),
			Status:  resp.StatusCode,
			Message: errorMessage(raw, resp.Status),
		}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// classifyCommit tags a remote commit by the promotion tier its message
// names. Commit messages written by this tool always carry the tier marker.
func classifyCommit(message string) domain.CommitKind {
	if strings.Contains(strings.ToLower(message), "production") {
		return domain.CommitKindProd
	}
	return domain.CommitKindTest
}

func errorMessage(body []byte, fallback string) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" && len(trimmed) < 200 {
		return trimmed
	}
	return fallback
}

var _ ports.RemoteRepository = (*Client)(nil)
