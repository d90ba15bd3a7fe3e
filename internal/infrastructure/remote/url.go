package remote

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/grimoiredev/grimoire/internal/domain"
)

// ParseRepoURL extracts the platform, owner and repository name from a
// repository URL and derives the REST API base for it.
func ParseRepoURL(repoURL string) (domain.RepoRef, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(repoURL), ".git")
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return domain.RepoRef{}, fmt.Errorf("parse repo url: %w", err)
	}
	if parsed.Host == "" {
		return domain.RepoRef{}, fmt.Errorf("invalid repository URL: %s", repoURL)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return domain.RepoRef{}, fmt.Errorf("invalid repository URL format: %s", repoURL)
	}

	ref := domain.RepoRef{
		Owner: parts[0],
		Name:  parts[1],
		URL:   trimmed,
	}

	switch {
	case strings.Contains(parsed.Host, "github.com"):
		ref.Platform = domain.PlatformGitHub
		ref.APIBase = "https://api.github.com"
	case strings.Contains(parsed.Host, "gitlab.com"):
		ref.Platform = domain.PlatformGitLab
		ref.APIBase = fmt.Sprintf("%s://%s/api/v4", parsed.Scheme, parsed.Host)
	default:
		// Self-hosted instances default to the Gitea-style API surface.
		ref.Platform = domain.PlatformGitea
		ref.APIBase = fmt.Sprintf("%s://%s/api/v1", parsed.Scheme, parsed.Host)
	}
	return ref, nil
}
