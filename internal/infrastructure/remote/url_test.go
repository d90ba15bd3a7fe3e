package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grimoiredev/grimoire/internal/domain"
)

func TestParseRepoURL(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		want    domain.RepoRef
		wantErr bool
	}{
		{
			name: "github with .git suffix",
			url:  "https://github.com/acme/prompts.git",
			want: domain.RepoRef{
				Platform: domain.PlatformGitHub,
				Owner:    "acme",
				Name:     "prompts",
				APIBase:  "https://api.github.com",
				URL:      "https://github.com/acme/prompts",
			},
		},
		{
			name: "gitlab.com",
			url:  "https://gitlab.com/acme/prompts",
			want: domain.RepoRef{
				Platform: domain.PlatformGitLab,
				Owner:    "acme",
				Name:     "prompts",
				APIBase:  "https://gitlab.com/api/v4",
				URL:      "https://gitlab.com/acme/prompts",
			},
		},
		{
			name: "self-hosted defaults to gitea API",
			url:  "https://git.internal.example/acme/prompts",
			want: domain.RepoRef{
				Platform: domain.PlatformGitea,
				Owner:    "acme",
				Name:     "prompts",
				APIBase:  "https://git.internal.example/api/v1",
				URL:      "https://git.internal.example/acme/prompts",
			},
		},
		{name: "missing repo segment", url: "https://github.com/acme", wantErr: true},
		{name: "not a url", url: "acme/prompts", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRepoURL(tc.url)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
