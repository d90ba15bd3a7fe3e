package domain

import "time"

// Platform identifies the git hosting flavor behind a repository URL.
type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
	PlatformGitea  Platform = "gitea"
)

// RepoRef is a parsed repository reference.
type RepoRef struct {
	Platform Platform
	Owner    string
	Name     string
	APIBase  string
	URL      string
}

// CommitKind classifies a remote commit by the promotion tier it belongs to.
type CommitKind string

const (
	CommitKindTest CommitKind = "test"
	CommitKindProd CommitKind = "prod"
)

// CommitEvent is a remote history item. Produced only by remote reads and
// immutable once fetched.
type CommitEvent struct {
	SHA       string     `json:"sha"`
	Author    string     `json:"author"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
	Path      string     `json:"path"`
	Kind      CommitKind `json:"kind"`
	URL       string     `json:"url"`
}

// CommitRef is returned by a successful test-commit write for user-facing
// linking.
type CommitRef struct {
	SHA string
	URL string
}

// PullRequest is returned by a successful promotion PR write.
type PullRequest struct {
	Number int
	URL    string
}

// PullRequestState is the remote view of a promotion PR.
type PullRequestState string

const (
	PullRequestOpen   PullRequestState = "open"
	PullRequestClosed PullRequestState = "closed"
	PullRequestMerged PullRequestState = "merged"
)

// PendingPromotion links a record to the pull request its prod promotion
// opened. It flips to merged only through an explicit sync, never locally
// inferred.
type PendingPromotion struct {
	RecordID  int64     `json:"record_id"`
	ProjectID int64     `json:"project_id"`
	PRURL     string    `json:"pr_url"`
	PRNumber  int       `json:"pr_number"`
	Merged    bool      `json:"merged"`
	CreatedAt time.Time `json:"created_at"`
}

// PromptSettings is the free-form settings blob written to the repository on
// promotion (prompt_test.json / prompt_prod.json).
type PromptSettings struct {
	UserPrompt   string            `json:"user_prompt"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Temperature  float64           `json:"temperature,omitempty"`
	MaxLen       int               `json:"max_len,omitempty"`
	TopP         float64           `json:"top_p,omitempty"`
	TopK         int               `json:"top_k,omitempty"`
	Variables    map[string]string `json:"variables,omitempty"`
	CreatedAt    string            `json:"created_at,omitempty"`
}

// PinnedSettings are the settings blobs currently committed to a repository,
// one per promotion tier. A nil tier means the file does not exist remotely.
type PinnedSettings struct {
	Test *PromptSettings
	Prod *PromptSettings
}

// SettingsFromRecord projects a record into the settings blob shape.
func SettingsFromRecord(r Record) PromptSettings {
	return PromptSettings{
		UserPrompt:   r.UserPrompt,
		SystemPrompt: r.SystemPrompt,
		Temperature:  r.Params.Temperature,
		MaxLen:       r.Params.MaxLen,
		TopP:         r.Params.TopP,
		TopK:         r.Params.TopK,
		Variables:    r.Variables,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
}
