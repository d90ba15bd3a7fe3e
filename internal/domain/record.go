// Package domain defines core business entities and value objects for Grimoire.
//
// The domain layer is independent of infrastructure concerns and represents
// pure business logic and data structures: experiment records, promotion
// states, remote commit events, and merged-view items.
package domain

import "time"

// Project groups experiment records against one model endpoint. A project may
// optionally be backed by a git repository; promotion then performs remote
// writes against it.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	GenerateURL string    `json:"generate_url"`
	ProviderID  string    `json:"provider_id"`
	GitRepoURL  string    `json:"git_repo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RemoteBacked reports whether promotions on this project perform remote writes.
func (p Project) RemoteBacked() bool {
	return p.GitRepoURL != ""
}

// SettingsPath is the repository path of the settings blob for a promotion
// tier: <project>/<provider>/prompt_<tier>.json.
func (p Project) SettingsPath(kind CommitKind) string {
	return p.Name + "/" + p.ProviderID + "/prompt_" + string(kind) + ".json"
}

// Rating captures user feedback on a record.
type Rating string

const (
	RatingNone Rating = ""
	RatingUp   Rating = "up"
	RatingDown Rating = "down"
)

// PromotionState tracks where a record sits in the promotion lifecycle.
// The only transitions are None -> Test -> ProdPending -> ProdMerged, plus
// Test -> None via untag on local-only projects.
type PromotionState string

const (
	PromotionNone        PromotionState = "none"
	PromotionTest        PromotionState = "test"
	PromotionProdPending PromotionState = "prod_pending"
	PromotionProdMerged  PromotionState = "prod_merged"
)

// Prod reports whether the state is one of the production states.
func (s PromotionState) Prod() bool {
	return s == PromotionProdPending || s == PromotionProdMerged
}

// Record is a single experiment entry: prompt, parameters, output and
// user-facing metadata. Owned by the local record store.
type Record struct {
	ID           int64             `json:"id"`
	ProjectID    int64             `json:"project_id"`
	UserPrompt   string            `json:"user_prompt"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Variables    map[string]string `json:"variables,omitempty"`
	Params       SamplingParams    `json:"params"`
	Output       string            `json:"output,omitempty"`
	Rating       Rating            `json:"rating,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	Promotion    PromotionState    `json:"promotion"`
	MergedPR     bool              `json:"merged_pr"`
	CreatedAt    time.Time         `json:"created_at"`
}

// SamplingParams are the generation parameters attached to every record.
type SamplingParams struct {
	Temperature float64 `json:"temperature"`
	MaxLen      int     `json:"max_len"`
	TopP        float64 `json:"top_p"`
	TopK        int     `json:"top_k"`
}

// DefaultSamplingParams mirrors the generation defaults applied when a field
// is left unset.
func DefaultSamplingParams() SamplingParams {
	return SamplingParams{Temperature: 0.7, MaxLen: 1000, TopP: 0.9, TopK: 50}
}
