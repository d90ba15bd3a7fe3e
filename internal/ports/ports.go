// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and
// external adapters (infrastructure). Following the Ports and Adapters
// (Hexagonal) pattern, these interfaces allow the application to remain
// independent of specific implementations like databases, HTTP clients, or
// CLI frameworks.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., RemoteRepository, RecordStore)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"
	"io"

	"github.com/grimoiredev/grimoire/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.grimoire/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// RecordStore persists projects, experiment records and pending promotions.
// The promotion controller is the only mutator of promotion state; views read
// through this port and never write.
type RecordStore interface {
	CreateProject(p domain.Project) (domain.Project, error)
	Projects() ([]domain.Project, error)
	Project(id int64) (domain.Project, error)

	SaveRecord(r domain.Record) (domain.Record, error)
	Records(projectID int64) ([]domain.Record, error)
	Record(id int64) (domain.Record, error)
	UpdateRating(id int64, rating domain.Rating) error
	UpdateNotes(id int64, notes string) error
	SetPromotion(id int64, state domain.PromotionState) error
	ClearTestExcept(projectID, keepID int64) error

	SavePendingPromotion(pp domain.PendingPromotion) error
	PendingPromotions(projectID int64) ([]domain.PendingPromotion, error)
	MarkPromotionMerged(recordID int64) error

	Close() error
}

// RemoteRepository is the git platform adapter: commit history reads,
// settings blob reads/writes, and the two side-effecting promotion writes.
// Each write returns an identifier/URL suitable for user-facing linking.
type RemoteRepository interface {
	TestAccess(ctx context.Context, creds domain.Credentials, repo domain.RepoRef) error
	CommitHistory(ctx context.Context, creds domain.Credentials, repo domain.RepoRef, pathPrefix string, limit int) ([]domain.CommitEvent, error)
	FetchSettings(ctx context.Context, creds domain.Credentials, repo domain.RepoRef, path string) (domain.PromptSettings, error)
	CommitSettings(ctx context.Context, creds domain.Credentials, repo domain.RepoRef, path, message string, settings domain.PromptSettings) (domain.CommitRef, error)
	CreatePromotionPR(ctx context.Context, creds domain.Credentials, repo domain.RepoRef, path, title string, settings domain.PromptSettings) (domain.PullRequest, error)
	PullRequestState(ctx context.Context, creds domain.Credentials, repo domain.RepoRef, number int) (domain.PullRequestState, error)
}

// ResourceFetcher is a cached, deduplicated loader for one remote resource
// kind. Get returns the cached value when fresh unless forceRefresh is set;
// concurrent loads for one key collapse into a single remote call.
type ResourceFetcher[V any] interface {
	Get(ctx context.Context, key string, forceRefresh bool) (V, error)
	Invalidate(key string)
}

// SessionStore keeps authenticated git sessions. Access tokens are encrypted
// at rest; Credentials returns the decrypted form or reports the session
// invalid.
type SessionStore interface {
	Create(creds domain.Credentials) (string, error)
	Credentials(token string) (domain.Credentials, bool)
	Authenticated(token string) bool
	Delete(token string) bool
	Active() string
}

// StreamHandlers receives decoded stream events. Nil callbacks are skipped.
type StreamHandlers struct {
	OnDelta  func(text string)
	OnStatus func(status string)
	OnError  func(message string)
	OnDone   func()
}

// StreamConsumer decodes an incremental event stream into callbacks. Exactly
// one terminal callback (error or done) is guaranteed per invocation.
type StreamConsumer interface {
	Consume(ctx context.Context, r io.Reader, h StreamHandlers) error
}

// GenerateRequest carries a fully substituted prompt and its parameters.
type GenerateRequest struct {
	UserPrompt   string
	SystemPrompt string
	Params       domain.SamplingParams
}

// Generator issues a generation request and streams the response through the
// supplied handlers.
type Generator interface {
	Generate(ctx context.Context, project domain.Project, req GenerateRequest, h StreamHandlers) error
}

// ConfirmationPrompter handles interactive user confirmations before
// side-effecting remote writes.
type ConfirmationPrompter interface {
	Confirm(action, detail string) (bool, error)
	Enabled() bool
}

// Clipboard provides cross-platform clipboard integration for copying commit
// and pull-request links.
type Clipboard interface {
	Copy(text string) error
	Enabled() bool
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
