// Package promotion owns the record promotion lifecycle: test commits,
// production pull requests and merge-status synchronization.
package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/ports"
)

// ErrDeclined is returned when the user rejects the pre-write confirmation.
var ErrDeclined = errors.New("promotion declined")

const (
	testCommitMessage = "Update test prompt settings"
	prodPRTitle       = "Promote prompt settings to production"
)

// RepoParser resolves a repository URL into a platform reference.
type RepoParser func(rawURL string) (domain.RepoRef, error)

// Service is the single mutator of promotion state. Remote writes happen
// before any local mutation, so a failed write leaves the record untouched.
type Service struct {
	Store          ports.RecordStore
	Sessions       ports.SessionStore
	Remote         ports.RemoteRepository
	ConfigProvider ports.ConfigProvider
	Prompter       ports.ConfirmationPrompter
	ParseRepo      RepoParser
	Commits        ports.ResourceFetcher[[]domain.CommitEvent]
	Settings       ports.ResourceFetcher[domain.PinnedSettings]
	Pending        ports.ResourceFetcher[[]domain.PendingPromotion]
	Logger         ports.Logger

	// Now is overridable in tests.
	Now func() time.Time
}

func (s *Service) clock() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ready() error {
	if s.Store == nil || s.Logger == nil {
		return errors.New("promotion.Service dependencies not satisfied")
	}
	return nil
}

// MarkAsTest promotes a record into the test tier. On remote-backed projects
// this commits the settings blob to the repository before flagging the record
// locally; local-only projects flip the flag without any network activity.
// At most one record per project holds the test flag afterwards.
func (s *Service) MarkAsTest(ctx context.Context, recordID int64) (domain.PromotionResult, error) {
	if err := s.ready(); err != nil {
		return domain.PromotionResult{}, err
	}

	record, project, err := s.loadPair(recordID)
	if err != nil {
		return domain.PromotionResult{}, err
	}
	if record.Promotion.Prod() {
		return domain.PromotionResult{}, fmt.Errorf("record %d is in production and cannot be re-tagged as test", recordID)
	}

	result := domain.PromotionResult{Record: record, State: domain.PromotionTest}
	if record.Promotion == domain.PromotionTest {
		return result, nil
	}

	if project.RemoteBacked() {
		creds, repo, err := s.remoteTarget(project)
		if err != nil {
			return s.classified(result, err)
		}
		if err := s.confirm(ctx, "commit test settings", project); err != nil {
			return domain.PromotionResult{}, err
		}
		commit, err := s.Remote.CommitSettings(ctx, creds, repo,
			project.SettingsPath(domain.CommitKindTest), testCommitMessage, domain.SettingsFromRecord(record))
		if err != nil {
			return s.classified(result, fmt.Errorf("commit test settings: %w", err))
		}
		result.Commit = &commit
		result.RemoteWrite = true
		s.invalidateProject(project.ID)
	}

	if err := s.Store.SetPromotion(record.ID, domain.PromotionTest); err != nil {
		return result, fmt.Errorf("flag record as test: %w", err)
	}
	if err := s.Store.ClearTestExcept(project.ID, record.ID); err != nil {
		return result, fmt.Errorf("clear previous test flag: %w", err)
	}
	result.Record.Promotion = domain.PromotionTest

	s.Logger.Info("record promoted to test", map[string]interface{}{
		"record":  record.ID,
		"project": project.Name,
		"remote":  result.RemoteWrite,
	})
	return result, nil
}

// MarkAsProd promotes a test record into production. Remote-backed projects
// open a pull request and park the record in the pending state until a sync
// observes the merge; local-only projects go straight to merged since no pull
// request can exist.
func (s *Service) MarkAsProd(ctx context.Context, recordID int64) (domain.PromotionResult, error) {
	if err := s.ready(); err != nil {
		return domain.PromotionResult{}, err
	}

	record, project, err := s.loadPair(recordID)
	if err != nil {
		return domain.PromotionResult{}, err
	}
	switch record.Promotion {
	case domain.PromotionProdMerged:
		return domain.PromotionResult{}, fmt.Errorf("record %d is already in production", recordID)
	case domain.PromotionProdPending:
		return domain.PromotionResult{}, fmt.Errorf("record %d already has a pending production pull request", recordID)
	case domain.PromotionTest:
	default:
		return domain.PromotionResult{}, fmt.Errorf("record %d must be in test before production promotion", recordID)
	}

	result := domain.PromotionResult{Record: record}

	if !project.RemoteBacked() {
		if err := s.Store.SetPromotion(record.ID, domain.PromotionProdMerged); err != nil {
			return result, fmt.Errorf("flag record as production: %w", err)
		}
		result.State = domain.PromotionProdMerged
		result.Record.Promotion = domain.PromotionProdMerged
		result.Record.MergedPR = true
		s.Logger.Info("record promoted to production", map[string]interface{}{
			"record": record.ID, "project": project.Name, "remote": false,
		})
		return result, nil
	}

	creds, repo, err := s.remoteTarget(project)
	if err != nil {
		return s.classified(result, err)
	}
	if err := s.confirm(ctx, "open production pull request", project); err != nil {
		return domain.PromotionResult{}, err
	}
	pr, err := s.Remote.CreatePromotionPR(ctx, creds, repo,
		project.SettingsPath(domain.CommitKindProd), prodPRTitle, domain.SettingsFromRecord(record))
	if err != nil {
		return s.classified(result, fmt.Errorf("open production pull request: %w", err))
	}

	result.PR = &pr
	result.RemoteWrite = true
	result.State = domain.PromotionProdPending
	s.invalidateProject(project.ID)

	if err := s.Store.SetPromotion(record.ID, domain.PromotionProdPending); err != nil {
		return result, fmt.Errorf("flag record as pending production: %w", err)
	}
	if err := s.Store.SavePendingPromotion(domain.PendingPromotion{
		RecordID:  record.ID,
		ProjectID: project.ID,
		PRURL:     pr.URL,
		PRNumber:  pr.Number,
		CreatedAt: s.clock(),
	}); err != nil {
		return result, fmt.Errorf("save pending promotion: %w", err)
	}
	result.Record.Promotion = domain.PromotionProdPending

	s.Logger.Info("production pull request opened", map[string]interface{}{
		"record": record.ID, "project": project.Name, "pr": pr.Number,
	})
	return result, nil
}

// SyncMergeStatus checks every unmerged pending promotion of a project
// against the remote pull request state and flips the merged ones. The sync
// is one-way: a closed or still-open pull request never changes local state.
func (s *Service) SyncMergeStatus(ctx context.Context, projectID int64) (domain.SyncResult, error) {
	if err := s.ready(); err != nil {
		return domain.SyncResult{}, err
	}

	project, err := s.Store.Project(projectID)
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("load project: %w", err)
	}
	if !project.RemoteBacked() {
		return domain.SyncResult{}, nil
	}

	pending, err := s.pendingPromotions(ctx, projectID)
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("load pending promotions: %w", err)
	}

	creds, repo, err := s.remoteTarget(project)
	if err != nil {
		return domain.SyncResult{}, err
	}

	var result domain.SyncResult
	var firstErr error
	for _, pp := range pending {
		if pp.Merged {
			continue
		}
		result.Checked++

		state, err := s.Remote.PullRequestState(ctx, creds, repo, pp.PRNumber)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("pull request %d state: %w", pp.PRNumber, err)
			}
			continue
		}
		if state != domain.PullRequestMerged {
			continue
		}

		if err := s.Store.MarkPromotionMerged(pp.RecordID); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("mark promotion merged: %w", err)
			}
			continue
		}
		if err := s.Store.SetPromotion(pp.RecordID, domain.PromotionProdMerged); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("flag record as merged: %w", err)
			}
			continue
		}
		result.Merged++
		s.Logger.Info("production pull request merged", map[string]interface{}{
			"record": pp.RecordID, "project": project.Name, "pr": pp.PRNumber,
		})
	}

	if result.Merged > 0 {
		s.invalidateProject(projectID)
	}
	return result, firstErr
}

// RemoveTestTag clears the test flag on a local-only project. Remote-backed
// projects keep their committed settings; the tag there reflects repository
// state and is not locally revocable.
func (s *Service) RemoveTestTag(recordID int64) (domain.PromotionResult, error) {
	if err := s.ready(); err != nil {
		return domain.PromotionResult{}, err
	}

	record, project, err := s.loadPair(recordID)
	if err != nil {
		return domain.PromotionResult{}, err
	}
	if record.Promotion != domain.PromotionTest {
		return domain.PromotionResult{}, fmt.Errorf("record %d is not tagged as test", recordID)
	}
	if project.RemoteBacked() {
		return domain.PromotionResult{}, fmt.Errorf("project %q is repository-backed; commit new test settings instead of untagging", project.Name)
	}

	if err := s.Store.SetPromotion(record.ID, domain.PromotionNone); err != nil {
		return domain.PromotionResult{}, fmt.Errorf("clear test flag: %w", err)
	}
	record.Promotion = domain.PromotionNone
	return domain.PromotionResult{Record: record, State: domain.PromotionNone}, nil
}

// pendingPromotions reads through the pending cache when one is wired;
// every promotion write invalidates that cache, keeping cached reads
// consistent with the store.
func (s *Service) pendingPromotions(ctx context.Context, projectID int64) ([]domain.PendingPromotion, error) {
	if s.Pending != nil {
		return s.Pending.Get(ctx, domain.PendingCacheKey(projectID), false)
	}
	return s.Store.PendingPromotions(projectID)
}

func (s *Service) loadPair(recordID int64) (domain.Record, domain.Project, error) {
	record, err := s.Store.Record(recordID)
	if err != nil {
		return domain.Record{}, domain.Project{}, fmt.Errorf("load record: %w", err)
	}
	project, err := s.Store.Project(record.ProjectID)
	if err != nil {
		return domain.Record{}, domain.Project{}, fmt.Errorf("load project: %w", err)
	}
	return record, project, nil
}

// remoteTarget resolves the active session and repository reference, or a
// classified auth failure when no valid session exists.
func (s *Service) remoteTarget(project domain.Project) (domain.Credentials, domain.RepoRef, error) {
	if s.Sessions == nil || s.Remote == nil || s.ParseRepo == nil {
		return domain.Credentials{}, domain.RepoRef{}, errors.New("promotion.Service dependencies not satisfied")
	}

	creds, ok := s.Sessions.Credentials(s.Sessions.Active())
	if !ok {
		return domain.Credentials{}, domain.RepoRef{}, &domain.RemoteError{
			Kind:    domain.FailureAuthRequired,
			Message: "no active git session; run auth login",
		}
	}
	repo, err := s.ParseRepo(project.GitRepoURL)
	if err != nil {
		return domain.Credentials{}, domain.RepoRef{}, fmt.Errorf("parse repository url: %w", err)
	}
	return creds, repo, nil
}

func (s *Service) confirm(ctx context.Context, action string, project domain.Project) error {
	if s.Prompter == nil || !s.Prompter.Enabled() {
		return nil
	}
	if s.ConfigProvider != nil {
		cfg, err := s.ConfigProvider.Load(ctx)
		if err == nil && !cfg.Preferences.ConfirmBeforePromote {
			return nil
		}
	}
	accepted, err := s.Prompter.Confirm(action, project.GitRepoURL)
	if err != nil {
		return fmt.Errorf("confirmation prompt: %w", err)
	}
	if !accepted {
		return ErrDeclined
	}
	return nil
}

// classified attaches the reauthentication hint for auth-class remote
// failures before handing the error back.
func (s *Service) classified(result domain.PromotionResult, err error) (domain.PromotionResult, error) {
	var remoteErr *domain.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Kind.NeedsReauth() {
		result.Reauthenticate = true
	}
	return result, err
}

func (s *Service) invalidateProject(projectID int64) {
	if s.Commits != nil {
		s.Commits.Invalidate(domain.CommitsCacheKey(projectID))
	}
	if s.Settings != nil {
		s.Settings.Invalidate(domain.SettingsCacheKey(projectID))
	}
	if s.Pending != nil {
		s.Pending.Invalidate(domain.PendingCacheKey(projectID))
	}
}
