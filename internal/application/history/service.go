package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/ports"
)

// Service assembles the merged history view for one project. Reads only; it
// never mutates promotion state.
type Service struct {
	Store    ports.RecordStore
	Sessions ports.SessionStore
	Commits  ports.ResourceFetcher[[]domain.CommitEvent]
	Settings ports.ResourceFetcher[domain.PinnedSettings]
	Logger   ports.Logger
}

// View returns the ordered view for projectID in mode. forceRefresh bypasses
// the remote cache; it has no effect on local mode.
func (s *Service) View(ctx context.Context, projectID int64, mode domain.ViewMode, forceRefresh bool) ([]domain.ViewItem, error) {
	if s.Store == nil || s.Logger == nil {
		return nil, errors.New("history.Service dependencies not satisfied")
	}

	project, err := s.Store.Project(projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	if mode == domain.ViewRemote {
		return s.remoteView(ctx, project, forceRefresh)
	}
	return s.localView(ctx, project)
}

func (s *Service) localView(ctx context.Context, project domain.Project) ([]domain.ViewItem, error) {
	records, err := s.Store.Records(project.ID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	pins := DerivePins(records)
	if project.RemoteBacked() {
		pins = s.fillPinsFromRemote(ctx, project, pins)
	}
	return Merge(records, nil, pins, domain.ViewLocal), nil
}

func (s *Service) remoteView(ctx context.Context, project domain.Project, forceRefresh bool) ([]domain.ViewItem, error) {
	if !project.RemoteBacked() {
		return nil, fmt.Errorf("project %q has no git repository", project.Name)
	}
	if s.Commits == nil {
		return nil, errors.New("history.Service dependencies not satisfied")
	}

	commits, err := s.Commits.Get(ctx, domain.CommitsCacheKey(project.ID), forceRefresh)
	if err != nil {
		return nil, fmt.Errorf("fetch commit history: %w", err)
	}
	return Merge(nil, commits, domain.Pins{}, domain.ViewRemote), nil
}

// fillPinsFromRemote synthesizes pinned slots from the committed settings
// blobs when no local record carries the promotion flag. Best effort: a
// remote failure degrades to whatever the local records provide.
func (s *Service) fillPinsFromRemote(ctx context.Context, project domain.Project, pins domain.Pins) domain.Pins {
	if (pins.Test != nil && pins.Prod != nil) || s.Settings == nil {
		return pins
	}
	if s.Sessions == nil || s.Sessions.Active() == "" {
		return pins
	}

	remote, err := s.Settings.Get(ctx, domain.SettingsCacheKey(project.ID), false)
	if err != nil {
		s.Logger.Debug("pinned settings fetch failed", map[string]interface{}{
			"project": project.Name,
			"error":   err.Error(),
		})
		return pins
	}
	if pins.Test == nil && remote.Test != nil {
		pins.Test = recordFromSettings(project.ID, *remote.Test, domain.PromotionTest)
	}
	if pins.Prod == nil && remote.Prod != nil {
		pins.Prod = recordFromSettings(project.ID, *remote.Prod, domain.PromotionProdMerged)
	}
	return pins
}

func recordFromSettings(projectID int64, s domain.PromptSettings, state domain.PromotionState) *domain.Record {
	createdAt, _ := time.Parse(time.RFC3339, s.CreatedAt)
	return &domain.Record{
		ProjectID:    projectID,
		UserPrompt:   s.UserPrompt,
		SystemPrompt: s.SystemPrompt,
		Variables:    s.Variables,
		Params: domain.SamplingParams{
			Temperature: s.Temperature,
			MaxLen:      s.MaxLen,
			TopP:        s.TopP,
			TopK:        s.TopK,
		},
		Promotion: state,
		MergedPR:  state == domain.PromotionProdMerged,
		CreatedAt: createdAt,
	}
}
