package doctor

import (
	"context"
	"fmt"

	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/ports"
)

// RepoParser resolves a repository URL into a platform reference.
type RepoParser func(rawURL string) (domain.RepoRef, error)

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Store          ports.RecordStore
	Sessions       ports.SessionStore
	Remote         ports.RemoteRepository
	ParseRepo      RepoParser
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("loaded, format %s", cfg.ConfigFormatVersion)))

	var projects []domain.Project
	if s.Store != nil {
		projects, err = s.Store.Projects()
		if err != nil {
			checks = append(checks, fail("Record store", err.Error()))
		} else {
			checks = append(checks, ok("Record store", fmt.Sprintf("projects: %d", len(projects))))
		}
	} else {
		checks = append(checks, warn("Record store", "not initialized"))
	}

	checks = append(checks, s.sessionCheck())
	checks = append(checks, s.remoteCheck(ctx, projects)...)

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) sessionCheck() domain.HealthCheck {
	if s.Sessions == nil {
		return warn("Git session", "session store not initialized")
	}
	token := s.Sessions.Active()
	if token == "" {
		return warn("Git session", "not authenticated; remote promotion disabled")
	}
	creds, okSession := s.Sessions.Credentials(token)
	if !okSession {
		return warn("Git session", "stored session is invalid; run auth login again")
	}
	return ok("Git session", fmt.Sprintf("authenticated as %s (%s)", creds.Username, creds.Platform))
}

// remoteCheck probes repository access for every repository-backed project
// using the active session.
func (s *Service) remoteCheck(ctx context.Context, projects []domain.Project) []domain.HealthCheck {
	var checks []domain.HealthCheck
	if s.Remote == nil || s.Sessions == nil || s.ParseRepo == nil {
		return checks
	}
	creds, okSession := s.Sessions.Credentials(s.Sessions.Active())

	for _, project := range projects {
		if !project.RemoteBacked() {
			continue
		}
		name := fmt.Sprintf("Repository (%s)", project.Name)

		repo, err := s.ParseRepo(project.GitRepoURL)
		if err != nil {
			checks = append(checks, fail(name, err.Error()))
			continue
		}
		if !okSession {
			checks = append(checks, warn(name, "skipped: no active git session"))
			continue
		}
		if err := s.Remote.TestAccess(ctx, creds, repo); err != nil {
			checks = append(checks, fail(name, err.Error()))
			continue
		}
		checks = append(checks, ok(name, fmt.Sprintf("%s/%s reachable", repo.Owner, repo.Name)))
	}
	return checks
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
