package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grimoiredev/grimoire/internal/application/doctor"
	"github.com/grimoiredev/grimoire/internal/application/generate"
	apphistory "github.com/grimoiredev/grimoire/internal/application/history"
	"github.com/grimoiredev/grimoire/internal/application/promotion"
	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/infrastructure/cache"
	"github.com/grimoiredev/grimoire/internal/infrastructure/config"
	genclient "github.com/grimoiredev/grimoire/internal/infrastructure/generate"
	"github.com/grimoiredev/grimoire/internal/infrastructure/history"
	"github.com/grimoiredev/grimoire/internal/infrastructure/remote"
	"github.com/grimoiredev/grimoire/internal/infrastructure/scheduler"
	"github.com/grimoiredev/grimoire/internal/infrastructure/session"
	"github.com/grimoiredev/grimoire/internal/infrastructure/stream"
	"github.com/grimoiredev/grimoire/internal/pkg/logger"
	"github.com/grimoiredev/grimoire/internal/ports"
)

// Container wires application services with infrastructure adapters.
type Container struct {
	Config           domain.Config
	ConfigLoader     *config.FileLoader
	Logger           ports.Logger
	Store            ports.RecordStore
	Sessions         ports.SessionStore
	Remote           ports.RemoteRepository
	HistoryService   *apphistory.Service
	PromotionService *promotion.Service
	GenerateService  *generate.Service
	DoctorService    *doctor.Service
	Commits          ports.ResourceFetcher[[]domain.CommitEvent]
	Pending          ports.ResourceFetcher[[]domain.PendingPromotion]
	Settings         ports.ResourceFetcher[domain.PinnedSettings]
	NewRefresher     func(run scheduler.RefreshFunc) *scheduler.Refresh
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, verbose bool) (*Container, error) {
	cfgLoader := config.NewFileLoader("")
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.NewStd(verbose)

	store, err := history.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	sessions, err := session.NewManager("")
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	remoteClient := remote.NewClient(nil, log)

	ttl := config.ParseTTL(cfg.Cache.TTL)
	commits := cache.NewFetcher(
		cache.New[[]domain.CommitEvent](ttl, cfg.Cache.MaxEntries),
		commitLoader(store, sessions, remoteClient, cfg.Remote.CommitHistoryLimit),
	)
	pending := cache.NewFetcher(
		cache.New[[]domain.PendingPromotion](ttl, cfg.Cache.MaxEntries),
		pendingLoader(store),
	)
	settings := cache.NewFetcher(
		cache.New[domain.PinnedSettings](ttl, cfg.Cache.MaxEntries),
		settingsLoader(store, sessions, remoteClient),
	)

	historyService := &apphistory.Service{
		Store:    store,
		Sessions: sessions,
		Commits:  commits,
		Settings: settings,
		Logger:   log,
	}

	promotionService := &promotion.Service{
		Store:          store,
		Sessions:       sessions,
		Remote:         remoteClient,
		ConfigProvider: cfgLoader,
		ParseRepo:      remote.ParseRepoURL,
		Commits:        commits,
		Settings:       settings,
		Pending:        pending,
		Logger:         log,
	}

	generateService := &generate.Service{
		Store:     store,
		Generator: genclient.NewClient(nil, stream.NewIngestor(log), log),
		Logger:    log,
	}

	doctorService := &doctor.Service{
		ConfigProvider: cfgLoader,
		Store:          store,
		Sessions:       sessions,
		Remote:         remoteClient,
		ParseRepo:      remote.ParseRepoURL,
	}

	interval := time.Duration(cfg.Refresh.IntervalSeconds) * time.Second
	newRefresher := func(run scheduler.RefreshFunc) *scheduler.Refresh {
		return scheduler.NewRefresh(interval, run, log)
	}

	return &Container{
		Config:           cfg,
		ConfigLoader:     cfgLoader,
		Logger:           log,
		Store:            store,
		Sessions:         sessions,
		Remote:           remoteClient,
		HistoryService:   historyService,
		PromotionService: promotionService,
		GenerateService:  generateService,
		DoctorService:    doctorService,
		Commits:          commits,
		Pending:          pending,
		Settings:         settings,
		NewRefresher:     newRefresher,
	}, nil
}

// Close releases held resources.
func (c *Container) Close() error {
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}

func commitLoader(store ports.RecordStore, sessions ports.SessionStore, client ports.RemoteRepository, limit int) cache.FetchFunc[[]domain.CommitEvent] {
	return func(ctx context.Context, key string) ([]domain.CommitEvent, error) {
		creds, repo, project, err := remoteTarget(store, sessions, key)
		if err != nil {
			return nil, err
		}
		return client.CommitHistory(ctx, creds, repo, project.Name, limit)
	}
}

// pendingLoader reads pending promotions from the local store; the cache in
// front keeps the watch loop from hammering SQLite every tick.
func pendingLoader(store ports.RecordStore) cache.FetchFunc[[]domain.PendingPromotion] {
	return func(_ context.Context, key string) ([]domain.PendingPromotion, error) {
		projectID, err := domain.ProjectIDFromCacheKey(key)
		if err != nil {
			return nil, err
		}
		return store.PendingPromotions(projectID)
	}
}

func settingsLoader(store ports.RecordStore, sessions ports.SessionStore, client ports.RemoteRepository) cache.FetchFunc[domain.PinnedSettings] {
	return func(ctx context.Context, key string) (domain.PinnedSettings, error) {
		creds, repo, project, err := remoteTarget(store, sessions, key)
		if err != nil {
			return domain.PinnedSettings{}, err
		}

		var pinned domain.PinnedSettings
		for _, kind := range []domain.CommitKind{domain.CommitKindTest, domain.CommitKindProd} {
			blob, err := client.FetchSettings(ctx, creds, repo, project.SettingsPath(kind))
			if err != nil {
				if missingFile(err) {
					continue
				}
				return domain.PinnedSettings{}, err
			}
			settings := blob
			if kind == domain.CommitKindTest {
				pinned.Test = &settings
			} else {
				pinned.Prod = &settings
			}
		}
		return pinned, nil
	}
}

func remoteTarget(store ports.RecordStore, sessions ports.SessionStore, key string) (domain.Credentials, domain.RepoRef, domain.Project, error) {
	projectID, err := domain.ProjectIDFromCacheKey(key)
	if err != nil {
		return domain.Credentials{}, domain.RepoRef{}, domain.Project{}, err
	}
	project, err := store.Project(projectID)
	if err != nil {
		return domain.Credentials{}, domain.RepoRef{}, domain.Project{}, err
	}
	if !project.RemoteBacked() {
		return domain.Credentials{}, domain.RepoRef{}, domain.Project{}, fmt.Errorf("project %q has no git repository", project.Name)
	}
	creds, ok := sessions.Credentials(sessions.Active())
	if !ok {
		return domain.Credentials{}, domain.RepoRef{}, domain.Project{}, &domain.RemoteError{
			Kind:    domain.FailureAuthRequired,
			Message: "no active git session; run auth login",
		}
	}
	repo, err := remote.ParseRepoURL(project.GitRepoURL)
	if err != nil {
		return domain.Credentials{}, domain.RepoRef{}, domain.Project{}, err
	}
	return creds, repo, project, nil
}

func missingFile(err error) bool {
	var remoteErr *domain.RemoteError
	return errors.As(err, &remoteErr) && remoteErr.Status == 404
}
