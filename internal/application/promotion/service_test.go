package promotion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/infrastructure/remote"
	"github.com/grimoiredev/grimoire/internal/pkg/logger"
)

type stubStore struct {
	projects map[int64]domain.Project
	records  map[int64]domain.Record
	pending  map[int64]domain.PendingPromotion

	clearedFor   int64
	mergedFlags  []int64
	promotionLog []string
}

func newStubStore() *stubStore {
	return &stubStore{
		projects: map[int64]domain.Project{},
		records:  map[int64]domain.Record{},
		pending:  map[int64]domain.PendingPromotion{},
	}
}

func (s *stubStore) CreateProject(p domain.Project) (domain.Project, error) { return p, nil }
func (s *stubStore) Projects() ([]domain.Project, error)                    { return nil, nil }

func (s *stubStore) Project(id int64) (domain.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return domain.Project{}, fmt.Errorf("project %d not found", id)
	}
	return p, nil
}

func (s *stubStore) SaveRecord(r domain.Record) (domain.Record, error) { return r, nil }
func (s *stubStore) Records(int64) ([]domain.Record, error)            { return nil, nil }

func (s *stubStore) Record(id int64) (domain.Record, error) {
	r, ok := s.records[id]
	if !ok {
		return domain.Record{}, fmt.Errorf("record %d not found", id)
	}
	return r, nil
}

func (s *stubStore) UpdateRating(int64, domain.Rating) error { return nil }
func (s *stubStore) UpdateNotes(int64, string) error         { return nil }

func (s *stubStore) SetPromotion(id int64, state domain.PromotionState) error {
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("record %d not found", id)
	}
	r.Promotion = state
	if state == domain.PromotionProdMerged {
		r.MergedPR = true
	}
	s.records[id] = r
	s.promotionLog = append(s.promotionLog, fmt.Sprintf("%d:%s", id, state))
	return nil
}

func (s *stubStore) ClearTestExcept(projectID, keepID int64) error {
	s.clearedFor = keepID
	for id, r := range s.records {
		if id != keepID && r.ProjectID == projectID && r.Promotion == domain.PromotionTest {
			r.Promotion = domain.PromotionNone
			s.records[id] = r
		}
	}
	return nil
}

func (s *stubStore) SavePendingPromotion(pp domain.PendingPromotion) error {
	s.pending[pp.RecordID] = pp
	return nil
}

func (s *stubStore) PendingPromotions(projectID int64) ([]domain.PendingPromotion, error) {
	var out []domain.PendingPromotion
	for _, pp := range s.pending {
		if pp.ProjectID == projectID {
			out = append(out, pp)
		}
	}
	return out, nil
}

func (s *stubStore) MarkPromotionMerged(recordID int64) error {
	pp, ok := s.pending[recordID]
	if !ok {
		return fmt.Errorf("no pending promotion for record %d", recordID)
	}
	pp.Merged = true
	s.pending[recordID] = pp
	s.mergedFlags = append(s.mergedFlags, recordID)
	return nil
}

func (s *stubStore) Close() error { return nil }

type stubSessions struct {
	active string
	creds  domain.Credentials
}

func (s *stubSessions) Create(domain.Credentials) (string, error) { return s.active, nil }

func (s *stubSessions) Credentials(token string) (domain.Credentials, bool) {
	if token == "" || token != s.active {
		return domain.Credentials{}, false
	}
	return s.creds, true
}

func (s *stubSessions) Authenticated(token string) bool { return token != "" && token == s.active }
func (s *stubSessions) Delete(string) bool              { return false }
func (s *stubSessions) Active() string                  { return s.active }

type stubRemote struct {
	commit    domain.CommitRef
	commitErr error
	pr        domain.PullRequest
	prErr     error
	prStates  map[int]domain.PullRequestState
	stateErr  error

	commitCalls int
	prCalls     int
	stateCalls  int
}

func (r *stubRemote) TestAccess(context.Context, domain.Credentials, domain.RepoRef) error {
	return nil
}

func (r *stubRemote) CommitHistory(context.Context, domain.Credentials, domain.RepoRef, string, int) ([]domain.CommitEvent, error) {
	return nil, nil
}

func (r *stubRemote) FetchSettings(context.Context, domain.Credentials, domain.RepoRef, string) (domain.PromptSettings, error) {
	return domain.PromptSettings{}, nil
}

func (r *stubRemote) CommitSettings(context.Context, domain.Credentials, domain.RepoRef, string, string, domain.PromptSettings) (domain.CommitRef, error) {
	r.commitCalls++
	return r.commit, r.commitErr
}

func (r *stubRemote) CreatePromotionPR(context.Context, domain.Credentials, domain.RepoRef, string, string, domain.PromptSettings) (domain.PullRequest, error) {
	r.prCalls++
	return r.pr, r.prErr
}

func (r *stubRemote) PullRequestState(_ context.Context, _ domain.Credentials, _ domain.RepoRef, number int) (domain.PullRequestState, error) {
	r.stateCalls++
	if r.stateErr != nil {
		return "", r.stateErr
	}
	return r.prStates[number], nil
}

type stubFetcher[V any] struct {
	value       V
	getErr      error
	getCalls    int
	lastKey     string
	lastForce   bool
	invalidated []string
}

func (f *stubFetcher[V]) Get(_ context.Context, key string, force bool) (V, error) {
	f.getCalls++
	f.lastKey = key
	f.lastForce = force
	return f.value, f.getErr
}

func (f *stubFetcher[V]) Invalidate(key string) {
	f.invalidated = append(f.invalidated, key)
}

func newService(store *stubStore, sessions *stubSessions, rem *stubRemote) (*Service, *stubFetcher[[]domain.CommitEvent]) {
	commits := &stubFetcher[[]domain.CommitEvent]{}
	return &Service{
		Store:     store,
		Sessions:  sessions,
		Remote:    rem,
		ParseRepo: remote.ParseRepoURL,
		Commits:   commits,
		Logger:    logger.NewStd(false),
		Now:       func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}, commits
}

func localProject() domain.Project {
	return domain.Project{ID: 1, Name: "demo", ProviderID: "openai"}
}

func remoteProject() domain.Project {
	return domain.Project{ID: 1, Name: "demo", ProviderID: "openai", GitRepoURL: "https://github.com/acme/demo"}
}

func TestMarkAsTestLocalOnlyNeedsNoNetwork(t *testing.T) {
	store := newStubStore()
	store.projects[1] = localProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionNone}
	store.records[11] = domain.Record{ID: 11, ProjectID: 1, Promotion: domain.PromotionTest}
	rem := &stubRemote{}
	svc, _ := newService(store, &stubSessions{}, rem)

	result, err := svc.MarkAsTest(context.Background(), 10)
	if err != nil {
		t.Fatalf("MarkAsTest() error = %v", err)
	}
	if result.RemoteWrite {
		t.Fatal("local-only promotion must not perform a remote write")
	}
	if rem.commitCalls != 0 {
		t.Fatalf("remote commit calls = %d, want 0", rem.commitCalls)
	}
	if store.records[10].Promotion != domain.PromotionTest {
		t.Fatalf("record 10 state = %s, want test", store.records[10].Promotion)
	}
	if store.records[11].Promotion != domain.PromotionNone {
		t.Fatal("previous test record kept its flag")
	}
}

func TestMarkAsTestRemoteCommitsBeforeFlagging(t *testing.T) {
	store := newStubStore()
	store.projects[1] = remoteProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, UserPrompt: "hi", Promotion: domain.PromotionNone}
	rem := &stubRemote{commit: domain.CommitRef{SHA: "abc123", URL: "https://github.com/acme/demo/commit/abc123"}}
	sessions := &stubSessions{active: "tok", creds: domain.Credentials{Token: "secret"}}
	svc, commits := newService(store, sessions, rem)

	result, err := svc.MarkAsTest(context.Background(), 10)
	if err != nil {
		t.Fatalf("MarkAsTest() error = %v", err)
	}
	if !result.RemoteWrite || result.Commit == nil || result.Commit.SHA != "abc123" {
		t.Fatalf("result = %+v, want remote write with commit abc123", result)
	}
	if store.records[10].Promotion != domain.PromotionTest {
		t.Fatalf("record state = %s, want test", store.records[10].Promotion)
	}
	if len(commits.invalidated) == 0 || commits.invalidated[0] != domain.CommitsCacheKey(1) {
		t.Fatalf("commit cache not invalidated: %v", commits.invalidated)
	}
}

func TestMarkAsTestRemoteFailureLeavesRecordUntouched(t *testing.T) {
	store := newStubStore()
	store.projects[1] = remoteProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionNone}
	rem := &stubRemote{commitErr: &domain.RemoteError{Kind: domain.FailureAuthRequired, Status: 401, Message: "bad credentials"}}
	sessions := &stubSessions{active: "tok", creds: domain.Credentials{Token: "stale"}}
	svc, _ := newService(store, sessions, rem)

	result, err := svc.MarkAsTest(context.Background(), 10)
	if err == nil {
		t.Fatal("expected error from failed remote commit")
	}
	if !result.Reauthenticate {
		t.Fatal("auth failure should request reauthentication")
	}
	if store.records[10].Promotion != domain.PromotionNone {
		t.Fatalf("record state = %s, want unchanged none", store.records[10].Promotion)
	}
	if len(store.promotionLog) != 0 {
		t.Fatalf("promotion log = %v, want empty", store.promotionLog)
	}
}

func TestMarkAsTestWithoutSessionFailsBeforeRemoteCall(t *testing.T) {
	store := newStubStore()
	store.projects[1] = remoteProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionNone}
	rem := &stubRemote{}
	svc, _ := newService(store, &stubSessions{}, rem)

	result, err := svc.MarkAsTest(context.Background(), 10)
	if err == nil {
		t.Fatal("expected auth error without a session")
	}
	var remoteErr *domain.RemoteError
	if !errors.As(err, &remoteErr) || remoteErr.Kind != domain.FailureAuthRequired {
		t.Fatalf("error = %v, want auth_required", err)
	}
	if !result.Reauthenticate {
		t.Fatal("missing session should request reauthentication")
	}
	if rem.commitCalls != 0 {
		t.Fatal("remote must not be called without credentials")
	}
}

func TestMarkAsProdRejectsMergedWithoutNetwork(t *testing.T) {
	store := newStubStore()
	store.projects[1] = remoteProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionProdMerged, MergedPR: true}
	rem := &stubRemote{}
	sessions := &stubSessions{active: "tok", creds: domain.Credentials{Token: "secret"}}
	svc, _ := newService(store, sessions, rem)

	if _, err := svc.MarkAsProd(context.Background(), 10); err == nil {
		t.Fatal("expected rejection for already-merged record")
	}
	if rem.prCalls != 0 {
		t.Fatalf("pull request calls = %d, want 0", rem.prCalls)
	}
}

func TestMarkAsProdRequiresTestState(t *testing.T) {
	store := newStubStore()
	store.projects[1] = remoteProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionNone}
	rem := &stubRemote{}
	svc, _ := newService(store, &stubSessions{active: "tok"}, rem)

	if _, err := svc.MarkAsProd(context.Background(), 10); err == nil {
		t.Fatal("expected rejection for untested record")
	}
	if rem.prCalls != 0 {
		t.Fatal("remote must not be called for an invalid transition")
	}
}

func TestMarkAsProdLocalOnlyMergesDirectly(t *testing.T) {
	store := newStubStore()
	store.projects[1] = localProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionTest}
	svc, _ := newService(store, &stubSessions{}, &stubRemote{})

	result, err := svc.MarkAsProd(context.Background(), 10)
	if err != nil {
		t.Fatalf("MarkAsProd() error = %v", err)
	}
	if result.State != domain.PromotionProdMerged {
		t.Fatalf("state = %s, want prod_merged", result.State)
	}
	if store.records[10].Promotion != domain.PromotionProdMerged || !store.records[10].MergedPR {
		t.Fatalf("record = %+v, want merged", store.records[10])
	}
}

func TestMarkAsProdRemoteOpensPullRequest(t *testing.T) {
	store := newStubStore()
	store.projects[1] = remoteProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionTest}
	rem := &stubRemote{pr: domain.PullRequest{Number: 7, URL: "https://github.com/acme/demo/pull/7"}}
	sessions := &stubSessions{active: "tok", creds: domain.Credentials{Token: "secret"}}
	svc, _ := newService(store, sessions, rem)

	result, err := svc.MarkAsProd(context.Background(), 10)
	if err != nil {
		t.Fatalf("MarkAsProd() error = %v", err)
	}
	if result.State != domain.PromotionProdPending || result.PR == nil || result.PR.Number != 7 {
		t.Fatalf("result = %+v, want pending with PR 7", result)
	}
	if store.records[10].Promotion != domain.PromotionProdPending {
		t.Fatalf("record state = %s, want prod_pending", store.records[10].Promotion)
	}
	pp, ok := store.pending[10]
	if !ok || pp.PRNumber != 7 || pp.Merged {
		t.Fatalf("pending promotion = %+v, want unmerged PR 7", pp)
	}
}

func TestSyncMergeStatusFlipsOnlyMerged(t *testing.T) {
	store := newStubStore()
	store.projects[1] = remoteProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionProdPending}
	store.records[11] = domain.Record{ID: 11, ProjectID: 1, Promotion: domain.PromotionProdPending}
	store.records[12] = domain.Record{ID: 12, ProjectID: 1, Promotion: domain.PromotionProdPending}
	store.pending[10] = domain.PendingPromotion{RecordID: 10, ProjectID: 1, PRNumber: 5}
	store.pending[11] = domain.PendingPromotion{RecordID: 11, ProjectID: 1, PRNumber: 6}
	store.pending[12] = domain.PendingPromotion{RecordID: 12, ProjectID: 1, PRNumber: 7}
	rem := &stubRemote{prStates: map[int]domain.PullRequestState{
		5: domain.PullRequestMerged,
		6: domain.PullRequestClosed,
		7: domain.PullRequestOpen,
	}}
	sessions := &stubSessions{active: "tok", creds: domain.Credentials{Token: "secret"}}
	svc, _ := newService(store, sessions, rem)

	result, err := svc.SyncMergeStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncMergeStatus() error = %v", err)
	}
	if result.Checked != 3 || result.Merged != 1 {
		t.Fatalf("result = %+v, want 3 checked / 1 merged", result)
	}
	if store.records[10].Promotion != domain.PromotionProdMerged {
		t.Fatalf("record 10 state = %s, want prod_merged", store.records[10].Promotion)
	}
	if store.records[11].Promotion != domain.PromotionProdPending {
		t.Fatal("closed pull request must not change local state")
	}
	if store.records[12].Promotion != domain.PromotionProdPending {
		t.Fatal("open pull request must not change local state")
	}
}

func TestSyncMergeStatusReadsPendingThroughCache(t *testing.T) {
	store := newStubStore()
	store.projects[1] = remoteProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionProdPending}
	store.pending[10] = domain.PendingPromotion{RecordID: 10, ProjectID: 1, PRNumber: 5}
	rem := &stubRemote{prStates: map[int]domain.PullRequestState{5: domain.PullRequestMerged}}
	sessions := &stubSessions{active: "tok", creds: domain.Credentials{Token: "secret"}}
	svc, _ := newService(store, sessions, rem)
	pending := &stubFetcher[[]domain.PendingPromotion]{
		value: []domain.PendingPromotion{{RecordID: 10, ProjectID: 1, PRNumber: 5}},
	}
	svc.Pending = pending

	result, err := svc.SyncMergeStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncMergeStatus() error = %v", err)
	}
	if result.Merged != 1 {
		t.Fatalf("merged = %d, want 1", result.Merged)
	}
	if pending.getCalls != 1 || pending.lastKey != domain.PendingCacheKey(1) {
		t.Fatalf("pending cache reads = %d with key %q, want 1 read of %q",
			pending.getCalls, pending.lastKey, domain.PendingCacheKey(1))
	}
	if pending.lastForce {
		t.Fatal("sync must accept a cached pending list")
	}
	if len(pending.invalidated) == 0 || pending.invalidated[0] != domain.PendingCacheKey(1) {
		t.Fatalf("pending cache not invalidated after merge: %v", pending.invalidated)
	}
}

func TestSyncMergeStatusSkipsAlreadyMerged(t *testing.T) {
	store := newStubStore()
	store.projects[1] = remoteProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionProdMerged, MergedPR: true}
	store.pending[10] = domain.PendingPromotion{RecordID: 10, ProjectID: 1, PRNumber: 5, Merged: true}
	rem := &stubRemote{}
	sessions := &stubSessions{active: "tok", creds: domain.Credentials{Token: "secret"}}
	svc, _ := newService(store, sessions, rem)

	result, err := svc.SyncMergeStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncMergeStatus() error = %v", err)
	}
	if result.Checked != 0 || rem.stateCalls != 0 {
		t.Fatalf("checked = %d, state calls = %d, want 0/0", result.Checked, rem.stateCalls)
	}
}

func TestRemoveTestTagLocalOnly(t *testing.T) {
	store := newStubStore()
	store.projects[1] = localProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionTest}
	svc, _ := newService(store, &stubSessions{}, &stubRemote{})

	result, err := svc.RemoveTestTag(10)
	if err != nil {
		t.Fatalf("RemoveTestTag() error = %v", err)
	}
	if result.State != domain.PromotionNone || store.records[10].Promotion != domain.PromotionNone {
		t.Fatalf("record state = %s, want none", store.records[10].Promotion)
	}
}

func TestRemoveTestTagRejectsRemoteBacked(t *testing.T) {
	store := newStubStore()
	store.projects[1] = remoteProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionTest}
	svc, _ := newService(store, &stubSessions{}, &stubRemote{})

	if _, err := svc.RemoveTestTag(10); err == nil {
		t.Fatal("expected rejection for repository-backed project")
	}
}

type decliningPrompter struct{}

func (decliningPrompter) Confirm(string, string) (bool, error) { return false, nil }
func (decliningPrompter) Enabled() bool                        { return true }

type countingPrompter struct{ calls int }

func (p *countingPrompter) Confirm(string, string) (bool, error) {
	p.calls++
	return true, nil
}

func (p *countingPrompter) Enabled() bool { return true }

func TestPromotionWithoutSessionSkipsConfirmation(t *testing.T) {
	store := newStubStore()
	store.projects[1] = remoteProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionNone}
	store.records[11] = domain.Record{ID: 11, ProjectID: 1, Promotion: domain.PromotionTest}
	prompter := &countingPrompter{}
	svc, _ := newService(store, &stubSessions{}, &stubRemote{})
	svc.Prompter = prompter

	result, err := svc.MarkAsTest(context.Background(), 10)
	if err == nil {
		t.Fatal("expected auth error without a session")
	}
	if !result.Reauthenticate {
		t.Fatal("missing session should request reauthentication")
	}

	if _, err := svc.MarkAsProd(context.Background(), 11); err == nil {
		t.Fatal("expected auth error without a session")
	}
	if prompter.calls != 0 {
		t.Fatalf("prompter calls = %d, want none before session resolution", prompter.calls)
	}
}

func TestMarkAsTestRespectsDeclinedConfirmation(t *testing.T) {
	store := newStubStore()
	store.projects[1] = remoteProject()
	store.records[10] = domain.Record{ID: 10, ProjectID: 1, Promotion: domain.PromotionNone}
	rem := &stubRemote{}
	sessions := &stubSessions{active: "tok", creds: domain.Credentials{Token: "secret"}}
	svc, _ := newService(store, sessions, rem)
	svc.Prompter = decliningPrompter{}

	_, err := svc.MarkAsTest(context.Background(), 10)
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("error = %v, want ErrDeclined", err)
	}
	if rem.commitCalls != 0 {
		t.Fatal("declined confirmation must not reach the remote")
	}
}
