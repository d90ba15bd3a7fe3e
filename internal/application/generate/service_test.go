package generate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/pkg/logger"
	"github.com/grimoiredev/grimoire/internal/ports"
)

type stubStore struct {
	project domain.Project
	saved   []domain.Record
	saveErr error
}

func (s *stubStore) CreateProject(p domain.Project) (domain.Project, error) { return p, nil }
func (s *stubStore) Projects() ([]domain.Project, error)                    { return nil, nil }

func (s *stubStore) Project(id int64) (domain.Project, error) {
	if id != s.project.ID {
		return domain.Project{}, fmt.Errorf("project %d not found", id)
	}
	return s.project, nil
}

func (s *stubStore) SaveRecord(r domain.Record) (domain.Record, error) {
	if s.saveErr != nil {
		return domain.Record{}, s.saveErr
	}
	r.ID = int64(len(s.saved) + 1)
	s.saved = append(s.saved, r)
	return r, nil
}

func (s *stubStore) Records(int64) ([]domain.Record, error)             { return nil, nil }
func (s *stubStore) Record(int64) (domain.Record, error)                { return domain.Record{}, nil }
func (s *stubStore) UpdateRating(int64, domain.Rating) error            { return nil }
func (s *stubStore) UpdateNotes(int64, string) error                    { return nil }
func (s *stubStore) SetPromotion(int64, domain.PromotionState) error    { return nil }
func (s *stubStore) ClearTestExcept(int64, int64) error                 { return nil }
func (s *stubStore) SavePendingPromotion(domain.PendingPromotion) error { return nil }
func (s *stubStore) PendingPromotions(int64) ([]domain.PendingPromotion, error) {
	return nil, nil
}
func (s *stubStore) MarkPromotionMerged(int64) error { return nil }
func (s *stubStore) Close() error                    { return nil }

type stubGenerator struct {
	deltas  []string
	failure string
	err     error

	lastReq ports.GenerateRequest
}

func (g *stubGenerator) Generate(_ context.Context, _ domain.Project, req ports.GenerateRequest, h ports.StreamHandlers) error {
	g.lastReq = req
	if g.err != nil {
		return g.err
	}
	for _, d := range g.deltas {
		if h.OnDelta != nil {
			h.OnDelta(d)
		}
	}
	if g.failure != "" {
		if h.OnError != nil {
			h.OnError(g.failure)
		}
		return nil
	}
	if h.OnDone != nil {
		h.OnDone()
	}
	return nil
}

func TestSubstituteReplacesBoundPlaceholders(t *testing.T) {
	got := Substitute("Hello {{name}}, welcome to {{ place }}. {{missing}} stays.", map[string]string{
		"name":  "Ada",
		"place": "Grimoire",
	})
	want := "Hello Ada, welcome to Grimoire. {{missing}} stays."
	if got != want {
		t.Fatalf("Substitute() = %q, want %q", got, want)
	}
}

func TestRunStreamsAndSavesRecord(t *testing.T) {
	store := &stubStore{project: domain.Project{ID: 1, Name: "demo", GenerateURL: "http://model/generate"}}
	gen := &stubGenerator{deltas: []string{"Hel", "lo"}}
	svc := &Service{
		Store:     store,
		Generator: gen,
		Logger:    logger.NewStd(false),
		Now:       func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}

	var seen string
	doneCalls := 0
	record, err := svc.Run(context.Background(), Request{
		ProjectID:  1,
		UserPrompt: "Say hi to {{name}}",
		Variables:  map[string]string{"name": "Ada"},
	}, ports.StreamHandlers{
		OnDelta: func(text string) { seen += text },
		OnDone:  func() { doneCalls++ },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if seen != "Hello" || doneCalls != 1 {
		t.Fatalf("stream saw %q with %d done calls", seen, doneCalls)
	}
	if record.Output != "Hello" {
		t.Fatalf("record output = %q, want Hello", record.Output)
	}
	if record.UserPrompt != "Say hi to {{name}}" {
		t.Fatalf("record keeps the template, got %q", record.UserPrompt)
	}
	if gen.lastReq.UserPrompt != "Say hi to Ada" {
		t.Fatalf("generator received %q, want substituted prompt", gen.lastReq.UserPrompt)
	}
	if gen.lastReq.Params != domain.DefaultSamplingParams() {
		t.Fatalf("params = %+v, want defaults", gen.lastReq.Params)
	}
}

func TestRunSavesPartialOutputOnStreamFailure(t *testing.T) {
	store := &stubStore{project: domain.Project{ID: 1, Name: "demo"}}
	gen := &stubGenerator{deltas: []string{"partial "}, failure: "model overloaded"}
	svc := &Service{Store: store, Generator: gen, Logger: logger.NewStd(false)}

	record, err := svc.Run(context.Background(), Request{ProjectID: 1, UserPrompt: "go"}, ports.StreamHandlers{})
	if err == nil {
		t.Fatal("expected error from stream failure")
	}
	if record.Output != "partial " {
		t.Fatalf("record output = %q, want partial output preserved", record.Output)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d records, want 1", len(store.saved))
	}
}

func TestRunSavesRecordWhenGeneratorErrors(t *testing.T) {
	store := &stubStore{project: domain.Project{ID: 1, Name: "demo"}}
	gen := &stubGenerator{err: errors.New("connection refused")}
	svc := &Service{Store: store, Generator: gen, Logger: logger.NewStd(false)}

	_, err := svc.Run(context.Background(), Request{ProjectID: 1, UserPrompt: "go"}, ports.StreamHandlers{})
	if err == nil {
		t.Fatal("expected generator error")
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d records, want 1", len(store.saved))
	}
}

func TestRunKeepsExplicitParams(t *testing.T) {
	store := &stubStore{project: domain.Project{ID: 1}}
	gen := &stubGenerator{}
	svc := &Service{Store: store, Generator: gen, Logger: logger.NewStd(false)}

	params := domain.SamplingParams{Temperature: 0.2, MaxLen: 64, TopP: 0.5, TopK: 10}
	if _, err := svc.Run(context.Background(), Request{ProjectID: 1, UserPrompt: "go", Params: params}, ports.StreamHandlers{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if gen.lastReq.Params != params {
		t.Fatalf("params = %+v, want %+v", gen.lastReq.Params, params)
	}
}
