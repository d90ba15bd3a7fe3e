// Package generate orchestrates one generation run: template substitution,
// streaming, and persisting the resulting record.
package generate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/ports"
)

// Request is one generation run against a project.
type Request struct {
	ProjectID    int64
	UserPrompt   string
	SystemPrompt string
	Variables    map[string]string
	Params       domain.SamplingParams
}

// Service runs generations and records every attempt. The record is saved
// even when the stream fails partway, so partial output is never lost.
type Service struct {
	Store     ports.RecordStore
	Generator ports.Generator
	Logger    ports.Logger

	// Now is overridable in tests.
	Now func() time.Time
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Substitute replaces {{name}} placeholders with their bound values. Inner
// whitespace is tolerated; unbound placeholders pass through verbatim.
func Substitute(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// Run executes one generation and returns the persisted record. The supplied
// handlers observe the live stream; the accumulated output lands on the
// record regardless of how the stream ended.
func (s *Service) Run(ctx context.Context, req Request, h ports.StreamHandlers) (domain.Record, error) {
	if s.Store == nil || s.Generator == nil || s.Logger == nil {
		return domain.Record{}, errors.New("generate.Service dependencies not satisfied")
	}

	project, err := s.Store.Project(req.ProjectID)
	if err != nil {
		return domain.Record{}, fmt.Errorf("load project: %w", err)
	}

	params := fillParams(req.Params)
	userPrompt := Substitute(req.UserPrompt, req.Variables)
	systemPrompt := Substitute(req.SystemPrompt, req.Variables)

	var output strings.Builder
	var streamFailure string
	wrapped := ports.StreamHandlers{
		OnDelta: func(text string) {
			output.WriteString(text)
			if h.OnDelta != nil {
				h.OnDelta(text)
			}
		},
		OnStatus: h.OnStatus,
		OnError: func(message string) {
			streamFailure = message
			if h.OnError != nil {
				h.OnError(message)
			}
		},
		OnDone: h.OnDone,
	}

	genErr := s.Generator.Generate(ctx, project, ports.GenerateRequest{
		UserPrompt:   userPrompt,
		SystemPrompt: systemPrompt,
		Params:       params,
	}, wrapped)

	record := domain.Record{
		ProjectID:    project.ID,
		UserPrompt:   req.UserPrompt,
		SystemPrompt: req.SystemPrompt,
		Variables:    req.Variables,
		Params:       params,
		Output:       output.String(),
		Promotion:    domain.PromotionNone,
		CreatedAt:    s.clock(),
	}

	saved, saveErr := s.Store.SaveRecord(record)
	if saveErr != nil {
		if genErr != nil {
			return record, fmt.Errorf("save record after failed generation (%v): %w", genErr, saveErr)
		}
		return record, fmt.Errorf("save record: %w", saveErr)
	}

	if genErr != nil {
		return saved, fmt.Errorf("generate: %w", genErr)
	}
	if streamFailure != "" {
		return saved, fmt.Errorf("generate: %s", streamFailure)
	}

	s.Logger.Debug("generation recorded", map[string]interface{}{
		"record":  saved.ID,
		"project": project.Name,
		"output":  len(saved.Output),
	})
	return saved, nil
}

func (s *Service) clock() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func fillParams(p domain.SamplingParams) domain.SamplingParams {
	defaults := domain.DefaultSamplingParams()
	if p.Temperature == 0 {
		p.Temperature = defaults.Temperature
	}
	if p.MaxLen == 0 {
		p.MaxLen = defaults.MaxLen
	}
	if p.TopP == 0 {
		p.TopP = defaults.TopP
	}
	if p.TopK == 0 {
		p.TopK = defaults.TopK
	}
	return p
}
