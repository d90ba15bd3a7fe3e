package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/grimoiredev/grimoire/internal/domain"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiRed    = "\033[31m"
)

// Renderer prints view items and promotion results. Colors are dropped when
// stdout is not a terminal.
type Renderer struct {
	out   io.Writer
	color bool
}

// NewRenderer builds a renderer for stdout.
func NewRenderer(out io.Writer) *Renderer {
	color := false
	if out == nil {
		out = os.Stdout
		color = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
	return &Renderer{out: out, color: color}
}

func (r *Renderer) paint(code, text string) string {
	if !r.color {
		return text
	}
	return code + text + ansiReset
}

// RenderView prints the merged history view.
func (r *Renderer) RenderView(project domain.Project, mode domain.ViewMode, items []domain.ViewItem) {
	fmt.Fprintf(r.out, "%s (%s view)\n", r.paint(ansiBold, project.Name), mode)
	if len(items) == 0 {
		fmt.Fprintln(r.out, "  no entries")
		return
	}
	for _, item := range items {
		switch item.Kind {
		case domain.ViewItemRecord:
			r.renderRecord(item)
		case domain.ViewItemCommit:
			r.renderCommit(item.Commit)
		}
	}
}

func (r *Renderer) renderRecord(item domain.ViewItem) {
	rec := item.Record

	marker := " "
	switch item.Slot {
	case domain.SlotPinnedTest:
		marker = r.paint(ansiYellow, "[TEST]")
	case domain.SlotPinnedProd:
		marker = r.paint(ansiGreen, "[PROD]")
	}

	id := "-"
	if rec.ID != 0 {
		id = fmt.Sprintf("#%d", rec.ID)
	}
	age := "committed"
	if !rec.CreatedAt.IsZero() {
		age = humanize.Time(rec.CreatedAt)
	}

	fmt.Fprintf(r.out, "  %-6s %-4s %s  %s%s\n",
		marker, id, age, truncate(rec.UserPrompt, 60), recordBadges(rec))
}

func recordBadges(rec *domain.Record) string {
	var badges []string
	switch rec.Rating {
	case domain.RatingUp:
		badges = append(badges, "+1")
	case domain.RatingDown:
		badges = append(badges, "-1")
	}
	if rec.Promotion == domain.PromotionProdPending {
		badges = append(badges, "PR pending")
	}
	if rec.Notes != "" {
		badges = append(badges, "notes")
	}
	if len(badges) == 0 {
		return ""
	}
	return "  (" + strings.Join(badges, ", ") + ")"
}

func (r *Renderer) renderCommit(c *domain.CommitEvent) {
	kind := "test"
	if c.Kind == domain.CommitKindProd {
		kind = r.paint(ansiGreen, "prod")
	}
	fmt.Fprintf(r.out, "  %s %s %s  %s (%s)\n",
		r.paint(ansiCyan, shortSHA(c.SHA)), kind, humanize.Time(c.Timestamp),
		truncate(c.Message, 60), c.Author)
}

// RenderPromotion prints the outcome of a promote command.
func (r *Renderer) RenderPromotion(result domain.PromotionResult) {
	switch result.State {
	case domain.PromotionTest:
		fmt.Fprintf(r.out, "Record #%d promoted to %s\n", result.Record.ID, r.paint(ansiYellow, "test"))
		if result.Commit != nil {
			fmt.Fprintf(r.out, "Commit: %s\n", result.Commit.URL)
		}
	case domain.PromotionProdPending:
		fmt.Fprintf(r.out, "Record #%d pending production merge\n", result.Record.ID)
		if result.PR != nil {
			fmt.Fprintf(r.out, "Pull request #%d: %s\n", result.PR.Number, result.PR.URL)
		}
	case domain.PromotionProdMerged:
		fmt.Fprintf(r.out, "Record #%d promoted to %s\n", result.Record.ID, r.paint(ansiGreen, "production"))
	case domain.PromotionNone:
		fmt.Fprintf(r.out, "Record #%d test tag removed\n", result.Record.ID)
	}
}

// RenderHealth prints a doctor report.
func (r *Renderer) RenderHealth(report domain.HealthReport) {
	for _, check := range report.Checks {
		status := string(check.Status)
		switch check.Status {
		case domain.HealthOK:
			status = r.paint(ansiGreen, "ok")
		case domain.HealthWarn:
			status = r.paint(ansiYellow, "warn")
		case domain.HealthError:
			status = r.paint(ansiRed, "fail")
		}
		fmt.Fprintf(r.out, "%-6s %-24s %s\n", status, check.Name, check.Details)
	}
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
