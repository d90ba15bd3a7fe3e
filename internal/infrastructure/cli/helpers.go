package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grimoiredev/grimoire/internal/app"
	"github.com/grimoiredev/grimoire/internal/domain"
)

// resolveProject accepts a numeric id or a project name.
func resolveProject(container *app.Container, arg string) (domain.Project, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return container.Store.Project(id)
	}
	projects, err := container.Store.Projects()
	if err != nil {
		return domain.Project{}, err
	}
	for _, p := range projects {
		if strings.EqualFold(p.Name, arg) {
			return p, nil
		}
	}
	return domain.Project{}, fmt.Errorf("project %q not found", arg)
}

func parseRecordID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid record id %q", arg)
	}
	return id, nil
}

// parseVars turns repeated key=value flags into a substitution map.
func parseVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid variable %q, expected name=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

func parseViewMode(value string) (domain.ViewMode, error) {
	switch strings.ToLower(value) {
	case "", string(domain.ViewLocal):
		return domain.ViewLocal, nil
	case string(domain.ViewRemote):
		return domain.ViewRemote, nil
	default:
		return "", fmt.Errorf("unknown view %q, expected local or remote", value)
	}
}
