package store

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

type seedData struct {
	Projects []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Status      string `yaml:"status"`
		Priority    string `yaml:"priority"`
		Progress    int    `yaml:"progress"`
	} `yaml:"projects"`
	Blockers []struct {
		ID          string `yaml:"id"`
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		Severity    string `yaml:"severity"`
		Status      string `yaml:"status"`
	} `yaml:"blockers"`
	Research []struct {
		ID       string   `yaml:"id"`
		Title    string   `yaml:"title"`
		Topic    string   `yaml:"topic"`
		Status   string   `yaml:"status"`
		Priority string   `yaml:"priority"`
		Tags     []string `yaml:"tags"`
	} `yaml:"research"`
	Bots []struct {
		ID          string         `yaml:"id"`
		Name        string         `yaml:"name"`
		Description string         `yaml:"description"`
		Status      string         `yaml:"status"`
		Schedule    string         `yaml:"schedule"`
		Config      map[string]any `yaml:"config"`
	} `yaml:"bots"`
}

// SeedIfEmpty loads the embedded sample data when no projects exist yet.
// It reports whether anything was inserted.
func (s *Store) SeedIfEmpty(ctx context.Context) (bool, error) {
	n, err := s.CountProjects(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	var data seedData
	if err := yaml.Unmarshal(seedYAML, &data); err != nil {
		return false, fmt.Errorf("failed to parse seed data: %w", err)
	}

	for _, p := range data.Projects {
		now := s.stamp()
		_, err := s.db.Prepare(`INSERT INTO projects (id, name, description, status, priority, progress, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`).
			Run(ctx, p.ID, p.Name, p.Description, p.Status, p.Priority, p.Progress, now, now)
		if err != nil {
			return false, fmt.Errorf("failed to seed project %s: %w", p.ID, err)
		}
	}
	for _, b := range data.Blockers {
		now := s.stamp()
		_, err := s.db.Prepare(`INSERT INTO blockers (id, title, description, severity, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`).
			Run(ctx, b.ID, b.Title, b.Description, b.Severity, b.Status, now, now)
		if err != nil {
			return false, fmt.Errorf("failed to seed blocker %s: %w", b.ID, err)
		}
	}
	for _, r := range data.Research {
		now := s.stamp()
		_, err := s.db.Prepare(`INSERT INTO research (id, title, topic, status, priority, tags, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`).
			Run(ctx, r.ID, r.Title, r.Topic, r.Status, r.Priority, encodeList(r.Tags), now, now)
		if err != nil {
			return false, fmt.Errorf("failed to seed research item %s: %w", r.ID, err)
		}
	}
	for _, b := range data.Bots {
		now := s.stamp()
		_, err := s.db.Prepare(`INSERT INTO bots (id, name, description, status, schedule, config, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`).
			Run(ctx, b.ID, b.Name, b.Description, b.Status, b.Schedule, encodeMap(b.Config), now, now)
		if err != nil {
			return false, fmt.Errorf("failed to seed bot %s: %w", b.ID, err)
		}
	}

	s.logger.Info().
		Int("projects", len(data.Projects)).
		Int("blockers", len(data.Blockers)).
		Int("research", len(data.Research)).
		Int("bots", len(data.Bots)).
		Msg("seeded sample data")
	return true, nil
}
