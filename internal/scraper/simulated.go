package scraper

import (
	"context"
	"fmt"
	"sync"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

// Simulated is a fixture Scraper for local development and tests,
// generalizing the teacher's in-memory simulated collaborator from
// Kubernetes resources to repository structures.
type Simulated struct {
	mu    sync.Mutex
	repos map[string]simulatedRepo
}

type simulatedRepo struct {
	structure models.RepoStructure
	etag      string
}

// NewSimulated creates a Simulated scraper seeded with a representative
// spread of tracked repos: one fully cohesive, one missing configs, one
// sprawling without a src directory.
func NewSimulated() *Simulated {
	s := &Simulated{repos: make(map[string]simulatedRepo)}

	s.repos["BlackRoad-OS/site-landing"] = simulatedRepo{
		etag: "w/\"1\"",
		structure: models.RepoStructure{
			Files:           []string{"README.md", "blackroad.json", "type.config.json", "deploy.config.json"},
			Directories:     []string{"src"},
			ConfigFiles:     []string{"blackroad.json", "type.config.json", "deploy.config.json"},
			HasManifest:     true,
			HasTypeConfig:   true,
			HasDeployConfig: true,
			PrimaryLanguage: "typescript",
		},
	}
	s.repos["BlackRoad-OS/legacy-docs"] = simulatedRepo{
		etag: "w/\"1\"",
		structure: models.RepoStructure{
			Files:       []string{"index.md"},
			ConfigFiles: []string{},
		},
	}
	s.repos["BlackRoad-OS/sprawling-api"] = simulatedRepo{
		etag: "w/\"1\"",
		structure: models.RepoStructure{
			Files:           []string{"a.go", "b.go", "c.go", "d.go", "e.go", "f.go", "blackroad.json"},
			ConfigFiles:     []string{"blackroad.json"},
			HasManifest:     true,
			PrimaryLanguage: "go",
		},
	}

	return s
}

// ScrapeRepo returns the fixture structure for a known repo, or an error
// for an unrecognized one.
func (s *Simulated) ScrapeRepo(ctx context.Context, fullName, prevETag string) (*models.RepoStructure, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[fullName]
	if !ok {
		return nil, "", fmt.Errorf("scraper: unknown repo %q", fullName)
	}
	if prevETag != "" && prevETag == repo.etag {
		return nil, prevETag, nil
	}
	cp := repo.structure
	return &cp, repo.etag, nil
}

// ListOrgRepos returns every fixture repo name.
func (s *Simulated) ListOrgRepos(ctx context.Context, org string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.repos))
	for name := range s.repos {
		names = append(names, name)
	}
	return names, nil
}

// Bump changes a fixture repo's ETag so the next ScrapeRepo call reports
// a change, used by tests exercising the incremental-scrape path.
func (s *Simulated) Bump(fullName, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.repos[fullName]; ok {
		r.etag = etag
		s.repos[fullName] = r
	}
}
