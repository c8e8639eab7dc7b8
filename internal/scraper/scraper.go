// Package scraper implements the collaborator that retrieves repository
// structure data from GitHub, with a simulated implementation for local
// development and tests.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

// GitHubClient scrapes repository structure over the GitHub REST API.
type GitHubClient struct {
	httpClient *http.Client
	token      string
	baseURL    string
}

// NewGitHubClient creates a GitHubClient. An empty token is permitted for
// scraping public repos at a lower rate limit.
func NewGitHubClient(token string) *GitHubClient {
	return &GitHubClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		token:      token,
		baseURL:    "https://api.github.com",
	}
}

type githubContentEntry struct {
	Name string `json:"name"`
	Type string `json:"type"` // "file" or "dir"
	Path string `json:"path"`
}

type githubRepo struct {
	FullName string `json:"full_name"`
	Language string `json:"language"`
}

// ScrapeRepo fetches the repo's root tree and classifies it into a
// RepoStructure. When prevETag matches the current ETag, it returns
// (nil, prevETag, nil) without re-fetching the tree.
func (c *GitHubClient) ScrapeRepo(ctx context.Context, fullName, prevETag string) (*models.RepoStructure, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/repos/"+fullName+"/contents/", nil)
	if err != nil {
		return nil, "", fmt.Errorf("scraper: build request for %s: %w", fullName, err)
	}
	c.authorize(req)
	if prevETag != "" {
		req.Header.Set("If-None-Match", prevETag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("scraper: fetch %s: %w", fullName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, prevETag, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("scraper: fetch %s: unexpected status %d", fullName, resp.StatusCode)
	}

	var entries []githubContentEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, "", fmt.Errorf("scraper: decode contents for %s: %w", fullName, err)
	}

	repo, err := c.fetchRepoMeta(ctx, fullName)
	if err != nil {
		return nil, "", err
	}

	structure := classify(entries, repo.Language)
	return &structure, resp.Header.Get("ETag"), nil
}

func (c *GitHubClient) fetchRepoMeta(ctx context.Context, fullName string) (githubRepo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/repos/"+fullName, nil)
	if err != nil {
		return githubRepo{}, fmt.Errorf("scraper: build meta request for %s: %w", fullName, err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return githubRepo{}, fmt.Errorf("scraper: fetch meta for %s: %w", fullName, err)
	}
	defer resp.Body.Close()

	var repo githubRepo
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return githubRepo{}, fmt.Errorf("scraper: decode meta for %s: %w", fullName, err)
	}
	return repo, nil
}

func (c *GitHubClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
}

// ListOrgRepos lists every repository name under the given org.
func (c *GitHubClient) ListOrgRepos(ctx context.Context, org string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orgs/"+org+"/repos?per_page=100", nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: build org list request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraper: list org repos for %s: %w", org, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scraper: list org repos for %s: unexpected status %d", org, resp.StatusCode)
	}

	var repos []githubRepo
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return nil, fmt.Errorf("scraper: decode org repo list: %w", err)
	}
	names := make([]string, len(repos))
	for i, r := range repos {
		names[i] = r.FullName
	}
	return names, nil
}

func classify(entries []githubContentEntry, language string) models.RepoStructure {
	s := models.RepoStructure{PrimaryLanguage: strings.ToLower(language)}
	for _, e := range entries {
		switch e.Type {
		case "dir":
			s.Directories = append(s.Directories, e.Name)
		default:
			s.Files = append(s.Files, e.Name)
			if isConfigFile(e.Name) {
				s.ConfigFiles = append(s.ConfigFiles, e.Name)
			}
			switch e.Name {
			case "blackroad.json", "content.manifest.json":
				s.HasManifest = true
			case "type.config.json":
				s.HasTypeConfig = true
			case "deploy.config.json":
				s.HasDeployConfig = true
			}
		}
	}
	return s
}

func isConfigFile(name string) bool {
	switch {
	case strings.HasSuffix(name, ".json"),
		strings.HasSuffix(name, ".toml"),
		strings.HasSuffix(name, ".yaml"),
		strings.HasSuffix(name, ".yml"),
		name == "go.mod":
		return true
	default:
		return false
	}
}
