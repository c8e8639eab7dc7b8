package reposync

import (
	"testing"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

func TestScoreFullyCohesiveRepo(t *testing.T) {
	s := models.RepoStructure{
		Files:           []string{"README.md", "main.go"},
		Directories:     []string{"src"},
		ConfigFiles:     []string{"go.mod"},
		HasManifest:     true,
		HasTypeConfig:   true,
		HasDeployConfig: true,
		PrimaryLanguage: "go",
	}

	got := Score(s)
	if got.Overall != 100 {
		t.Errorf("expected overall score 100, got %d", got.Overall)
	}
	if len(got.Issues) != 0 {
		t.Errorf("expected no issues, got %v", got.Issues)
	}
}

func TestScoreMissingManifest(t *testing.T) {
	s := models.RepoStructure{
		Files:           []string{"README.md"},
		Directories:     []string{"src"},
		HasTypeConfig:   true,
		HasDeployConfig: true,
	}

	got := Score(s)
	if got.Config != 70 {
		t.Errorf("expected config score 70, got %d", got.Config)
	}
	if len(got.Issues) != 1 {
		t.Fatalf("expected exactly one issue, got %d", len(got.Issues))
	}
	if got.Issues[0].Severity != models.SeverityWarning {
		t.Errorf("expected warning severity for missing manifest, got %q", got.Issues[0].Severity)
	}
	if !got.Issues[0].AutoFixable {
		t.Errorf("expected missing manifest to be auto-fixable")
	}
}

func TestScoreSprawlingRepoWithoutSrc(t *testing.T) {
	s := models.RepoStructure{
		Files:           []string{"README.md", "a.go", "b.go", "c.go", "d.go", "e.go", "f.go"},
		HasManifest:     true,
		HasTypeConfig:   true,
		HasDeployConfig: true,
	}

	got := Score(s)
	if got.Structure != 80 {
		t.Errorf("expected structure score 80 (no src dir with too many top-level files), got %d", got.Structure)
	}
}

func TestScoreMissingEverything(t *testing.T) {
	got := Score(models.RepoStructure{})
	if got.Overall != 79 {
		t.Errorf("expected overall score 79, got %d", got.Overall)
	}
}

func TestScoreMissingReadmeIsCaseInsensitiveAndAutoFixable(t *testing.T) {
	s := models.RepoStructure{
		Files:           []string{"main.go"},
		Directories:     []string{"src"},
		HasManifest:     true,
		HasTypeConfig:   true,
		HasDeployConfig: true,
	}

	got := Score(s)
	if len(got.Issues) != 1 {
		t.Fatalf("expected exactly one issue, got %d", len(got.Issues))
	}
	if got.Issues[0].Type != models.IssueMissingConfig {
		t.Errorf("expected missing_config issue type for absent README, got %q", got.Issues[0].Type)
	}
	if !got.Issues[0].AutoFixable {
		t.Errorf("expected missing README to be auto-fixable")
	}

	s.Files = []string{"readme.md"}
	got = Score(s)
	if len(got.Issues) != 0 {
		t.Errorf("expected lowercase readme.md to satisfy the README check, got issues %v", got.Issues)
	}
}

func TestScoreNamingAndDependenciesAlwaysFullMarks(t *testing.T) {
	s := models.RepoStructure{
		ConfigFiles:     []string{"Weird_Name.yml"},
		PrimaryLanguage: "go",
	}
	got := Score(s)
	if got.Naming != fullScore {
		t.Errorf("expected naming subscore to stay at %d, got %d", fullScore, got.Naming)
	}
	if got.Dependencies != fullScore {
		t.Errorf("expected dependencies subscore to stay at %d, got %d", fullScore, got.Dependencies)
	}
}

func TestCriticalAutoFixableFiltersBySeverityAndFixability(t *testing.T) {
	issues := []models.CohesivenessIssue{
		{Severity: models.SeverityWarning, AutoFixable: true},
		{Severity: models.SeverityCritical, AutoFixable: false},
		{Severity: models.SeverityCritical, AutoFixable: true, Message: "keep me"},
		{Severity: models.SeverityInfo, AutoFixable: true},
	}
	got := criticalAutoFixable(issues)
	if len(got) != 1 || got[0].Message != "keep me" {
		t.Errorf("expected exactly the critical+auto-fixable issue to survive, got %v", got)
	}
}
