package reposync

import (
	"math"
	"strings"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

const fullScore = 100

// Score computes a deterministic cohesiveness score for a scraped repo
// structure. Each of the four subscores starts at 100 and is reduced by
// fixed penalties for missing conventions; the overall score is the
// rounded mean of the four.
func Score(s models.RepoStructure) models.Cohesiveness {
	config := fullScore
	var issues []models.CohesivenessIssue

	if !s.HasManifest {
		config -= 30
		issues = append(issues, models.CohesivenessIssue{
			Type:        models.IssueMissingConfig,
			Severity:    models.SeverityWarning,
			Message:     "repository has no manifest file",
			Suggestion:  "add a manifest describing the content package",
			AutoFixable: true,
		})
	}
	if !s.HasTypeConfig {
		config -= 20
		issues = append(issues, models.CohesivenessIssue{
			Type:        models.IssueMissingConfig,
			Severity:    models.SeverityInfo,
			Message:     "repository has no type configuration",
			Suggestion:  "add a type config file declaring the content type",
			AutoFixable: true,
		})
	}
	if !s.HasDeployConfig {
		config -= 25
		issues = append(issues, models.CohesivenessIssue{
			Type:        models.IssueMissingConfig,
			Severity:    models.SeverityWarning,
			Message:     "repository has no deploy configuration",
			Suggestion:  "add a deploy config for the target environment",
			AutoFixable: true,
		})
	}
	if config < 0 {
		config = 0
	}

	structure := fullScore
	hasSrc := false
	for _, d := range s.Directories {
		if d == "src" {
			hasSrc = true
			break
		}
	}
	if !hasSrc && len(s.Files) > 5 {
		structure -= 20
		issues = append(issues, models.CohesivenessIssue{
			Type:        models.IssueStructureMismatch,
			Severity:    models.SeverityInfo,
			Message:     "repository has more than 5 top-level files but no src directory",
			Suggestion:  "move source files into a src directory",
			AutoFixable: false,
		})
	}
	hasReadme := false
	for _, f := range s.Files {
		if strings.EqualFold(f, "README.md") {
			hasReadme = true
			break
		}
	}
	if !hasReadme {
		structure -= 10
		issues = append(issues, models.CohesivenessIssue{
			Type:        models.IssueMissingConfig,
			Severity:    models.SeverityInfo,
			Message:     "repository has no README",
			Suggestion:  "add a README describing the repository",
			AutoFixable: true,
		})
	}
	if structure < 0 {
		structure = 0
	}

	// Naming and dependency conventions aren't enforced yet; these
	// subscores are hooks for future checks and stay at full marks.
	naming := fullScore
	dependencies := fullScore

	overall := int(math.Round(float64(structure+naming+dependencies+config) / 4))

	return models.Cohesiveness{
		Structure:    structure,
		Naming:       naming,
		Dependencies: dependencies,
		Config:       config,
		Overall:      overall,
		Issues:       issues,
	}
}

// criticalAutoFixable filters a cohesiveness issue set down to the ones
// serious and fixable enough to warrant handing off to the self-healer.
func criticalAutoFixable(issues []models.CohesivenessIssue) []models.CohesivenessIssue {
	var out []models.CohesivenessIssue
	for _, i := range issues {
		if i.Severity == models.SeverityCritical && i.AutoFixable {
			out = append(out, i)
		}
	}
	return out
}
