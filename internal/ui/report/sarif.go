// Package report renders conversion runs for external tools.
package report

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sort"

	coreerrors "j2k/internal/core/errors"
	"j2k/internal/core/ports"
)

// SARIF v2.1.0, see https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"
)

type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
	// AutomationDetails carries the history run ID.
	AutomationDetails *sarifAutomation `json:"automationDetails,omitempty"`
}

type sarifAutomation struct {
	ID string `json:"id"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

type sarifRegion struct {
	StartLine int `json:"startLine,omitempty"`
}

// ruleInfo describes each diagnostic code as a SARIF rule.
var ruleInfo = map[string]struct {
	name, text, level string
}{
	string(coreerrors.CodeUnresolvedReference):     {"UnresolvedReference", "A use site matches no declaration and is left unchanged.", "warning"},
	string(coreerrors.CodeConflict):                {"DecisionDowngraded", "A declaration's shape was downgraded to keep all files consistent.", "note"},
	string(coreerrors.CodeParseInput):              {"ParseInput", "A source file could not be turned into an annotated tree.", "error"},
	string(coreerrors.CodeClassificationAmbiguity): {"ClassificationAmbiguity", "A decision was taken with the conservative choice for lack of evidence.", "warning"},
	string(coreerrors.CodeEmptyGroup):              {"EmptyGroup", "A file group has no input files.", "error"},
	string(coreerrors.CodeNotSupported):            {"NotSupported", "A construct was copied through verbatim.", "warning"},
	string(coreerrors.CodeValidationError):         {"StrictModeRejected", "Strict mode rejected the group's diagnostics.", "error"},
}

// GenerateSARIF builds a SARIF v2.1.0 document from a conversion run. File
// URIs are made relative to projectRoot so reports are safe to share.
func GenerateSARIF(projectRoot, toolVersion string, res ports.ConvertResult) ([]byte, error) {
	used := make(map[string]bool)
	results := make([]sarifResult, 0)

	for _, g := range res.Groups {
		for _, d := range g.Diagnostics {
			used[d.Code] = true
			results = append(results, diagnosticResult(projectRoot, g.Root, d))
		}
		// A failed group without a matching diagnostic still shows up.
		if g.Err != nil && !hasErrorDiagnostic(g) {
			code := string(coreerrors.CodeOf(g.Err))
			used[code] = true
			results = append(results, sarifResult{
				RuleID:  code,
				Level:   "error",
				Message: sarifMessage{Text: "group " + g.Name + " failed: " + errorText(g.Err)},
			})
		}
	}

	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{
			Name:    "j2k",
			Version: toolVersion,
			Rules:   buildSARIFRules(used),
		}},
		Results: results,
	}
	if res.RunID != "" {
		run.AutomationDetails = &sarifAutomation{ID: res.RunID}
	}

	report := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs:    []sarifRun{run},
	}
	return json.MarshalIndent(report, "", "  ")
}

func diagnosticResult(projectRoot, groupRoot string, d ports.Diagnostic) sarifResult {
	msg := d.Message
	if d.Symbol != "" {
		msg += " (" + d.Symbol + ")"
	}
	r := sarifResult{
		RuleID:  d.Code,
		Level:   severityToLevel(d.Severity),
		Message: sarifMessage{Text: msg},
	}
	if d.File != "" {
		path := filepath.FromSlash(d.File)
		if groupRoot != "" {
			path = filepath.Join(groupRoot, path)
		}
		loc := sarifLocation{PhysicalLocation: sarifPhysicalLocation{
			ArtifactLocation: sarifArtifactLocation{
				URI:       relativeURI(projectRoot, path),
				URIBaseID: "%SRCROOT%",
			},
		}}
		if d.Line > 0 {
			loc.PhysicalLocation.Region = &sarifRegion{StartLine: d.Line}
		}
		r.Locations = []sarifLocation{loc}
	}
	return r
}

func hasErrorDiagnostic(g ports.GroupSummary) bool {
	for _, d := range g.Diagnostics {
		if d.Severity == "error" {
			return true
		}
	}
	return false
}

func errorText(err error) string {
	var de *coreerrors.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// buildSARIFRules returns only the rules that are relevant for the given
// findings, ordered by ID.
func buildSARIFRules(used map[string]bool) []sarifRule {
	ids := make([]string, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rules := make([]sarifRule, 0, len(ids))
	for _, id := range ids {
		info, ok := ruleInfo[id]
		if !ok {
			info.name, info.text, info.level = id, "Internal conversion error.", "error"
		}
		rules = append(rules, sarifRule{
			ID:               id,
			Name:             info.name,
			ShortDescription: sarifMessage{Text: info.text},
			DefaultConfig:    sarifRuleDefaultConfig{Level: info.level},
		})
	}
	return rules
}

// relativeURI converts an absolute file path to a forward-slash relative URI
// anchored at projectRoot. If the path is already relative or projectRoot is
// empty, the original path (with forward slashes) is returned.
func relativeURI(projectRoot, filePath string) string {
	if projectRoot != "" && filepath.IsAbs(filePath) {
		rel, err := filepath.Rel(projectRoot, filePath)
		if err == nil {
			filePath = rel
		}
	}
	return filepath.ToSlash(filePath)
}

func severityToLevel(severity string) string {
	switch severity {
	case "error":
		return "error"
	case "warning":
		return "warning"
	default:
		return "note"
	}
}
