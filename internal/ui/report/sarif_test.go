package report

import (
	"encoding/json"
	"testing"

	coreerrors "j2k/internal/core/errors"
	"j2k/internal/core/ports"
)

func decode(t *testing.T, data []byte) sarifReport {
	t.Helper()
	var report sarifReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	return report
}

func TestGenerateSARIF_EmptyRun(t *testing.T) {
	data, err := GenerateSARIF("", "0.1.0", ports.ConvertResult{})
	if err != nil {
		t.Fatalf("GenerateSARIF returned error: %v", err)
	}
	report := decode(t, data)
	if report.Schema != sarifSchema {
		t.Errorf("$schema = %q, want %q", report.Schema, sarifSchema)
	}
	if report.Version != sarifVersion {
		t.Errorf("version = %q, want %q", report.Version, sarifVersion)
	}
	if len(report.Runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(report.Runs))
	}
	if len(report.Runs[0].Results) != 0 || len(report.Runs[0].Tool.Driver.Rules) != 0 {
		t.Errorf("expected no results and no rules, got %+v", report.Runs[0])
	}
	if report.Runs[0].AutomationDetails != nil {
		t.Error("automation details need a run id")
	}
}

func TestGenerateSARIF_DiagnosticsUseRelativeURIs(t *testing.T) {
	res := ports.ConvertResult{
		RunID: "run-1",
		Groups: []ports.GroupSummary{{
			Name: "src",
			Root: "/project/src",
			Diagnostics: []ports.Diagnostic{
				{Severity: "warning", Code: string(coreerrors.CodeUnresolvedReference), Message: `unresolved reference "x"`, File: "demo/Main.java", Line: 7},
				{Severity: "info", Code: string(coreerrors.CodeConflict), Message: "address taken", Symbol: "demo.Counter#count"},
			},
		}},
	}
	data, err := GenerateSARIF("/project", "0.1.0", res)
	if err != nil {
		t.Fatal(err)
	}
	run := decode(t, data).Runs[0]
	if run.AutomationDetails == nil || run.AutomationDetails.ID != "run-1" {
		t.Errorf("expected run id in automation details, got %+v", run.AutomationDetails)
	}
	if len(run.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(run.Results))
	}

	unresolved := run.Results[0]
	if unresolved.Level != "warning" {
		t.Errorf("level = %q, want warning", unresolved.Level)
	}
	loc := unresolved.Locations[0].PhysicalLocation
	if loc.ArtifactLocation.URI != "src/demo/Main.java" {
		t.Errorf("uri = %q, want src/demo/Main.java", loc.ArtifactLocation.URI)
	}
	if loc.Region == nil || loc.Region.StartLine != 7 {
		t.Errorf("expected region at line 7, got %+v", loc.Region)
	}

	conflict := run.Results[1]
	if conflict.Level != "note" || len(conflict.Locations) != 0 {
		t.Errorf("unexpected conflict result: %+v", conflict)
	}
	if conflict.Message.Text != "address taken (demo.Counter#count)" {
		t.Errorf("message = %q", conflict.Message.Text)
	}

	rules := run.Tool.Driver.Rules
	if len(rules) != 2 || rules[0].ID != string(coreerrors.CodeConflict) || rules[1].Name != "UnresolvedReference" {
		t.Errorf("unexpected rules: %+v", rules)
	}
}

func TestGenerateSARIF_FailedGroupWithoutDiagnostic(t *testing.T) {
	res := ports.ConvertResult{Groups: []ports.GroupSummary{{
		Name: "empty",
		Err:  coreerrors.New(coreerrors.CodeEmptyGroup, "group has no input files"),
	}}}
	data, err := GenerateSARIF("", "0.1.0", res)
	if err != nil {
		t.Fatal(err)
	}
	run := decode(t, data).Runs[0]
	if len(run.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(run.Results))
	}
	r := run.Results[0]
	if r.RuleID != string(coreerrors.CodeEmptyGroup) || r.Level != "error" {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Message.Text != "group empty failed: group has no input files" {
		t.Errorf("message = %q", r.Message.Text)
	}
}

func TestRelativeURI(t *testing.T) {
	cases := map[string]string{
		"/project/src/A.java": "src/A.java",
		"rel/A.java":          "rel/A.java",
	}
	for in, want := range cases {
		if got := relativeURI("/project", in); got != want {
			t.Errorf("relativeURI(%q) = %q, want %q", in, got, want)
		}
	}
}
