package report

import (
	"encoding/json"
	"strings"
	"testing"

	"weave/internal/engine/topology"
	"weave/internal/engine/unit"
)

func TestGenerateSARIF_EmptyResults(t *testing.T) {
	data, err := GenerateSARIF("", "0.0.1", nil, nil)
	if err != nil {
		t.Fatalf("GenerateSARIF returned error: %v", err)
	}
	var doc sarifReport
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc.Schema != sarifSchema || doc.Version != sarifVersion {
		t.Errorf("unexpected header %q %q", doc.Schema, doc.Version)
	}
	if len(doc.Runs) != 1 || len(doc.Runs[0].Results) != 0 {
		t.Fatalf("expected one empty run, got %+v", doc.Runs)
	}
	if doc.Runs[0].Tool.Driver.Name != "weave" || doc.Runs[0].Tool.Driver.Version != "0.0.1" {
		t.Errorf("unexpected driver %+v", doc.Runs[0].Tool.Driver)
	}
}

func TestGenerateSARIF_Diagnostics(t *testing.T) {
	diags := []unit.Diagnostic{
		{Path: "/project/src/app.ts", Message: "';' expected.", Code: 1005, Category: unit.CategoryError, Start: 14, Length: 1, Line: 1, Column: 3},
		{Path: "http://cdn.example.com/lib.ts", Message: "Parameter 'x' implicitly has an 'any' type.", Code: 7006, Category: unit.CategoryWarning},
		{Path: "/project/src/other.ts", Message: "';' expected.", Code: 1005},
	}
	data, err := GenerateSARIF("/project", "1.0.0", diags, nil)
	if err != nil {
		t.Fatal(err)
	}
	var doc sarifReport
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}

	run := doc.Runs[0]
	if len(run.Tool.Driver.Rules) != 2 {
		t.Fatalf("expected one rule per code, got %+v", run.Tool.Driver.Rules)
	}
	if run.Tool.Driver.Rules[0].ID != "TS1005" || run.Tool.Driver.Rules[1].ID != "TS7006" {
		t.Errorf("rules not sorted by id: %+v", run.Tool.Driver.Rules)
	}
	if len(run.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(run.Results))
	}

	first := run.Results[0]
	loc := first.Locations[0].PhysicalLocation
	if first.Level != "error" || loc.ArtifactLocation.URI != "src/app.ts" || loc.ArtifactLocation.URIBaseID != "%SRCROOT%" {
		t.Errorf("unexpected first result %+v", first)
	}
	if loc.Region == nil || loc.Region.StartLine != 2 || loc.Region.StartColumn != 4 || loc.Region.CharOffset != 14 {
		t.Errorf("unexpected region %+v", loc.Region)
	}

	remote := run.Results[1]
	if remote.Level != "warning" || remote.Locations[0].PhysicalLocation.ArtifactLocation.URI != "http://cdn.example.com/lib.ts" {
		t.Errorf("unexpected remote result %+v", remote)
	}
	if remote.Locations[0].PhysicalLocation.ArtifactLocation.URIBaseID != "" {
		t.Errorf("remote URIs must not be anchored at the source root")
	}
}

func TestGenerateSARIF_Cycles(t *testing.T) {
	data, err := GenerateSARIF("/p", "1", nil, [][]string{{"/p/a.ts", "/p/b.ts"}, {}})
	if err != nil {
		t.Fatal(err)
	}
	var doc sarifReport
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	results := doc.Runs[0].Results
	if len(results) != 1 {
		t.Fatalf("expected 1 cycle result, got %d", len(results))
	}
	if results[0].RuleID != ruleIDCycle || !strings.Contains(results[0].Message.Text, "a.ts → b.ts") {
		t.Errorf("unexpected cycle result %+v", results[0])
	}
}

func TestGenerateMermaid(t *testing.T) {
	nodes := []topology.Node{
		{Path: "/p/a.ts", References: []string{"/p/b.ts"}},
		{Path: "/p/b.ts", References: []string{"/p/a.ts", "/p/gone.ts"}},
		{Path: "/p/c.ts", References: []string{"/p/a.ts"}},
	}
	out := GenerateMermaid("/p", nodes, [][]string{{"/p/a.ts", "/p/b.ts"}})

	for _, want := range []string{
		"flowchart LR\n",
		"  a_ts[\"a.ts\"]\n",
		"  gone_ts[\"gone.ts\"]:::missing\n",
		"  a_ts --> b_ts\n",
		"  b_ts -.-> gone_ts\n",
		"  c_ts --> a_ts\n",
		"classDef missing",
		"linkStyle 0,1 stroke:#dc2626",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestMakeIDs_Deduplicates(t *testing.T) {
	ids := makeIDs([]string{"a.ts", "a_ts", "1.ts", ""})
	if ids["a.ts"] != "a_ts" || ids["a_ts"] != "a_ts_2" {
		t.Errorf("unexpected ids %v", ids)
	}
	if ids["1.ts"] != "u_1_ts" || ids[""] != "u" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestRelativeURI(t *testing.T) {
	cases := []struct{ root, path, want string }{
		{"/p", "/p/src/a.ts", "src/a.ts"},
		{"/p", "/other/a.ts", "/other/a.ts"},
		{"", "/p/a.ts", "/p/a.ts"},
		{"/p", "www.example.com/a.ts", "www.example.com/a.ts"},
	}
	for _, c := range cases {
		if got := relativeURI(c.root, c.path); got != c.want {
			t.Errorf("relativeURI(%q, %q) = %q, want %q", c.root, c.path, got, c.want)
		}
	}
}
