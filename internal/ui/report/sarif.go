package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"weave/internal/engine/unit"
	"weave/internal/shared/util"
)

// SARIF v2.1.0 schema – see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"

	ruleIDCycle = "WEAVE001"
)

// sarifReport is the top-level SARIF document.
type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
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
	URIBaseID string `json:"uriBaseId,omitempty"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
	CharOffset  int `json:"charOffset,omitempty"`
	CharLength  int `json:"charLength,omitempty"`
}

// GenerateSARIF builds a SARIF v2.1.0 document from unit diagnostics and
// reference cycles. Local paths below projectRoot become relative URIs;
// remote units keep their URL.
func GenerateSARIF(projectRoot, toolVersion string, diagnostics []unit.Diagnostic, cycles [][]string) ([]byte, error) {
	results := make([]sarifResult, 0, len(diagnostics)+len(cycles))
	rules := make(map[string]sarifRule)

	for _, d := range diagnostics {
		id := fmt.Sprintf("TS%d", d.Code)
		level := categoryToLevel(d.Category)
		if _, ok := rules[id]; !ok {
			rules[id] = sarifRule{
				ID:               id,
				Name:             id,
				ShortDescription: sarifMessage{Text: ruleDescription(d.Code)},
				DefaultConfig:    sarifRuleDefaultConfig{Level: level},
			}
		}
		loc := fileLocation(projectRoot, d.Path)
		loc.PhysicalLocation.Region = &sarifRegion{
			StartLine:   d.Line + 1,
			StartColumn: d.Column + 1,
			CharOffset:  d.Start,
			CharLength:  d.Length,
		}
		results = append(results, sarifResult{
			RuleID:    id,
			Level:     level,
			Message:   sarifMessage{Text: d.Message},
			Locations: []sarifLocation{loc},
		})
	}

	for _, cycle := range cycles {
		if len(cycle) == 0 {
			continue
		}
		rules[ruleIDCycle] = sarifRule{
			ID:               ruleIDCycle,
			Name:             "ReferenceCycle",
			ShortDescription: sarifMessage{Text: "Reference directives form a cycle, so units are emitted in reversed input order."},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "warning"},
		}
		labels := make([]string, 0, len(cycle))
		for _, p := range cycle {
			labels = append(labels, relativeURI(projectRoot, p))
		}
		results = append(results, sarifResult{
			RuleID:    ruleIDCycle,
			Level:     "warning",
			Message:   sarifMessage{Text: "Reference cycle: " + strings.Join(labels, " → ")},
			Locations: []sarifLocation{fileLocation(projectRoot, cycle[0])},
		})
	}

	sorted := make([]sarifRule, 0, len(rules))
	for _, id := range util.SortedStringKeys(rules) {
		sorted = append(sorted, rules[id])
	}

	doc := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    "weave",
						Version: toolVersion,
						Rules:   sorted,
					},
				},
				Results: results,
			},
		},
	}
	return json.MarshalIndent(doc, "", "  ")
}

func fileLocation(projectRoot, path string) sarifLocation {
	uri := relativeURI(projectRoot, path)
	base := "%SRCROOT%"
	if uri == path {
		base = ""
	}
	return sarifLocation{
		PhysicalLocation: sarifPhysicalLocation{
			ArtifactLocation: sarifArtifactLocation{URI: uri, URIBaseID: base},
		},
	}
}

func categoryToLevel(c unit.Category) string {
	switch c {
	case unit.CategoryError:
		return "error"
	case unit.CategoryWarning:
		return "warning"
	default:
		return "note"
	}
}

func ruleDescription(code int) string {
	switch code {
	case 1005, 1109:
		return "Syntax error."
	case 2300:
		return "Duplicate identifier."
	case 6053:
		return "Referenced file could not be read."
	case 7006:
		return "Parameter implicitly has an 'any' type."
	}
	return fmt.Sprintf("Compiler diagnostic %d.", code)
}
