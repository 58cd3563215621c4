package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/searchql/internal/criterion"
)

// Snapshot renders a result as canonical JSON for golden comparison.
//
// Each case records its query and either the canonical criterion document
// or the failing stage and error code, plus matches when a search ran.
func Snapshot(name, tenant string, result *Result) ([]byte, error) {
	cases := make([]any, len(result.Cases))
	for i, cr := range result.Cases {
		doc := map[string]any{"query": cr.Query}
		if cr.Criterion != nil {
			crit, err := criterion.Document(cr.Criterion)
			if err != nil {
				return nil, err
			}
			doc["criterion"] = crit
		} else {
			doc["error"] = map[string]any{"stage": string(cr.Stage), "code": cr.Code}
		}
		if cr.Matches != nil {
			matches := make([]any, len(cr.Matches))
			for j, id := range cr.Matches {
				matches[j] = id
			}
			doc["matches"] = matches
		}
		cases[i] = doc
	}

	return criterion.EncodeCanonical(map[string]any{
		"scenario": name,
		"tenant":   tenant,
		"cases":    cases,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, scenario.Tenant, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name, tenant string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, tenant, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
