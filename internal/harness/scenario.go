package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/searchql/internal/compiler"
	"github.com/roach88/searchql/internal/store"
)

// Scenario defines a compilation conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is the CUE catalog file or directory.
	// Relative paths are resolved against the scenario file location.
	Catalog string `yaml:"catalog"`

	// Tenant selects the catalog tenant the queries run for.
	Tenant string `yaml:"tenant"`

	// DefaultField is used by terms written without a field.
	DefaultField string `yaml:"default_field,omitempty"`

	// Documents are indexed before the cases run.
	Documents []store.Document `yaml:"documents,omitempty"`

	// Cases are compiled in order.
	Cases []Case `yaml:"cases"`
}

// Case is one query and its expected outcome.
type Case struct {
	Query  string `yaml:"query"`
	Expect Expect `yaml:"expect"`
}

// Expect specifies the expected outcome of a case.
type Expect struct {
	// Criterion is the String form of the expected criterion tree.
	Criterion string `yaml:"criterion,omitempty"`

	// Error is the expected error code: PARSE_ERROR or a build error code.
	Error string `yaml:"error,omitempty"`

	// Stage optionally pins the failing stage (parse or build).
	Stage string `yaml:"stage,omitempty"`

	// Matches lists the ids of matching documents, sorted. Nil skips the
	// search; an empty list expects no matches.
	Matches []string `yaml:"matches,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "case:" vs "cases:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the catalog path BEFORE validation
	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if _, err := os.Stat(s.Catalog); os.IsNotExist(err) {
		return fmt.Errorf("catalog not found: %s", s.Catalog)
	}

	if s.Tenant == "" {
		return fmt.Errorf("tenant is required")
	}

	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	for i, doc := range s.Documents {
		if doc.ID == "" {
			return fmt.Errorf("documents[%d]: id is required", i)
		}
	}

	for i, c := range s.Cases {
		if err := validateExpect(i, c.Expect); err != nil {
			return err
		}
	}

	return nil
}

func validateExpect(index int, e Expect) error {
	switch {
	case e.Criterion == "" && e.Error == "":
		return fmt.Errorf("cases[%d].expect: criterion or error is required", index)
	case e.Criterion != "" && e.Error != "":
		return fmt.Errorf("cases[%d].expect: criterion and error are exclusive", index)
	case e.Error != "" && e.Matches != nil:
		return fmt.Errorf("cases[%d].expect: matches require a successful compilation", index)
	}

	switch compiler.Stage(e.Stage) {
	case "", compiler.StageParse, compiler.StageBuild:
	default:
		return fmt.Errorf("cases[%d].expect: unknown stage %q", index, e.Stage)
	}
	if e.Stage != "" && e.Error == "" {
		return fmt.Errorf("cases[%d].expect: stage requires error", index)
	}
	return nil
}
