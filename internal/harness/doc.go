// Package harness provides conformance testing for query compilation.
//
// A scenario names an attribute catalog, a tenant, optional documents and a
// list of queries with their expected outcome. The harness compiles every
// query against the tenant's catalog, optionally runs it against the
// documents, and checks the outcome.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	catalog: ../catalog        # CUE file or directory, relative to the scenario
//	tenant: acme
//	default_field: title       # optional
//	documents:                 # optional
//	  - id: doc-1
//	    fields: { status: active, size: 10 }
//	cases:
//	  - query: "status:active AND NOT owner:bob"
//	    expect:
//	      criterion: 'And[Equals{feature.properties.status, "active"}, ...]'
//	      matches: [doc-1]
//	  - query: "START_DATE:2024-01-01"
//	    expect:
//	      error: UNKNOWN_ATTRIBUTE
//	      stage: build
//
// An expectation names either a criterion (in its String form) or an error
// code, never both. Matches are checked only when listed.
//
// # Deterministic Testing
//
// Each run uses a fresh in-memory SQLite store, so results depend only on
// the scenario. Golden snapshots are canonical JSON and compare byte for
// byte.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/boolean.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
