package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Scenario scripts one or more result queues and the queries run against them.
type Scenario struct {
	// Name uniquely identifies this scenario (and its golden file).
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// RunID pins the journal run ID for deterministic journals.
	// If empty, defaults to testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty" json:"run_id,omitempty"`

	// Queues declares the queues in dependency order: a parent must be
	// declared before any queue that names it.
	Queues []QueueDef `yaml:"queues" json:"queues"`

	// Steps run in order against the declared queues.
	Steps []Step `yaml:"steps" json:"steps"`

	// Assertions validate the final trace, pending counts and journal.
	Assertions []Assertion `yaml:"assertions,omitempty" json:"assertions,omitempty"`
}

// QueueDef declares a queue and its configuration.
type QueueDef struct {
	Name            string       `yaml:"name" json:"name"`
	Parent          string       `yaml:"parent,omitempty" json:"parent,omitempty"`
	StopPropagation bool         `yaml:"stop_propagation,omitempty" json:"stop_propagation,omitempty"`
	CreatedDefault  *bool        `yaml:"created_default,omitempty" json:"created_default,omitempty"`
	Fallback        *FallbackDef `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// FallbackDef describes a fallback producer.
// A non-nil Failure rejects; otherwise Value resolves.
type FallbackDef struct {
	Value   any `yaml:"value,omitempty" json:"value,omitempty"`
	Failure any `yaml:"failure,omitempty" json:"failure,omitempty"`
}

// Step performs exactly one operation on a queue.
type Step struct {
	Queue string `yaml:"queue" json:"queue"`

	Success *OutcomeDef `yaml:"success,omitempty" json:"success,omitempty"`
	Failure *OutcomeDef `yaml:"failure,omitempty" json:"failure,omitempty"`
	Clear   *ClearDef   `yaml:"clear,omitempty" json:"clear,omitempty"`
	Query   *QueryDef   `yaml:"query,omitempty" json:"query,omitempty"`

	// Expect validates a query step. Only allowed with Query.
	Expect *Expect `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// OutcomeDef is the payload of a success or failure step.
type OutcomeDef struct {
	Value            any   `yaml:"value" json:"value"`
	WasCreated       *bool `yaml:"was_created,omitempty" json:"was_created,omitempty"`
	AffectedRows     []any `yaml:"affected_rows,omitempty" json:"affected_rows,omitempty"`
	ConvertNonErrors *bool `yaml:"convert_non_errors,omitempty" json:"convert_non_errors,omitempty"`
}

// ClearDef is the payload of a clear step.
type ClearDef struct {
	Propagate bool `yaml:"propagate,omitempty" json:"propagate,omitempty"`
}

// QueryDef is the payload of a query step.
type QueryDef struct {
	IncludeCreated      bool         `yaml:"include_created,omitempty" json:"include_created,omitempty"`
	IncludeAffectedRows bool         `yaml:"include_affected_rows,omitempty" json:"include_affected_rows,omitempty"`
	StopPropagation     bool         `yaml:"stop_propagation,omitempty" json:"stop_propagation,omitempty"`
	Fallback            *FallbackDef `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// Expect describes the expected outcome of a query step.
// Unset fields are not checked.
type Expect struct {
	// Value is compared by canonical JSON. A null expectation is not checked.
	Value any `yaml:"value,omitempty" json:"value,omitempty"`

	// Created is the expected created flag (IncludeCreated queries).
	Created *bool `yaml:"created,omitempty" json:"created,omitempty"`

	// AffectedRows is the expected rows (IncludeAffectedRows queries).
	// An explicit empty list checks for no rows.
	AffectedRows []any `yaml:"affected_rows,omitempty" json:"affected_rows,omitempty"`

	// Rejected expects the query to settle into its rejected state.
	Rejected *RejectExpect `yaml:"rejected,omitempty" json:"rejected,omitempty"`

	// Error expects a structural error code, e.g. EMPTY_QUERY_QUEUE.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

// RejectExpect describes an expected rejection.
type RejectExpect struct {
	// Message is the expected error message of the rejection payload.
	Message string `yaml:"message,omitempty" json:"message,omitempty"`

	// Wrapped expects (or rules out) BaseError wrapping.
	Wrapped *bool `yaml:"wrapped,omitempty" json:"wrapped,omitempty"`

	// Payload is the expected raw payload (the wrapped value for BaseErrors).
	Payload any `yaml:"payload,omitempty" json:"payload,omitempty"`
}

// Assertion validates the run after all steps.
type Assertion struct {
	// Type is one of pending_count, trace_count, trace_order, journal_count.
	Type string `yaml:"type" json:"type"`

	// Queue scopes pending_count, trace_count and journal_count.
	Queue string `yaml:"queue,omitempty" json:"queue,omitempty"`

	// Source filters trace_count to consume events from one source.
	Source string `yaml:"source,omitempty" json:"source,omitempty"`

	// Op filters journal_count to one operation.
	Op string `yaml:"op,omitempty" json:"op,omitempty"`

	// Count is the expected number (pending_count, trace_count, journal_count).
	Count int `yaml:"count" json:"count"`

	// Events is the expected order of consume events as "queue:source"
	// (trace_order). Intervening events are allowed.
	Events []string `yaml:"events,omitempty" json:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertPendingCount = "pending_count"
	AssertTraceCount   = "trace_count"
	AssertTraceOrder   = "trace_order"
	AssertJournalCount = "journal_count"
)

// LoadScenario reads and validates a scenario file.
// ".cue" files are evaluated with CUE; anything else is parsed as YAML.
// Unknown fields are rejected in both formats to catch typos.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		scenario, err = parseCUE(path, data)
	} else {
		scenario, err = parseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

func parseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// parseCUE evaluates a CUE file and decodes it through its JSON form, so
// the struct's json tags and unknown-field checks apply.
func parseCUE(path string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := value.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate CUE: %w", err)
	}

	raw, err := value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export CUE: %w", err)
	}

	var scenario Scenario
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and cross references.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Queues) == 0 {
		return fmt.Errorf("queues list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	declared := make(map[string]bool, len(s.Queues))
	for i, q := range s.Queues {
		if q.Name == "" {
			return fmt.Errorf("queues[%d]: name is required", i)
		}
		if declared[q.Name] {
			return fmt.Errorf("queues[%d]: duplicate queue %q", i, q.Name)
		}
		if q.Parent != "" && !declared[q.Parent] {
			return fmt.Errorf("queues[%d]: parent %q must be declared before %q", i, q.Parent, q.Name)
		}
		declared[q.Name] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step, declared); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, declared); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step *Step, declared map[string]bool) error {
	if step.Queue == "" {
		return fmt.Errorf("steps[%d]: queue is required", index)
	}
	if !declared[step.Queue] {
		return fmt.Errorf("steps[%d]: unknown queue %q", index, step.Queue)
	}

	ops := 0
	for _, set := range []bool{step.Success != nil, step.Failure != nil, step.Clear != nil, step.Query != nil} {
		if set {
			ops++
		}
	}
	if ops != 1 {
		return fmt.Errorf("steps[%d]: exactly one of success, failure, clear, query is required (got %d)", index, ops)
	}

	if step.Expect != nil && step.Query == nil {
		return fmt.Errorf("steps[%d]: expect is only allowed on query steps", index)
	}
	if e := step.Expect; e != nil {
		if e.Error != "" && (e.Rejected != nil || e.Value != nil || e.Created != nil || e.AffectedRows != nil) {
			return fmt.Errorf("steps[%d].expect: error cannot be combined with other expectations", index)
		}
		if e.Rejected != nil && (e.Value != nil || e.Created != nil || e.AffectedRows != nil) {
			return fmt.Errorf("steps[%d].expect: rejected cannot be combined with result expectations", index)
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion, declared map[string]bool) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertPendingCount, AssertTraceCount, AssertJournalCount:
		if a.Queue == "" {
			return fmt.Errorf("assertions[%d]: queue is required for %s", index, a.Type)
		}
		if !declared[a.Queue] {
			return fmt.Errorf("assertions[%d]: unknown queue %q", index, a.Queue)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
		for _, ev := range a.Events {
			if _, _, ok := strings.Cut(ev, ":"); !ok {
				return fmt.Errorf("assertions[%d]: event %q must be queue:source", index, ev)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
