package controller

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/askdf/askdf/pkg/domain"
	"github.com/askdf/askdf/pkg/frame"
	"github.com/askdf/askdf/pkg/model"
	"github.com/askdf/askdf/pkg/sandbox"
	"github.com/askdf/askdf/pkg/store"
)

// fakeBackend replays queued responses and records every prompt it saw.
type fakeBackend struct {
	name      string
	responses []string
	errs      []error
	prompts   []string
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	i := len(f.prompts) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", model.ErrEmptyResponse
}

// fakeSandbox runs scripts against a real frame but with a canned execution
// plan: each entry is either an output or an error.
type fakeSandbox struct {
	columns []string
	outputs []string
	errs    []error
	scripts []string
}

func (f *fakeSandbox) LoadDataset(data []byte, fileName string) (domain.SchemaContext, error) {
	return domain.SchemaContext{FileName: fileName, Columns: f.columns}, nil
}

func (f *fakeSandbox) Execute(ctx context.Context, script string) (string, error) {
	f.scripts = append(f.scripts, script)
	i := len(f.scripts) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.outputs) {
		return f.outputs[i], nil
	}
	return "", errors.New("no scripted output")
}

func (f *fakeSandbox) Columns() ([]string, error) { return f.columns, nil }

// memStore collects attempts in memory.
type memStore struct {
	attempts []store.Attempt
}

func (m *memStore) RecordAttempt(ctx context.Context, a store.Attempt) error {
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memStore) ListAttempts(ctx context.Context, turnID string) ([]store.Attempt, error) {
	var out []store.Attempt
	for _, a := range m.attempts {
		if a.TurnID == turnID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func newTestController(t *testing.T, backend *fakeBackend, sb *fakeSandbox, attempts store.AttemptStore) *Controller {
	t.Helper()
	c, err := New(Config{Remote: backend, Sandbox: sb, Attempts: attempts})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

const kpiOutput = `{"type":"kpi","summary":"Total sales.","data":[{"label":"Total","value":350}]}`

func TestRunSucceedsFirstAttempt(t *testing.T) {
	backend := &fakeBackend{name: "fake", responses: []string{"```go\nemit(df.Sum(\"Sales\"))\n```"}}
	sb := &fakeSandbox{columns: []string{"Date", "Sales"}, outputs: []string{kpiOutput}}
	attempts := &memStore{}
	c := newTestController(t, backend, sb, attempts)

	resp, err := c.Run(context.Background(), &domain.TurnRequest{UserMessage: "total sales?"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", resp.Attempts)
	}
	if resp.Result.Type != domain.ResultKPI {
		t.Errorf("Type = %q, want kpi", resp.Result.Type)
	}
	if resp.Result.Code == "" {
		t.Error("non-markdown result should carry the producing script")
	}
	if len(sb.scripts) != 1 || strings.Contains(sb.scripts[0], "```") {
		t.Errorf("executed script = %q, want fences stripped", sb.scripts)
	}
	if len(attempts.attempts) != 1 || attempts.attempts[0].State != string(StateSucceeded) {
		t.Errorf("recorded attempts = %+v, want one succeeded row", attempts.attempts)
	}
}

func TestRunInjectsLiveColumnsAfterUnknownColumn(t *testing.T) {
	uc := &frame.UnknownColumnError{Name: "Revenue", Available: []string{"Date", "Sales"}}
	execErr := &sandbox.ExecError{
		Kind:      sandbox.KindUnknownColumn,
		Msg:       uc.Error(),
		Column:    "Revenue",
		Available: uc.Available,
	}
	backend := &fakeBackend{name: "fake", responses: []string{
		"```go\nemit(df.Sum(\"Revenue\"))\n```",
		"```go\nemit(df.Sum(\"Sales\"))\n```",
	}}
	sb := &fakeSandbox{
		columns: []string{"Date", "Sales"},
		errs:    []error{execErr, nil},
		outputs: []string{"", kpiOutput},
	}
	c := newTestController(t, backend, sb, &memStore{})

	resp, err := c.Run(context.Background(), &domain.TurnRequest{UserMessage: "total revenue?"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", resp.Attempts)
	}
	if len(backend.prompts) != 2 {
		t.Fatalf("prompts = %d, want 2", len(backend.prompts))
	}
	retry := backend.prompts[1]
	if !strings.Contains(retry, "Date, Sales") {
		t.Errorf("retry prompt missing the live column list:\n%s", retry)
	}
	if !strings.Contains(retry, "PREVIOUS ATTEMPT FAILED") {
		t.Error("retry prompt missing the failure block")
	}
}

func TestRunExhaustsRetries(t *testing.T) {
	backend := &fakeBackend{name: "fake", responses: []string{"emit(1)", "emit(2)", "emit(3)"}}
	sb := &fakeSandbox{
		columns: []string{"Date", "Sales"},
		errs: []error{
			errors.New("boom one"),
			errors.New("boom two"),
			errors.New("boom three"),
		},
	}
	attempts := &memStore{}
	c := newTestController(t, backend, sb, attempts)

	resp, err := c.Run(context.Background(), &domain.TurnRequest{UserMessage: "anything"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3 (one draft plus two retries)", resp.Attempts)
	}
	if resp.Result.Type != domain.ResultMarkdown {
		t.Fatalf("Type = %q, want markdown fallback", resp.Result.Type)
	}
	if !strings.Contains(resp.Result.Summary, "boom three") {
		t.Errorf("fallback summary = %q, want it to carry the last failure", resp.Result.Summary)
	}
	if len(attempts.attempts) != 3 {
		t.Errorf("recorded %d attempts, want 3", len(attempts.attempts))
	}
	for _, a := range attempts.attempts {
		if a.FailureStage != store.StageExecution {
			t.Errorf("FailureStage = %q, want execution", a.FailureStage)
		}
	}
}

func TestRunValidationFailureRetries(t *testing.T) {
	backend := &fakeBackend{name: "fake", responses: []string{"emit(1)", "emit(2)"}}
	sb := &fakeSandbox{
		columns: []string{"Date", "Sales"},
		outputs: []string{"The total is 350.", kpiOutput},
	}
	attempts := &memStore{}
	c := newTestController(t, backend, sb, attempts)

	resp, err := c.Run(context.Background(), &domain.TurnRequest{UserMessage: "total?"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", resp.Attempts)
	}
	if attempts.attempts[0].FailureStage != store.StageValidation {
		t.Errorf("FailureStage = %q, want validation", attempts.attempts[0].FailureStage)
	}
}

func TestRunGenerationFailureIsTurnLevel(t *testing.T) {
	backend := &fakeBackend{name: "fake", errs: []error{model.ErrUnavailable}}
	sb := &fakeSandbox{columns: []string{"Date", "Sales"}}
	c := newTestController(t, backend, sb, &memStore{})

	_, err := c.Run(context.Background(), &domain.TurnRequest{UserMessage: "hi"})
	if !errors.Is(err, model.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if len(backend.prompts) != 1 {
		t.Errorf("prompts = %d, want 1 (no retry on generation failure)", len(backend.prompts))
	}
	if len(sb.scripts) != 0 {
		t.Errorf("scripts = %d, want 0", len(sb.scripts))
	}
}

func TestRunLocalBackendSelection(t *testing.T) {
	remote := &fakeBackend{name: "remote", responses: []string{"emit(1)"}}
	local := &fakeBackend{name: "local", responses: []string{"emit(1)"}}
	sb := &fakeSandbox{columns: []string{"Date"}, outputs: []string{kpiOutput, kpiOutput}}
	c, err := New(Config{Remote: remote, Local: local, Sandbox: sb})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Run(context.Background(), &domain.TurnRequest{UserMessage: "hi", UseLocalModel: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(local.prompts) != 1 || len(remote.prompts) != 0 {
		t.Errorf("local prompts = %d, remote prompts = %d, want 1/0", len(local.prompts), len(remote.prompts))
	}
}

func TestRunLocalRequestedButMissing(t *testing.T) {
	remote := &fakeBackend{name: "remote"}
	c, err := New(Config{Remote: remote, Sandbox: &fakeSandbox{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Run(context.Background(), &domain.TurnRequest{UserMessage: "hi", UseLocalModel: true}); err == nil {
		t.Fatal("expected error when local mode is requested without a local backend")
	}
}

func TestRunLoadsAttachedDataset(t *testing.T) {
	backend := &fakeBackend{name: "fake", responses: []string{"emit(1)"}}
	sb := &fakeSandbox{columns: []string{"Date", "Sales"}, outputs: []string{kpiOutput}}
	c := newTestController(t, backend, sb, &memStore{})

	_, err := c.Run(context.Background(), &domain.TurnRequest{
		UserMessage:     "total?",
		DatasetBytes:    []byte("Date,Sales\n2024-01-01,100\n"),
		DatasetFileName: "sales.csv",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(backend.prompts[0], "sales.csv") {
		t.Error("prompt should carry the schema of the freshly loaded dataset")
	}
}
