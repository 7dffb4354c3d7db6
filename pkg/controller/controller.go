// Package controller drives one user turn through the
// draft-execute-validate loop, feeding failure diagnostics back into the
// next draft until an attempt succeeds or the retry budget is spent.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/askdf/askdf/pkg/domain"
	"github.com/askdf/askdf/pkg/extract"
	"github.com/askdf/askdf/pkg/model"
	"github.com/askdf/askdf/pkg/prompt"
	"github.com/askdf/askdf/pkg/sandbox"
	"github.com/askdf/askdf/pkg/store"
	"github.com/askdf/askdf/pkg/validate"
)

// State names the phase a turn is currently in.
type State string

const (
	StateDrafting   State = "drafting"
	StateExecuting  State = "executing"
	StateValidating State = "validating"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateExhausted  State = "exhausted"
)

// DefaultMaxRetries is how many corrective re-drafts follow a failed first
// attempt.
const DefaultMaxRetries = 2

// Sandbox is the execution surface the controller needs. *sandbox.Session
// satisfies it.
type Sandbox interface {
	LoadDataset(data []byte, fileName string) (domain.SchemaContext, error)
	Execute(ctx context.Context, script string) (string, error)
	Columns() ([]string, error)
}

var _ Sandbox = (*sandbox.Session)(nil)

// Config wires a controller. Remote is required; Local, Attempts, and Events
// are optional.
type Config struct {
	Remote     model.Backend
	Local      model.Backend
	Sandbox    Sandbox
	Attempts   store.AttemptStore
	Events     *Events
	MaxRetries int
}

// Controller runs turns. Turns are serialized: the sandbox holds a single
// mutable dataset scope, so interleaving two turns would corrupt both.
type Controller struct {
	remote     model.Backend
	local      model.Backend
	sandbox    Sandbox
	attempts   store.AttemptStore
	events     *Events
	maxRetries int

	mu sync.Mutex
}

func New(cfg Config) (*Controller, error) {
	if cfg.Sandbox == nil {
		return nil, errors.New("controller: sandbox is required")
	}
	if cfg.Remote == nil && cfg.Local == nil {
		return nil, errors.New("controller: at least one model backend is required")
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Controller{
		remote:     cfg.Remote,
		local:      cfg.Local,
		sandbox:    cfg.Sandbox,
		attempts:   cfg.Attempts,
		events:     cfg.Events,
		maxRetries: maxRetries,
	}, nil
}

// Run executes one turn end to end. It returns an error only for turn-level
// failures (no usable backend, dataset load failure, model unreachable,
// context cancelled); attempt-level failures are retried and, once the
// budget is spent, folded into a markdown fallback result.
func (c *Controller) Run(ctx context.Context, req *domain.TurnRequest) (*domain.TurnResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	backend, err := c.pickBackend(req.UseLocalModel)
	if err != nil {
		return nil, err
	}

	turnID := uuid.New().String()
	log := slog.With("turn", turnID, "backend", backend.Name())

	schema := req.FileContext
	if len(req.DatasetBytes) > 0 {
		sc, err := c.sandbox.LoadDataset(req.DatasetBytes, req.DatasetFileName)
		if err != nil {
			return nil, fmt.Errorf("loading dataset: %w", err)
		}
		if schema == "" {
			schema = prompt.FormatSchema(sc)
		}
	}

	var lastFailure string
	diagnostic := ""
	attempts := 1 + c.maxRetries
	for attempt := 1; attempt <= attempts; attempt++ {
		c.publish(turnID, StateDrafting, attempt, "")
		p := prompt.Build(prompt.Input{
			Schema:      schema,
			UserMessage: req.UserMessage,
			History:     req.History,
			Diagnostic:  diagnostic,
		})

		raw, err := backend.Generate(ctx, p)
		if err != nil {
			// A model failure is not a script failure: retrying the same
			// unreachable backend would not help, so the turn fails here.
			c.record(ctx, turnID, attempt, backend.Name(), "", StateFailed, store.StageGeneration, err.Error())
			c.publish(turnID, StateFailed, attempt, err.Error())
			return nil, fmt.Errorf("generating script: %w", err)
		}

		script := extract.Script(raw)

		c.publish(turnID, StateExecuting, attempt, "")
		output, err := c.sandbox.Execute(ctx, script)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("executing script: %w", err)
			}
			log.Info("Attempt failed", "attempt", attempt, "stage", store.StageExecution, "err", err)
			c.record(ctx, turnID, attempt, backend.Name(), script, StateFailed, store.StageExecution, err.Error())
			c.publish(turnID, StateFailed, attempt, err.Error())
			lastFailure = err.Error()
			diagnostic = c.buildDiagnostic(script, err)
			continue
		}

		c.publish(turnID, StateValidating, attempt, "")
		res, err := validate.Output(output)
		if err != nil {
			log.Info("Attempt failed", "attempt", attempt, "stage", store.StageValidation, "err", err)
			c.record(ctx, turnID, attempt, backend.Name(), script, StateFailed, store.StageValidation, err.Error())
			c.publish(turnID, StateFailed, attempt, err.Error())
			lastFailure = err.Error()
			diagnostic = c.buildDiagnostic(script, err)
			continue
		}

		if res.Type != domain.ResultMarkdown && res.Code == "" {
			res.Code = script
		}
		c.record(ctx, turnID, attempt, backend.Name(), script, StateSucceeded, "", "")
		c.publish(turnID, StateSucceeded, attempt, "")
		log.Info("Turn succeeded", "attempt", attempt, "result", res.Type)
		return &domain.TurnResponse{TurnID: turnID, Result: res, Attempts: attempt}, nil
	}

	c.publish(turnID, StateExhausted, attempts, lastFailure)
	log.Info("Turn exhausted retries", "attempts", attempts)
	return &domain.TurnResponse{
		TurnID: turnID,
		Result: &domain.Result{
			Type:    domain.ResultMarkdown,
			Summary: "I tried analyzing your data but ran into an issue I couldn't resolve: " + lastFailure,
		},
		Attempts: attempts,
	}, nil
}

func (c *Controller) pickBackend(useLocal bool) (model.Backend, error) {
	if useLocal {
		if c.local == nil {
			return nil, errors.New("no local model backend is configured")
		}
		return c.local, nil
	}
	if c.remote == nil {
		return nil, errors.New("no remote model backend is configured")
	}
	return c.remote, nil
}

// buildDiagnostic turns an attempt failure into the correction block for the
// next draft. Unknown-column failures get the live column list so the model
// can map the request onto real names instead of guessing again.
func (c *Controller) buildDiagnostic(script string, err error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", err.Error())
	fmt.Fprintf(&sb, "The failing script was:\n%s\n", script)

	var execErr *sandbox.ExecError
	if (errors.As(err, &execErr) && execErr.Kind == sandbox.KindUnknownColumn) ||
		strings.Contains(err.Error(), "unknown column") {
		if cols, colErr := c.sandbox.Columns(); colErr == nil {
			fmt.Fprintf(&sb, "The dataset's actual columns are: %s\n", strings.Join(cols, ", "))
			sb.WriteString("Rewrite the script using only these exact column names.")
			return sb.String()
		}
	}
	sb.WriteString("Rewrite the script to fix this error. The dataset is still loaded as df; do not reload it.")
	return sb.String()
}

// record persists one attempt row. Auditing is best effort and never fails a
// turn.
func (c *Controller) record(ctx context.Context, turnID string, ordinal int, backend, script string, state State, stage, detail string) {
	if c.attempts == nil {
		return
	}
	err := c.attempts.RecordAttempt(ctx, store.Attempt{
		ID:            uuid.New().String(),
		TurnID:        turnID,
		Ordinal:       ordinal,
		Backend:       backend,
		Script:        script,
		State:         string(state),
		FailureStage:  stage,
		FailureDetail: detail,
	})
	if err != nil {
		slog.Error("Failed to record attempt", "turn", turnID, "attempt", ordinal, "err", err)
	}
}

func (c *Controller) publish(turnID string, state State, attempt int, detail string) {
	c.events.Publish(Event{TurnID: turnID, State: state, Attempt: attempt, Detail: detail})
}
