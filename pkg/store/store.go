// Package store defines persistence for the attempt audit trail: every
// generated script and its outcome, keyed by turn.
package store

import (
	"context"
	"time"
)

// Failure stages recorded on unsuccessful attempts.
const (
	StageGeneration = "generation"
	StageExecution  = "execution"
	StageValidation = "validation"
)

// Attempt is one draft-execute-validate cycle inside a turn.
type Attempt struct {
	ID            string    `json:"id"`
	TurnID        string    `json:"turnId"`
	Ordinal       int       `json:"ordinal"`
	Backend       string    `json:"backend"`
	Script        string    `json:"script"`
	State         string    `json:"state"`
	FailureStage  string    `json:"failureStage,omitempty"`
	FailureDetail string    `json:"failureDetail,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// AttemptStore persists attempts and lists them back per turn.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, a Attempt) error
	ListAttempts(ctx context.Context, turnID string) ([]Attempt, error)
	Close() error
}
