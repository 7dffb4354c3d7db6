package model

import "errors"

// Backend failure taxonomy. Generate errors wrap one of these so callers can
// branch without string matching. A generation failure means the backend
// itself is unavailable; the pipeline surfaces it immediately instead of
// feeding it into the self-correction loop.
var (
	// ErrUnavailable covers network failures, timeouts, and 5xx responses.
	ErrUnavailable = errors.New("model backend unavailable")
	// ErrUnauthorized covers missing or rejected credentials.
	ErrUnauthorized = errors.New("model backend unauthorized")
	// ErrRateLimited covers quota and rate-limit rejections.
	ErrRateLimited = errors.New("model backend rate limited")
	// ErrEmptyResponse is returned when the backend answered with no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrModelNotReady is returned by the local backend when the engine has
	// no model resident in memory. Loading is the lifecycle collaborator's
	// job, never an implicit side effect of a generate call.
	ErrModelNotReady = errors.New("local model not loaded")
)
