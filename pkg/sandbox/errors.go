package sandbox

import "errors"

// ErrNoDataset is the named precondition failure raised when a script runs
// before any dataset has been loaded in the session. It is deliberately
// distinct from ordinary runtime errors so the controller can diagnose it
// instead of guessing from a generic name-resolution message.
var ErrNoDataset = errors.New("no dataset has been loaded in this session")

// Kind is a structured execution-failure category. The set is an extension
// point, not a closed enum: callers must treat unknown kinds as runtime
// failures.
type Kind string

const (
	// KindNoDataset: the dataset binding precondition failed.
	KindNoDataset Kind = "no_dataset"
	// KindForbiddenImport: the script imports a package outside the sandbox.
	KindForbiddenImport Kind = "forbidden_import"
	// KindUnknownColumn: the script referenced a column the dataset does not
	// have. Column and Available are populated.
	KindUnknownColumn Kind = "unknown_column"
	// KindSyntax: the interpreter rejected the script before running it.
	KindSyntax Kind = "syntax"
	// KindRuntime: the script panicked while running.
	KindRuntime Kind = "runtime"
)

// ExecError is the single error value an execution failure propagates as.
type ExecError struct {
	Kind      Kind
	Msg       string
	Column    string
	Available []string
	err       error
}

func (e *ExecError) Error() string { return e.Msg }

func (e *ExecError) Unwrap() error { return e.err }
