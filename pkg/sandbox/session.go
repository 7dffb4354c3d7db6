// Package sandbox runs extracted scripts inside a persistent in-process
// interpreter. One Session owns one interpreter and at most one loaded
// dataset; interpreter state (including reassignments of the dataset
// variable) persists across executions until the next dataset load.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/askdf/askdf/pkg/domain"
	"github.com/askdf/askdf/pkg/frame"
)

// DatasetVar is the well-known name scripts find the dataset under.
const DatasetVar = "df"

// preludeImport brings the dataset runtime package into the interpreter's
// scope once per session. preludeBind rebinds the dataset variable and the
// emit helper; it is re-evaluated on every dataset load so a new upload
// replaces the binding. The two stay separate Evals: a source starting with
// an import is parsed as a file, where statements like := are rejected.
const preludeImport = `import "dfkit"`

const preludeBind = `df := dfkit.Active()
emit := dfkit.Emit
`

// forbiddenImports are rejected before evaluation. This is scope control for
// generated scripts, not a hardened security boundary.
var forbiddenImports = map[string]bool{
	"os":        true,
	"os/exec":   true,
	"os/signal": true,
	"net":       true,
	"net/http":  true,
	"syscall":   true,
	"unsafe":    true,
	"plugin":    true,
}

// Session is a sandboxed script-execution session with a persistent variable
// scope. It is safe for concurrent use, but executions are serialized: only
// one script runs at a time.
type Session struct {
	interp *interp.Interpreter
	out    *switchWriter
	sem    chan struct{}

	mu    sync.RWMutex // guards frame
	frame *frame.Frame
}

// NewSession builds an interpreter with the standard library and the dataset
// runtime package loaded. No dataset is bound yet; Execute fails with the
// named precondition error until LoadDataset succeeds.
func NewSession() (*Session, error) {
	out := newSwitchWriter()
	i := interp.New(interp.Options{Stdout: out, Stderr: out})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("loading interpreter stdlib: %w", err)
	}

	s := &Session{
		interp: i,
		out:    out,
		sem:    make(chan struct{}, 1),
	}
	exports := interp.Exports{
		"dfkit/dfkit": {
			"Active": reflect.ValueOf(s.activeFrame),
			"Emit":   reflect.ValueOf(s.emit),
		},
	}
	if err := i.Use(exports); err != nil {
		return nil, fmt.Errorf("loading dataset runtime: %w", err)
	}
	if _, err := i.Eval(preludeImport); err != nil {
		return nil, fmt.Errorf("importing dataset runtime: %w", err)
	}
	return s, nil
}

// LoadDataset parses the uploaded bytes, replaces the session's dataset
// binding, and returns the schema summary of the new dataset. Loading waits
// for any in-flight execution to finish first.
func (s *Session) LoadDataset(data []byte, fileName string) (domain.SchemaContext, error) {
	f, err := frame.Load(data, fileName)
	if err != nil {
		return domain.SchemaContext{}, err
	}

	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	s.setFrame(f)
	if _, err := s.interp.Eval(preludeBind); err != nil {
		return domain.SchemaContext{}, fmt.Errorf("binding dataset: %w", err)
	}
	slog.Info("Dataset loaded", "file", fileName, "rows", f.RowCount(), "columns", len(f.Columns()))
	return f.Schema(), nil
}

// Execute runs one script and returns everything it wrote to standard
// output. Failures come back as *ExecError. If ctx is cancelled mid-run the
// script is not preempted; it finishes in the background and its output is
// discarded.
func (s *Session) Execute(ctx context.Context, script string) (string, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if s.activeFrame() == nil {
		<-s.sem
		return "", &ExecError{Kind: KindNoDataset, Msg: ErrNoDataset.Error(), err: ErrNoDataset}
	}
	if err := checkImports(script); err != nil {
		<-s.sem
		return "", err
	}

	buf, restore := s.out.capture()
	done := make(chan error, 1)
	go func() {
		defer func() { <-s.sem }()
		defer restore()
		defer func() {
			if r := recover(); r != nil {
				done <- classifyPanic(r)
			}
		}()
		_, err := s.interp.Eval(script)
		done <- classifyEval(err)
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", err
		}
		return buf.String(), nil
	case <-ctx.Done():
		return "", fmt.Errorf("execution abandoned: %w", ctx.Err())
	}
}

// Columns returns the live column list of the currently loaded dataset. The
// retry controller injects this into correction prompts, so it must reflect
// the session's current state, not the schema snapshot from upload time.
func (s *Session) Columns() ([]string, error) {
	f := s.activeFrame()
	if f == nil {
		return nil, ErrNoDataset
	}
	return f.Columns(), nil
}

// Status reports "ready" once a dataset is bound and "empty" before that.
func (s *Session) Status() string {
	if s.activeFrame() == nil {
		return "empty"
	}
	return "ready"
}

// Close drops the dataset binding. The interpreter itself holds no external
// resources.
func (s *Session) Close() error {
	s.setFrame(nil)
	return nil
}

func (s *Session) activeFrame() *frame.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

func (s *Session) setFrame(f *frame.Frame) {
	s.mu.Lock()
	s.frame = f
	s.mu.Unlock()
}

// emit is exposed to scripts as their single output channel: it serializes
// one JSON value (normalizing NaN and infinities to null) and writes it to
// the session's captured standard output.
func (s *Session) emit(v any) {
	b, err := json.Marshal(jsonNormalize(v))
	if err != nil {
		panic(fmt.Sprintf("emit: value is not serializable: %v", err))
	}
	fmt.Fprintln(s.out, string(b))
}

func checkImports(script string) error {
	for _, pkg := range importedPackages(script) {
		if forbiddenImports[pkg] {
			return &ExecError{
				Kind: KindForbiddenImport,
				Msg:  fmt.Sprintf("script imports forbidden package %q", pkg),
			}
		}
	}
	return nil
}

func importedPackages(script string) []string {
	var pkgs []string
	inBlock := false
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			pkgs = append(pkgs, strings.Trim(trimmed, `"`))
		case strings.HasPrefix(trimmed, "import "):
			pkgs = append(pkgs, strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`))
		}
	}
	return pkgs
}

func classifyEval(err error) error {
	if err == nil {
		return nil
	}
	var p interp.Panic
	if !errorsAsPanic(err, &p) {
		// Evaluation was rejected before the script ran.
		return &ExecError{Kind: KindSyntax, Msg: err.Error(), err: err}
	}
	return classifyPanic(p.Value)
}

func classifyPanic(value any) error {
	if uc, ok := value.(*frame.UnknownColumnError); ok {
		return &ExecError{
			Kind:      KindUnknownColumn,
			Msg:       uc.Error(),
			Column:    uc.Name,
			Available: uc.Available,
			err:       uc,
		}
	}
	if err, ok := value.(error); ok {
		return &ExecError{Kind: KindRuntime, Msg: err.Error(), err: err}
	}
	return &ExecError{Kind: KindRuntime, Msg: fmt.Sprint(value)}
}

func errorsAsPanic(err error, target *interp.Panic) bool {
	for err != nil {
		if p, ok := err.(interp.Panic); ok {
			*target = p
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
