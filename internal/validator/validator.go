// Package validator checks transformed output with an external Luau
// compiler in syntax-only mode. The bridge degrades instead of failing:
// a missing binary yields a Skipped result and the pipeline ships the
// output unvalidated.
package validator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds one checker invocation.
const DefaultTimeout = 30 * time.Second

// Diagnostic is one parsed checker complaint.
type Diagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

// Result is the outcome of one Check call.
type Result struct {
	// Valid is true when the checker accepted the source. Meaningless when
	// Skipped is set.
	Valid bool `json:"valid"`
	// Skipped is true when no checker was available.
	Skipped bool `json:"skipped"`
	// Diagnostic carries the first parsed complaint for invalid source.
	Diagnostic *Diagnostic `json:"diagnostic,omitempty"`
	// Raw is the checker's stderr, kept for report consumers.
	Raw string `json:"-"`
}

// Validator runs an external syntax checker.
type Validator struct {
	// CompilerPath is the checker binary, looked up on PATH when relative.
	CompilerPath string
	// Timeout bounds one invocation; DefaultTimeout when zero.
	Timeout time.Duration
}

// New returns a Validator for the given checker path.
func New(compilerPath string, timeout time.Duration) *Validator {
	if compilerPath == "" {
		compilerPath = "luau-compile"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Validator{CompilerPath: compilerPath, Timeout: timeout}
}

// diagnostic shapes the known checkers print, tried in order:
// path:LINE:COL: msg / path(LINE,COL): msg / ... line LINE ...
var (
	reColonPos = regexp.MustCompile(`:(\d+):(\d+):\s*(.*)`)
	reParenPos = regexp.MustCompile(`\((\d+),(\d+)\):\s*(.*)`)
	reLineOnly = regexp.MustCompile(`line (\d+)`)
)

// Check writes source to a temp file and runs the checker over it. The
// temp file is removed on every path. All failure modes are recoverable:
// they surface in the Result, never as pipeline-stopping errors, except
// genuine I/O trouble creating the temp file.
func (v *Validator) Check(ctx context.Context, source string) (Result, error) {
	if _, err := exec.LookPath(v.CompilerPath); err != nil {
		return Result{Skipped: true, Raw: fmt.Sprintf("checker %q not found", v.CompilerPath)}, nil
	}

	tmp, err := os.CreateTemp("", "luamixer-*.lua")
	if err != nil {
		return Result{}, fmt.Errorf("creating validation temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.WriteString(source); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("writing validation temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("closing validation temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, v.CompilerPath, "--binary", path)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil

	runErr := cmd.Run()
	raw := stderr.String()

	if runErr == nil {
		return Result{Valid: true, Raw: raw}, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Result{
			Valid:      false,
			Raw:        raw,
			Diagnostic: &Diagnostic{Message: fmt.Sprintf("checker timed out after %s", v.Timeout)},
		}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		// Spawn failure after a successful LookPath: treat like a missing
		// tool rather than poisoning the pipeline.
		return Result{Skipped: true, Raw: runErr.Error()}, nil
	}

	return Result{Valid: false, Raw: raw, Diagnostic: parseDiagnostic(raw)}, nil
}

// parseDiagnostic extracts the first position the checker reported.
func parseDiagnostic(stderr string) *Diagnostic {
	for _, line := range strings.Split(stderr, "\n") {
		if m := reColonPos.FindStringSubmatch(line); m != nil {
			return &Diagnostic{
				Line:    atoi(m[1]),
				Column:  atoi(m[2]),
				Message: strings.TrimSpace(m[3]),
			}
		}
		if m := reParenPos.FindStringSubmatch(line); m != nil {
			return &Diagnostic{
				Line:    atoi(m[1]),
				Column:  atoi(m[2]),
				Message: strings.TrimSpace(m[3]),
			}
		}
		if m := reLineOnly.FindStringSubmatch(line); m != nil {
			return &Diagnostic{Line: atoi(m[1]), Message: strings.TrimSpace(line)}
		}
	}
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = "checker rejected the source without diagnostics"
	}
	return &Diagnostic{Message: msg}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
