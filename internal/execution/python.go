package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"codesync/pkg/types"
)

// DefaultPythonBudget bounds external interpreter runs
const DefaultPythonBudget = 10 * time.Second

// DefaultPythonBinary is resolved through PATH
const DefaultPythonBinary = "python3"

// processGrace is how long Wait may take after the process was killed
const processGrace = 2 * time.Second

// CommandBuilder creates the command that runs an interpreter on a script.
// The sandbox package provides a builder that confines the child with Landlock.
type CommandBuilder func(ctx context.Context, binary, scriptPath string) *exec.Cmd

// DirectCommand runs the interpreter without confinement
func DirectCommand(ctx context.Context, binary, scriptPath string) *exec.Cmd {
	return exec.CommandContext(ctx, binary, scriptPath)
}

type fileNameKey struct{}

// WithFileName attaches the requester's file name so scratch files keep a readable suffix
func WithFileName(ctx context.Context, fileName string) context.Context {
	return context.WithValue(ctx, fileNameKey{}, fileName)
}

func fileNameFrom(ctx context.Context, fallback string) string {
	if name, ok := ctx.Value(fileNameKey{}).(string); ok {
		if base := filepath.Base(name); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return fallback
}

// PythonExecutor runs source through an external interpreter on a scratch file
// FUNCTIONAL DISCOVERY: Each run gets its own scratch file, removed on every path
type PythonExecutor struct {
	binary      string
	scratchDir  string
	command     CommandBuilder
	outputLimit int
}

// NewPythonExecutor creates a Python executor. An empty binary means python3 and
// a nil builder runs the interpreter directly.
func NewPythonExecutor(binary, scratchDir string, command CommandBuilder) *PythonExecutor {
	if binary == "" {
		binary = DefaultPythonBinary
	}
	if command == nil {
		command = DirectCommand
	}
	return &PythonExecutor{
		binary:      binary,
		scratchDir:  scratchDir,
		command:     command,
		outputLimit: DefaultOutputLimit,
	}
}

// SetOutputLimit changes how many transcript bytes a run may produce before it is killed
func (p *PythonExecutor) SetOutputLimit(limit int) {
	if limit > 0 {
		p.outputLimit = limit
	}
}

// stderrWriter mirrors stderr into the shared transcript
type stderrWriter struct {
	transcript *limitedBuffer
	stderr     *limitedBuffer
}

func (w *stderrWriter) Write(p []byte) (int, error) {
	w.stderr.Write(p)
	return w.transcript.Write(p)
}

// Run implements interfaces.Executor
func (p *PythonExecutor) Run(ctx context.Context, source string, budget time.Duration) types.ExecutionResult {
	if budget <= 0 {
		budget = DefaultPythonBudget
	}

	scriptPath, err := p.writeScratch(fileNameFrom(ctx, "main.py"), source)
	if err != nil {
		log.Printf("Failed to write scratch file: %v", err)
		return types.NewErrorResult("", fmt.Sprintf("%v: %v", ErrScratchWrite, err))
	}
	defer p.removeScratch(scriptPath)

	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	cmd := p.command(runCtx, p.binary, scriptPath)
	cmd.Dir = p.scratchDir
	cmd.Env = p.environment()
	cmd.WaitDelay = processGrace

	// FUNCTIONAL DISCOVERY: A run that floods the transcript is killed at the
	// limit instead of buffering until the budget expires
	out := newLimitedBuffer(p.outputLimit, cancel)
	stderr := newLimitedBuffer(p.outputLimit, nil)
	cmd.Stdout = out
	cmd.Stderr = &stderrWriter{transcript: out, stderr: stderr}

	runErr := cmd.Run()

	if out.Exceeded() {
		return types.NewErrorResult(out.String(), fmt.Sprintf("%v: more than %d bytes", ErrOutputLimit, p.outputLimit))
	}

	// TECHNICAL DISCOVERY: Check the deadline before the exit error - a killed
	// process reports "signal: killed" which hides the real cause
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return types.NewErrorResult(out.String(), fmt.Sprintf("%v after %v", ErrTimedOut, budget))
	}

	errText := strings.TrimRight(stderr.String(), "\n")
	if runErr != nil {
		var exitErr *exec.ExitError
		if errText == "" || !errors.As(runErr, &exitErr) {
			errText = runErr.Error()
		}
	}
	if errText == "" {
		return types.ExecutionResult{StdoutText: out.String()}
	}
	return types.NewErrorResult(out.String(), errText)
}

// writeScratch stores source under <unixnano>_<uuid>_<name> in the scratch directory
func (p *PythonExecutor) writeScratch(name, source string) (string, error) {
	fileName := fmt.Sprintf("%d_%s_%s", time.Now().UnixNano(), uuid.New().String(), name)
	path, err := filepath.Abs(filepath.Join(p.scratchDir, fileName))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(source), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// removeScratch deletes a scratch file; failures are only logged
func (p *PythonExecutor) removeScratch(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("Error deleting temp file %s: %v", path, err)
	}
}

// environment returns the minimal variable set handed to the interpreter
// ARCHITECTURAL DISCOVERY: The server's own environment (tokens, paths) never reaches user code
func (p *PythonExecutor) environment() []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = "/usr/local/bin:/usr/bin:/bin"
	}
	return []string{
		"PATH=" + path,
		"HOME=" + p.scratchDir,
		"LANG=C.UTF-8",
		"PYTHONUNBUFFERED=1",
		"PYTHONDONTWRITEBYTECODE=1",
	}
}
