package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"codesync/internal/execution"
)

// HelperArg marks a re-exec of the server binary as a sandbox helper
const HelperArg = "__codesync-sandbox"

var (
	ErrUnsupported     = errors.New("landlock sandbox is not supported on this platform")
	ErrHelperArguments = errors.New("sandbox helper expects <scratch dir> <interpreter> <script>")
)

// SystemReadOnlyDirs are the paths an interpreter needs to start up.
// /etc is left out, only the files below are readable from it.
var SystemReadOnlyDirs = []string{
	"/usr",
	"/lib",
	"/lib64",
	"/bin",
	"/opt",
}

// SystemReadOnlyFiles are single host files the dynamic loader and libc read
var SystemReadOnlyFiles = []string{
	"/etc/ld.so.cache",
	"/etc/localtime",
}

// IsHelperInvocation reports whether the process was started as a sandbox helper
func IsHelperInvocation(args []string) bool {
	return len(args) > 1 && args[1] == HelperArg
}

// Command returns a builder that runs interpreters through the sandbox helper
// ARCHITECTURAL DISCOVERY: Landlock confines the calling process for good, so the
// server re-executes itself, the helper restricts itself and then becomes the
// interpreter. The server process is never confined.
func Command(scratchDir string) (execution.CommandBuilder, error) {
	if !Available() {
		return nil, ErrUnsupported
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate server binary: %w", err)
	}
	scratch, err := filepath.Abs(scratchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scratch dir: %w", err)
	}

	return builder(self, scratch), nil
}

func builder(self, scratch string) execution.CommandBuilder {
	return func(ctx context.Context, binary, scriptPath string) *exec.Cmd {
		return exec.CommandContext(ctx, self, HelperArg, scratch, binary, scriptPath)
	}
}

// helperArgs splits the arguments following HelperArg
func helperArgs(args []string) (scratch, binary, script string, err error) {
	if len(args) != 3 || args[0] == "" || args[1] == "" || args[2] == "" {
		return "", "", "", ErrHelperArguments
	}
	return args[0], args[1], args[2], nil
}
