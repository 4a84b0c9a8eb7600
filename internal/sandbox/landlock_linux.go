//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/landlock-lsm/go-landlock/landlock"
	"golang.org/x/sys/unix"
)

// createRulesetVersion asks landlock_create_ruleset for the kernel ABI version
const createRulesetVersion = 1

// ABIVersion returns the Landlock ABI the kernel supports, 0 when Landlock is
// missing or disabled
func ABIVersion() int {
	abi, _, errno := unix.Syscall(unix.SYS_LANDLOCK_CREATE_RULESET, 0, 0, createRulesetVersion)
	if errno != 0 {
		return 0
	}
	return int(abi)
}

// Available reports whether the kernel can confine interpreters
func Available() bool {
	return ABIVersion() >= 1
}

// RunHelper restricts the current process and replaces it with the interpreter.
// It only returns on failure.
func RunHelper(args []string) error {
	scratch, binary, script, err := helperArgs(args)
	if err != nil {
		return err
	}

	// TECHNICAL DISCOVERY: Resolve the interpreter before restricting, PATH
	// lookups may touch directories the ruleset no longer allows
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("interpreter not found: %w", err)
	}

	// FUNCTIONAL DISCOVERY: BestEffort silently applies nothing on kernels without
	// Landlock, so the helper refuses to start the interpreter there
	if !Available() {
		return ErrUnsupported
	}

	if err := landlock.V6.BestEffort().Restrict(rules(scratch)...); err != nil {
		return fmt.Errorf("landlock restriction failed: %w", err)
	}

	return syscall.Exec(resolved, []string{binary, script}, os.Environ())
}

// rules grants read access to system paths and full access to the scratch dir.
// No network rule is added, so TCP bind and connect are denied where the
// kernel supports network restrictions.
func rules(scratch string) []landlock.Rule {
	dirs := readOnlyDirs()
	rules := make([]landlock.Rule, 0, len(dirs)+len(SystemReadOnlyFiles)+3)
	for _, dir := range dirs {
		rules = append(rules, landlock.RODirs(dir))
	}
	for _, file := range SystemReadOnlyFiles {
		rules = append(rules, landlock.ROFiles(file).IgnoreIfMissing())
	}
	rules = append(rules,
		landlock.RWFiles("/dev/null").IgnoreIfMissing(),
		landlock.ROFiles("/dev/urandom").IgnoreIfMissing(),
		landlock.RWDirs(scratch),
	)
	return rules
}

// readOnlyDirs lists the existing system dirs plus interpreter config dirs under /etc
// TECHNICAL DISCOVERY: Debian links sitecustomize.py into /etc/python3.x, an
// unreadable link makes every run print a site import error
func readOnlyDirs() []string {
	dirs := make([]string, 0, len(SystemReadOnlyDirs))
	for _, dir := range SystemReadOnlyDirs {
		if dirExists(dir) {
			dirs = append(dirs, dir)
		}
	}
	matches, _ := filepath.Glob("/etc/python3*")
	for _, dir := range matches {
		if dirExists(dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
