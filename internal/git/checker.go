// Package git inspects the repository agents review: its root, the commit
// under review and whether the working tree has uncommitted changes.
package git

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotRepository is returned when the directory is not inside a Git repository.
var ErrNotRepository = errors.New("not a Git repository")

// Checker runs git queries in one directory.
type Checker struct {
	// Dir is where git runs. Empty means the process directory.
	Dir string
}

// NewChecker creates a checker for dir.
func NewChecker(dir string) *Checker {
	return &Checker{Dir: dir}
}

func (c *Checker) output(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = c.Dir
	out, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", fmt.Errorf("git not found in PATH\nRomp requires Git to be installed.\nInstall Git: https://git-scm.com/downloads")
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// IsGitRepository checks if Dir is within a Git repository
func (c *Checker) IsGitRepository() (bool, error) {
	if _, err := c.output("rev-parse", "--git-dir"); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetGitRoot returns the absolute path to the Git repository root
func (c *Checker) GetGitRoot() (string, error) {
	root, err := c.output("rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("failed to get Git root: %w", err)
	}
	return root, nil
}

// IsGitRoot reports whether Dir is the repository root, and returns the root.
func (c *Checker) IsGitRoot() (bool, string, error) {
	dir := c.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return false, "", fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, "", err
	}

	gitRoot, err := c.GetGitRoot()
	if err != nil {
		return false, "", err
	}

	// Resolve symlinks so /tmp and /private/tmp compare equal.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if resolved, err := filepath.EvalSymlinks(gitRoot); err == nil {
		gitRoot = resolved
	}
	return filepath.Clean(abs) == filepath.Clean(gitRoot), gitRoot, nil
}

// ValidateGitContext checks that Dir is the root of a Git repository.
// Returns a user-friendly error if it is not.
func (c *Checker) ValidateGitContext() error {
	isRepo, err := c.IsGitRepository()
	if err != nil {
		return err
	}
	if !isRepo {
		return fmt.Errorf("%w\n\nRun 'git init' first, then 'romp init'", ErrNotRepository)
	}

	isRoot, gitRoot, err := c.IsGitRoot()
	if err != nil {
		return err
	}
	if !isRoot {
		return fmt.Errorf("must run from Git repository root\n\nGit root: %s\n\nPlease cd to the Git root and run 'romp init'", gitRoot)
	}
	return nil
}

// Head returns the full commit hash of HEAD.
func (c *Checker) Head() (string, error) {
	head, err := c.output("rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head, nil
}

// IsWorkspaceClean returns true if the Git working directory has no uncommitted changes.
// This includes staged, unstaged, and untracked files.
func (c *Checker) IsWorkspaceClean() (bool, error) {
	porcelain, err := c.output("status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to check Git status: %w", err)
	}
	return porcelain == "", nil
}

// GetDirtyFiles returns uncommitted changes grouped as modified and untracked,
// formatted for terminal output. Returns empty string if workspace is clean.
func (c *Checker) GetDirtyFiles() (string, error) {
	porcelain, err := c.output("status", "--porcelain")
	if err != nil {
		return "", fmt.Errorf("failed to check Git status: %w", err)
	}
	if porcelain == "" {
		return "", nil
	}

	var modified, untracked []string
	for _, line := range strings.Split(porcelain, "\n") {
		if len(line) < 3 {
			continue
		}
		file := strings.TrimSpace(line[2:])
		if strings.HasPrefix(line, "??") {
			untracked = append(untracked, file)
		} else {
			modified = append(modified, file)
		}
	}

	var parts []string
	if len(modified) > 0 {
		parts = append(parts, "Uncommitted changes:")
		for _, file := range modified {
			parts = append(parts, " M "+file)
		}
	}
	if len(untracked) > 0 {
		if len(parts) > 0 {
			parts = append(parts, "")
		}
		parts = append(parts, "Untracked files:")
		for _, file := range untracked {
			parts = append(parts, "?? "+file)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// UncommittedSuffix marks a Describe result for a dirty workspace.
const UncommittedSuffix = " (uncommitted changes)"

// Describe summarizes the review target as "<short hash>" or
// "<short hash> (uncommitted changes)". Outside a repository it returns "".
func (c *Checker) Describe() string {
	head, err := c.Head()
	if err != nil {
		return ""
	}
	desc := head
	if len(desc) > 12 {
		desc = desc[:12]
	}
	if clean, err := c.IsWorkspaceClean(); err == nil && !clean {
		desc += UncommittedSuffix
	}
	return desc
}
