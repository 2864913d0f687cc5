// Package gitexec wraps the git binary for the checkout and publish
// steps. Every operation shells out to git with a scoped environment.
package gitexec

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Env vars that are allowed to be inherited from the os
var allowedEnvVars = []string{"http_proxy", "https_proxy", "no_proxy", "HOME", "PATH", "SSH_AUTH_SOCK"}

// Config controls a single git invocation.
type Config struct {
	Dir string
	Env []string
	Out io.Writer
}

// Exec runs git with the given arguments. Stderr is captured and folded
// into the returned error.
func Exec(ctx context.Context, args []string, config Config) error {
	c := exec.CommandContext(ctx, "git", args...)

	if config.Dir != "" {
		c.Dir = config.Dir
	}
	c.Env = append(env(), config.Env...)
	c.Stdout = io.Discard
	if config.Out != nil {
		c.Stdout = config.Out
	}
	errOut := &bytes.Buffer{}
	c.Stderr = errOut

	err := c.Run()
	if err != nil {
		msg := findErrorMessage(errOut)
		if msg != "" {
			err = errors.New(msg)
		}
	}
	return err
}

func env() []string {
	env := []string{"GIT_TERMINAL_PROMPT=0"}
	for _, name := range allowedEnvVars {
		if v, ok := os.LookupEnv(name); ok {
			env = append(env, fmt.Sprintf("%s=%s", name, v))
		}
	}
	return env
}

// findErrorMessage picks the most informative line out of git's stderr.
func findErrorMessage(output io.Reader) string {
	sc := bufio.NewScanner(output)
	for sc.Scan() {
		switch {
		case strings.HasPrefix(sc.Text(), "fatal: "):
			return sc.Text()
		case strings.HasPrefix(sc.Text(), "ERROR fatal: "): // Saner-looking error from ssh hosts
			return sc.Text()
		case strings.HasPrefix(sc.Text(), "error:"):
			return strings.Trim(sc.Text(), "error: ")
		}
	}
	return ""
}

// SetIdentity configures the commit identity for a working directory.
func SetIdentity(ctx context.Context, workingDir, name, email string) error {
	for k, v := range map[string]string{
		"user.name":  name,
		"user.email": email,
	} {
		args := []string{"config", k, v}
		if err := Exec(ctx, args, Config{Dir: workingDir}); err != nil {
			return errors.Wrap(err, "setting git config")
		}
	}
	return nil
}

// Clone clones a branch of the repo into the working directory.
func Clone(ctx context.Context, workingDir, repoURL, branch string) error {
	args := []string{"clone"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, repoURL, workingDir)
	if err := Exec(ctx, args, Config{}); err != nil {
		return errors.Wrap(err, "git clone")
	}
	return nil
}

// Fetch updates refs from the upstream.
func Fetch(ctx context.Context, workingDir, upstream string, refspec ...string) error {
	args := append([]string{"fetch", upstream}, refspec...)
	if err := Exec(ctx, args, Config{Dir: workingDir}); err != nil {
		return errors.Wrap(err, fmt.Sprintf("git fetch %s %s", upstream, refspec))
	}
	return nil
}

// Checkout switches the working directory to the given ref.
func Checkout(ctx context.Context, workingDir, ref string) error {
	args := []string{"checkout", ref}
	return Exec(ctx, args, Config{Dir: workingDir})
}

// ResetHard moves the branch head to the given ref, discarding local state.
func ResetHard(ctx context.Context, workingDir, ref string) error {
	args := []string{"reset", "--hard", ref}
	if err := Exec(ctx, args, Config{Dir: workingDir}); err != nil {
		return errors.Wrap(err, "git reset --hard")
	}
	return nil
}

// Add stages a path.
func Add(ctx context.Context, workingDir, path string) error {
	args := []string{"add", "--", path}
	if err := Exec(ctx, args, Config{Dir: workingDir}); err != nil {
		return errors.Wrap(err, "git add")
	}
	return nil
}

// HasStagedChanges reports whether the index differs from HEAD for the
// given paths (all staged content when no paths are given). This is the
// check that keeps the publisher from creating empty commits.
func HasStagedChanges(ctx context.Context, workingDir string, paths ...string) (bool, error) {
	args := []string{"diff", "--cached", "--quiet"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	err := Exec(ctx, args, Config{Dir: workingDir})
	if err == nil {
		return false, nil
	}
	// diff --quiet exits 1 when there are differences
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, errors.Wrap(err, "git diff --cached")
}

// Commit records the staged changes with the given message.
func Commit(ctx context.Context, workingDir, message string) error {
	args := []string{"commit", "--no-verify", "-m", message}
	if err := Exec(ctx, args, Config{Dir: workingDir}); err != nil {
		return errors.Wrap(err, "git commit")
	}
	return nil
}

// Push pushes the ref to the upstream repo.
func Push(ctx context.Context, workingDir, upstream, ref string) error {
	args := []string{"push", upstream, ref}
	if err := Exec(ctx, args, Config{Dir: workingDir}); err != nil {
		return errors.Wrap(err, fmt.Sprintf("git push %s %s", upstream, ref))
	}
	return nil
}

// Rebase replays local commits onto the given ref.
func Rebase(ctx context.Context, workingDir, onto string) error {
	args := []string{"rebase", onto}
	if err := Exec(ctx, args, Config{Dir: workingDir}); err != nil {
		return errors.Wrap(err, "git rebase "+onto)
	}
	return nil
}

// RebaseAbort backs out of a failed rebase, leaving the tree as it was.
func RebaseAbort(ctx context.Context, workingDir string) error {
	args := []string{"rebase", "--abort"}
	return Exec(ctx, args, Config{Dir: workingDir})
}

// HeadRevision returns the commit hash of HEAD.
func HeadRevision(ctx context.Context, workingDir string) (string, error) {
	out := &bytes.Buffer{}
	args := []string{"rev-list", "--max-count", "1", "HEAD"}
	if err := Exec(ctx, args, Config{Dir: workingDir, Out: out}); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

// IsRepo reports whether the directory is inside a git work tree.
func IsRepo(ctx context.Context, workingDir string) bool {
	args := []string{"rev-parse", "--is-inside-work-tree"}
	return Exec(ctx, args, Config{Dir: workingDir}) == nil
}
