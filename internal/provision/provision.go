// Package provision prepares a run's workspace: source checkout,
// interpreter verification, dependency installation with caching, and
// credential materialization.
package provision

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"leadrunner/internal/cache"
	"leadrunner/internal/gitexec"
	"leadrunner/internal/secrets"
)

// Options configures a Provisioner.
type Options struct {
	RepoURL string
	Branch  string
	// WorkDir holds the checkout; it is reused across runs.
	WorkDir  string
	CacheDir string
	// Manifest is the dependency manifest path relative to the checkout.
	Manifest string
	// Interpreter is the executable that runs the workflow script.
	Interpreter string
	// InterpreterVersion pins the interpreter; an empty value skips the check.
	InterpreterVersion string
	// CredentialsFile is where the decoded service-account key lands,
	// relative to the checkout.
	CredentialsFile string
	// CredentialsSecret is the base64-encoded service-account key.
	CredentialsSecret string
}

// Workspace is a fully provisioned run directory.
type Workspace struct {
	// Dir is the source checkout the workflow runs in.
	Dir string
	// DepsDir holds installed dependencies; it is exposed to the
	// workflow through PYTHONPATH.
	DepsDir string
	// CredentialFingerprint identifies the materialized credential in logs.
	CredentialFingerprint string
}

// Provisioner builds workspaces.
type Provisioner struct {
	opts Options
	log  *slog.Logger

	// runCmd runs an external tool and returns its combined output.
	// Overridable in tests.
	runCmd func(ctx context.Context, dir, name string, args ...string) (string, error)
}

// New creates a Provisioner.
func New(opts Options, log *slog.Logger) *Provisioner {
	return &Provisioner{
		opts:   opts,
		log:    log,
		runCmd: runCommand,
	}
}

func runCommand(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out := &bytes.Buffer{}
	cmd.Stdout = out
	cmd.Stderr = out
	err := cmd.Run()
	return out.String(), err
}

// Provision prepares the workspace. Steps run in dependency order;
// the credential is written last so a failed provision never leaves a
// key on disk without a run to clean it up.
func (p *Provisioner) Provision(ctx context.Context) (*Workspace, error) {
	if err := p.checkout(ctx); err != nil {
		return nil, err
	}

	if err := p.verifyInterpreter(ctx); err != nil {
		return nil, err
	}

	depsDir := filepath.Join(p.opts.WorkDir, ".deps")
	if err := p.installDeps(ctx, depsDir); err != nil {
		return nil, err
	}

	// The workflow cannot run without its credential; an absent or
	// malformed secret aborts provisioning before anything executes.
	credPath := filepath.Join(p.opts.WorkDir, p.opts.CredentialsFile)
	fp, err := secrets.Materialize(p.opts.CredentialsSecret, credPath)
	if err != nil {
		return nil, fmt.Errorf("failed to provision credentials: %w", err)
	}
	p.log.Info("credentials provisioned", "path", p.opts.CredentialsFile, "fingerprint", fp)

	return &Workspace{Dir: p.opts.WorkDir, DepsDir: depsDir, CredentialFingerprint: fp}, nil
}

// checkout clones on first run and resets to the remote head after
// that, discarding any state the previous run left behind.
func (p *Provisioner) checkout(ctx context.Context) error {
	dir := p.opts.WorkDir

	if !gitexec.IsRepo(ctx, dir) {
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return fmt.Errorf("failed to create work dir: %w", err)
		}
		p.log.Info("cloning repository", "url", p.opts.RepoURL, "branch", p.opts.Branch)
		if err := gitexec.Clone(ctx, dir, p.opts.RepoURL, p.opts.Branch); err != nil {
			return fmt.Errorf("checkout failed: %w", err)
		}
		return nil
	}

	p.log.Info("refreshing checkout", "branch", p.opts.Branch)
	if err := gitexec.Fetch(ctx, dir, "origin"); err != nil {
		return fmt.Errorf("checkout failed: %w", err)
	}
	if err := gitexec.Checkout(ctx, dir, p.opts.Branch); err != nil {
		return fmt.Errorf("checkout failed: %w", err)
	}
	if err := gitexec.ResetHard(ctx, dir, "origin/"+p.opts.Branch); err != nil {
		return fmt.Errorf("checkout failed: %w", err)
	}
	return nil
}

// verifyInterpreter confirms the pinned interpreter version is present.
// The runner verifies rather than installs; interpreter management
// belongs to the host image.
func (p *Provisioner) verifyInterpreter(ctx context.Context) error {
	if _, err := exec.LookPath(p.opts.Interpreter); err != nil {
		return fmt.Errorf("interpreter %s not found: %w", p.opts.Interpreter, err)
	}
	if p.opts.InterpreterVersion == "" {
		return nil
	}

	out, err := p.runCmd(ctx, "", p.opts.Interpreter, "--version")
	if err != nil {
		return fmt.Errorf("failed to query interpreter version: %w", err)
	}
	if !strings.Contains(out, "Python "+p.opts.InterpreterVersion) {
		return fmt.Errorf("interpreter version mismatch: want %s, got %s",
			p.opts.InterpreterVersion, strings.TrimSpace(out))
	}
	return nil
}

// installDeps restores the dependency cache when possible and installs
// from the manifest. The install always runs; a restored cache only
// makes it faster. Cache problems are logged, never fatal.
func (p *Provisioner) installDeps(ctx context.Context, depsDir string) error {
	manifest := filepath.Join(p.opts.WorkDir, p.opts.Manifest)
	if _, err := os.Stat(manifest); err != nil {
		return fmt.Errorf("dependency manifest %s missing: %w", p.opts.Manifest, err)
	}

	key, err := cache.Key(manifest)
	if err != nil {
		return err
	}

	c, err := cache.New(p.opts.CacheDir)
	if err != nil {
		return err
	}

	hit, err := c.Restore(key, depsDir)
	if err != nil {
		p.log.Warn("dependency cache restore failed", "key", key, "error", err)
	} else if hit {
		p.log.Info("dependency cache restored", "key", key)
	}

	out, err := p.runCmd(ctx, p.opts.WorkDir, p.opts.Interpreter,
		"-m", "pip", "install", "--requirement", p.opts.Manifest, "--target", depsDir)
	if err != nil {
		return fmt.Errorf("dependency install failed: %w: %s", err, strings.TrimSpace(out))
	}

	if !hit {
		if err := c.Save(key, depsDir); err != nil {
			p.log.Warn("dependency cache save failed", "key", key, "error", err)
		} else {
			p.log.Info("dependency cache saved", "key", key)
		}
	}
	return nil
}
