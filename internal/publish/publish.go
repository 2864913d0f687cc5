// Package publish commits and pushes the workflow's result file back to
// the source repository when, and only when, its content changed.
package publish

import (
	"context"
	"fmt"
	"log/slog"

	"leadrunner/internal/gitexec"
)

// Publisher pushes result-file changes upstream.
type Publisher struct {
	// Dir is the checkout the run executed in.
	Dir    string
	Branch string
	// Files are the result paths to stage, relative to Dir.
	Files []string

	BotName  string
	BotEmail string
	Message  string

	Remote string
	// MaxAttempts bounds the push-retry loop; each retry rebases onto
	// the updated remote head first.
	MaxAttempts int

	Log *slog.Logger

	// headRevision resolves the pushed revision. Overridable in tests.
	headRevision func(ctx context.Context, dir string) (string, error)
}

// Publish stages the result files and, when the staged content differs
// from HEAD, commits and pushes them. It returns the published revision
// and whether anything changed. Re-writing identical bytes is a no-op.
func (p *Publisher) Publish(ctx context.Context) (rev string, changed bool, err error) {
	remote := p.Remote
	if remote == "" {
		remote = "origin"
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	if err := gitexec.SetIdentity(ctx, p.Dir, p.BotName, p.BotEmail); err != nil {
		return "", false, err
	}

	for _, f := range p.Files {
		if err := gitexec.Add(ctx, p.Dir, f); err != nil {
			return "", false, err
		}
	}

	hasChanges, err := gitexec.HasStagedChanges(ctx, p.Dir, p.Files...)
	if err != nil {
		return "", false, err
	}
	if !hasChanges {
		return "", false, nil
	}

	if err := gitexec.Commit(ctx, p.Dir, p.Message); err != nil {
		return "", false, err
	}

	var pushErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			// The remote moved; replay our commit on its new head.
			if err := gitexec.Fetch(ctx, p.Dir, remote, p.Branch); err != nil {
				return "", false, err
			}
			if err := gitexec.Rebase(ctx, p.Dir, remote+"/"+p.Branch); err != nil {
				gitexec.RebaseAbort(ctx, p.Dir)
				return "", false, fmt.Errorf("rebase onto %s/%s failed: %w", remote, p.Branch, err)
			}
		}

		pushErr = gitexec.Push(ctx, p.Dir, remote, p.Branch)
		if pushErr == nil {
			headRev := p.headRevision
			if headRev == nil {
				headRev = gitexec.HeadRevision
			}
			rev, err := headRev(ctx, p.Dir)
			if err != nil {
				// The push landed; losing the revision string must not
				// turn a published result into a failed run.
				if p.Log != nil {
					p.Log.Warn("failed to resolve published revision", "error", err)
				}
				return "", true, nil
			}
			return rev, true, nil
		}
		if p.Log != nil {
			p.Log.Warn("push rejected", "attempt", attempt, "error", pushErr)
		}
	}

	return "", false, fmt.Errorf("push failed after %d attempts: %w", attempts, pushErr)
}
