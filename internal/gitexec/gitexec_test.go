package gitexec

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// newTestRepo initializes a repo with one commit and returns its path.
func newTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	ctx := context.Background()

	mustExec(t, ctx, dir, "init", "-b", "main")
	if err := SetIdentity(ctx, dir, "tester", "tester@example.com"); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	writeFile(t, dir, "search_phrases.json", `{"womens_fashion":[]}`)
	if err := Add(ctx, dir, "search_phrases.json"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := Commit(ctx, dir, "initial"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	return dir
}

func mustExec(t *testing.T, ctx context.Context, dir string, args ...string) {
	t.Helper()
	if err := Exec(ctx, args, Config{Dir: dir}); err != nil {
		t.Fatalf("git %v failed: %v", args, err)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestHasStagedChanges_CleanIndex(t *testing.T) {
	dir := newTestRepo(t)
	ctx := context.Background()

	changed, err := HasStagedChanges(ctx, dir, "search_phrases.json")
	if err != nil {
		t.Fatalf("HasStagedChanges failed: %v", err)
	}
	if changed {
		t.Error("expected no staged changes in a clean repo")
	}
}

func TestHasStagedChanges_AfterEdit(t *testing.T) {
	dir := newTestRepo(t)
	ctx := context.Background()

	writeFile(t, dir, "search_phrases.json", `{"womens_fashion":["sarees"]}`)
	if err := Add(ctx, dir, "search_phrases.json"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	changed, err := HasStagedChanges(ctx, dir, "search_phrases.json")
	if err != nil {
		t.Fatalf("HasStagedChanges failed: %v", err)
	}
	if !changed {
		t.Error("expected staged changes after editing the file")
	}
}

func TestHasStagedChanges_IdenticalContent(t *testing.T) {
	dir := newTestRepo(t)
	ctx := context.Background()

	// Re-stage the exact committed content; the index matches HEAD.
	writeFile(t, dir, "search_phrases.json", `{"womens_fashion":[]}`)
	if err := Add(ctx, dir, "search_phrases.json"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	changed, err := HasStagedChanges(ctx, dir, "search_phrases.json")
	if err != nil {
		t.Fatalf("HasStagedChanges failed: %v", err)
	}
	if changed {
		t.Error("byte-identical content must not count as a change")
	}
}

func TestHeadRevision(t *testing.T) {
	dir := newTestRepo(t)
	ctx := context.Background()

	rev, err := HeadRevision(ctx, dir)
	if err != nil {
		t.Fatalf("HeadRevision failed: %v", err)
	}
	if len(rev) != 40 {
		t.Errorf("expected a 40-char commit hash, got %q", rev)
	}
}

func TestIsRepo(t *testing.T) {
	dir := newTestRepo(t)
	ctx := context.Background()

	if !IsRepo(ctx, dir) {
		t.Error("expected initialized repo to be detected")
	}
	if IsRepo(ctx, t.TempDir()) {
		t.Error("expected empty dir to not be a repo")
	}
}

func TestCloneAndResetHard(t *testing.T) {
	origin := newTestRepo(t)
	ctx := context.Background()

	clone := filepath.Join(t.TempDir(), "clone")
	if err := Clone(ctx, clone, origin, "main"); err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	// Dirty the clone, then reset to the remote head.
	writeFile(t, clone, "search_phrases.json", "garbage")
	if err := Fetch(ctx, clone, "origin"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if err := ResetHard(ctx, clone, "origin/main"); err != nil {
		t.Fatalf("ResetHard failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(clone, "search_phrases.json"))
	if err != nil {
		t.Fatalf("read result file: %v", err)
	}
	if string(data) != `{"womens_fashion":[]}` {
		t.Errorf("expected reset to restore committed content, got %q", data)
	}
}
