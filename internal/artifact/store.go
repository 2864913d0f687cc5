// Package artifact collects failure diagnostics from the workspace and
// serves them back for download.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"leadrunner/internal/store"
)

// placeholderContent is stored when the run failed before the workflow
// produced its log file. The artifact still exists so an operator
// looking for diagnostics finds an explanation instead of a 404.
const placeholderContent = "the run failed before the workflow produced a log file\n"

// Store copies artifact files into a managed directory and records them.
type Store struct {
	dir     string
	records store.ArtifactRecords
	log     *slog.Logger
}

// NewStore creates an artifact store rooted at dir.
func NewStore(dir string, records store.ArtifactRecords, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}
	return &Store{dir: dir, records: records, log: log}, nil
}

// Collect copies srcPath into the store under the run's directory and
// records it. A missing source file is replaced by a placeholder: the
// workflow may have failed before writing its log.
func (s *Store) Collect(ctx context.Context, runID uuid.UUID, name, srcPath string) (*store.Artifact, error) {
	runDir := filepath.Join(s.dir, runID.String())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run artifact dir: %w", err)
	}
	dest := filepath.Join(runDir, name)

	size, digest, err := copyFile(srcPath, dest)
	if os.IsNotExist(err) {
		s.log.Warn("artifact source missing, storing placeholder", "run_id", runID, "name", name, "source", srcPath)
		if werr := os.WriteFile(dest, []byte(placeholderContent), 0o644); werr != nil {
			return nil, fmt.Errorf("failed to write placeholder artifact: %w", werr)
		}
		sum := sha256.Sum256([]byte(placeholderContent))
		size, digest = int64(len(placeholderContent)), hex.EncodeToString(sum[:])
	} else if err != nil {
		return nil, fmt.Errorf("failed to collect artifact %s: %w", name, err)
	}

	a := &store.Artifact{
		ID:        uuid.New(),
		RunID:     runID,
		Name:      name,
		Path:      dest,
		SizeBytes: size,
		Digest:    digest,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.records.CreateArtifact(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to record artifact: %w", err)
	}
	return a, nil
}

func copyFile(src, dest string) (int64, string, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, "", err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return 0, "", err
	}

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		out.Close()
		return 0, "", err
	}
	if err := out.Close(); err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(h.Sum(nil)), nil
}
