package postgres

import (
	"context"

	"leadrunner/internal/store"

	"github.com/google/uuid"
)

func (s *Store) AddLogEntry(ctx context.Context, runID uuid.UUID, content string) error {
	query := `INSERT INTO run_logs (run_id, content) VALUES ($1, $2)`
	_, err := s.db.ExecContext(ctx, query, runID, content)
	return err
}

func (s *Store) GetRunLogs(ctx context.Context, runID uuid.UUID, afterID int64, limit int) ([]store.LogEntry, error) {
	query := `
		SELECT id, run_id, content, created_at
		FROM run_logs
		WHERE run_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, runID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []store.LogEntry
	for rows.Next() {
		var entry store.LogEntry
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.Content, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}
