package storage

import (
	"database/sql"
	"fmt"
	"time"
)

func (s *Store) AppendMessage(m Message) error {
	_, err := s.db.Exec(`
		INSERT INTO messages (id, project_id, role, content, phase_context, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.Role, m.Content, m.PhaseContext,
		m.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// ListMessages returns every message of a project in log order.
func (s *Store) ListMessages(projectID string) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT seq, id, project_id, role, content, phase_context, created_at
		FROM messages WHERE project_id = ? ORDER BY seq ASC`, projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListRecentMessages returns the last limit messages of a project, oldest
// first, for use as a generation context window.
func (s *Store) ListRecentMessages(projectID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT seq, id, project_id, role, content, phase_context, created_at FROM (
			SELECT seq, id, project_id, role, content, phase_context, created_at
			FROM messages WHERE project_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, projectID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var results []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.Seq, &m.ID, &m.ProjectID, &m.Role, &m.Content, &m.PhaseContext, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		m.CreatedAt = t
		results = append(results, m)
	}
	return results, rows.Err()
}
