package storage

import (
	"database/sql"
	"fmt"
	"time"
)

func (s *Store) CreateProject(p Project) error {
	_, err := s.db.Exec(`
		INSERT INTO projects (id, title, current_phase, age_bracket, chapter_names, status, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.CurrentPhase, p.AgeBracket, p.ChapterNames, p.Status,
		p.Version, p.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetProject(id string) (Project, error) {
	var p Project
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, title, current_phase, age_bracket, chapter_names, status, version, created_at
		FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Title, &p.CurrentPhase, &p.AgeBracket, &p.ChapterNames, &p.Status, &p.Version, &createdAt)
	if err == sql.ErrNoRows {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Project{}, fmt.Errorf("parsing created_at: %w", err)
	}
	p.CreatedAt = t
	return p, nil
}

func (s *Store) ListProjects() ([]Project, error) {
	rows, err := s.db.Query(`
		SELECT id, title, current_phase, age_bracket, chapter_names, status, version, created_at
		FROM projects ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Project
	for rows.Next() {
		var p Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Title, &p.CurrentPhase, &p.AgeBracket, &p.ChapterNames, &p.Status, &p.Version, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		p.CreatedAt = t
		results = append(results, p)
	}
	return results, rows.Err()
}

// UpdateProjectState persists the mutable interview state of a project with
// an optimistic version check. p.Version must hold the version the caller
// read; the stored row is bumped to p.Version+1 on success.
func (s *Store) UpdateProjectState(p Project) error {
	res, err := s.db.Exec(`
		UPDATE projects
		SET title = ?, current_phase = ?, age_bracket = ?, chapter_names = ?, status = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		p.Title, p.CurrentPhase, p.AgeBracket, p.ChapterNames, p.Status, p.ID, p.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a stale version from a missing row.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM projects WHERE id = ?", p.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// ApplyPhaseTransition persists a phase change and its transition marker in
// one transaction, with the same optimistic version check as
// UpdateProjectState. A stale version or missing project leaves the message
// log untouched.
func (s *Store) ApplyPhaseTransition(p Project, marker Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transition transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE projects
		SET title = ?, current_phase = ?, age_bracket = ?, chapter_names = ?, status = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		p.Title, p.CurrentPhase, p.AgeBracket, p.ChapterNames, p.Status, p.ID, p.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRow("SELECT COUNT(*) FROM projects WHERE id = ?", p.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	if _, err := tx.Exec(`
		INSERT INTO messages (id, project_id, role, content, phase_context, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		marker.ID, marker.ProjectID, marker.Role, marker.Content, marker.PhaseContext,
		marker.CreatedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("appending transition marker: %w", err)
	}

	return tx.Commit()
}

func (s *Store) DeleteProject(id string) error {
	res, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
