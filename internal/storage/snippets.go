package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyArchived is returned when archiving a snippet that is not active.
var ErrAlreadyArchived = errors.New("snippet already archived")

// ErrNotArchived is returned when restoring a snippet that is already active.
var ErrNotArchived = errors.New("snippet not archived")

// ErrReorderSetMismatch is returned when a reorder payload does not match the
// current active snippet set exactly.
var ErrReorderSetMismatch = errors.New("reorder set mismatch")

const snippetColumns = "id, project_id, title, content, phase, theme, display_order, is_locked, is_active, created_at"

// CreateSnippets inserts a batch of snippets for a project, appending them to
// the end of the display ordering in submission order. DisplayOrder on the
// inputs is ignored; the assigned values are returned.
func (s *Store) CreateSnippets(projectID string, items []Snippet) ([]Snippet, error) {
	if len(items) == 0 {
		return nil, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning create transaction: %w", err)
	}
	defer tx.Rollback()

	next, err := nextDisplayOrder(tx, projectID)
	if err != nil {
		return nil, err
	}

	created := make([]Snippet, len(items))
	for i, item := range items {
		item.ProjectID = projectID
		item.DisplayOrder = next + i
		item.IsActive = true
		if err := insertSnippet(tx, item); err != nil {
			return nil, fmt.Errorf("inserting snippet %q: %w", item.ID, err)
		}
		created[i] = item
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing create: %w", err)
	}
	return created, nil
}

func insertSnippet(tx *sql.Tx, sn Snippet) error {
	_, err := tx.Exec(`
		INSERT INTO snippets (`+snippetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sn.ID, sn.ProjectID, sn.Title, sn.Content, sn.Phase, sn.Theme,
		sn.DisplayOrder, boolToInt(sn.IsLocked), boolToInt(sn.IsActive),
		sn.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// nextDisplayOrder returns one past the highest display_order ever assigned
// for the project. Archived snippets count: display_order stays unique per
// snippet for its whole lifetime.
func nextDisplayOrder(tx *sql.Tx, projectID string) (int, error) {
	var max sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(display_order) FROM snippets WHERE project_id = ?`, projectID).Scan(&max); err != nil {
		return 0, fmt.Errorf("reading max display order: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

func (s *Store) GetSnippet(id string) (Snippet, error) {
	row := s.db.QueryRow(`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id)
	sn, err := scanSnippet(row)
	if err == sql.ErrNoRows {
		return Snippet{}, ErrNotFound
	}
	return sn, err
}

// UpdateSnippetFields updates title/content/theme/phase of a snippet.
// Nil fields are left untouched; lock, active state, and display order are
// never modified by this call.
func (s *Store) UpdateSnippetFields(id string, title, content, theme, phase *string) error {
	sn, err := s.GetSnippet(id)
	if err != nil {
		return err
	}
	if title != nil {
		sn.Title = *title
	}
	if content != nil {
		sn.Content = *content
	}
	if theme != nil {
		sn.Theme = *theme
	}
	if phase != nil {
		sn.Phase = *phase
	}
	_, err = s.db.Exec(`UPDATE snippets SET title = ?, content = ?, theme = ?, phase = ? WHERE id = ?`,
		sn.Title, sn.Content, sn.Theme, sn.Phase, id)
	return err
}

// ToggleSnippetLock flips is_locked and returns the updated snippet.
func (s *Store) ToggleSnippetLock(id string) (Snippet, error) {
	res, err := s.db.Exec(`UPDATE snippets SET is_locked = NOT is_locked WHERE id = ?`, id)
	if err != nil {
		return Snippet{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Snippet{}, err
	}
	if n == 0 {
		return Snippet{}, ErrNotFound
	}
	return s.GetSnippet(id)
}

// ArchiveSnippet soft-deletes a snippet. The snippet keeps its display_order;
// remaining active snippets are not renumbered.
func (s *Store) ArchiveSnippet(id string) error {
	res, err := s.db.Exec(`UPDATE snippets SET is_active = 0 WHERE id = ? AND is_active = 1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetSnippet(id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrAlreadyArchived
	}
	return nil
}

// RestoreSnippet reactivates an archived snippet at the end of the active
// ordering. The original slot is not restored.
func (s *Store) RestoreSnippet(id string) (Snippet, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Snippet{}, fmt.Errorf("beginning restore transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id)
	sn, err := scanSnippet(row)
	if err == sql.ErrNoRows {
		return Snippet{}, ErrNotFound
	}
	if err != nil {
		return Snippet{}, err
	}
	if sn.IsActive {
		return Snippet{}, ErrNotArchived
	}

	next, err := nextDisplayOrder(tx, sn.ProjectID)
	if err != nil {
		return Snippet{}, err
	}
	if _, err := tx.Exec(`UPDATE snippets SET is_active = 1, display_order = ? WHERE id = ?`, next, id); err != nil {
		return Snippet{}, err
	}
	if err := tx.Commit(); err != nil {
		return Snippet{}, fmt.Errorf("committing restore: %w", err)
	}

	sn.IsActive = true
	sn.DisplayOrder = next
	return sn, nil
}

// DeleteSnippet removes a snippet permanently, regardless of lock or archive
// state.
func (s *Store) DeleteSnippet(id string) error {
	res, err := s.db.Exec(`DELETE FROM snippets WHERE id = ?`, id)
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

// ListActiveSnippets returns the active snippets of a project in display
// order. Pass phase="" for all phases.
func (s *Store) ListActiveSnippets(projectID, phase string) ([]Snippet, error) {
	query := `SELECT ` + snippetColumns + ` FROM snippets
		WHERE project_id = ? AND is_active = 1`
	args := []any{projectID}
	if phase != "" {
		query += ` AND phase = ?`
		args = append(args, phase)
	}
	query += ` ORDER BY display_order ASC, created_at ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnippets(rows)
}

// ListArchivedSnippets returns archived snippets, most recent first.
func (s *Store) ListArchivedSnippets(projectID string) ([]Snippet, error) {
	rows, err := s.db.Query(`SELECT `+snippetColumns+` FROM snippets
		WHERE project_id = ? AND is_active = 0
		ORDER BY created_at DESC, display_order DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnippets(rows)
}

// ReorderSnippets reassigns display_order 0..n-1 to the active snippets of a
// project following the supplied id sequence. The id set must match the
// current active set exactly; otherwise nothing changes and
// ErrReorderSetMismatch is returned.
func (s *Store) ReorderSnippets(projectID string, ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning reorder transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT id FROM snippets WHERE project_id = ? AND is_active = 1`, projectID)
	if err != nil {
		return err
	}
	active := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		active[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(ids) != len(active) {
		return fmt.Errorf("%w: got %d ids, have %d active snippets", ErrReorderSetMismatch, len(ids), len(active))
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !active[id] || seen[id] {
			return fmt.Errorf("%w: id %q", ErrReorderSetMismatch, id)
		}
		seen[id] = true
	}

	for pos, id := range ids {
		if _, err := tx.Exec(`UPDATE snippets SET display_order = ? WHERE id = ?`, pos, id); err != nil {
			return fmt.Errorf("updating order of %q: %w", id, err)
		}
	}

	return tx.Commit()
}

// ReplaceUnlockedSnippets atomically archives every unlocked active snippet
// of a project and inserts the supplied drafts after the current maximum
// display order. Locked snippets are untouched. Used by regeneration; runs
// as a single transaction so concurrent readers never observe a half-merged
// set.
func (s *Store) ReplaceUnlockedSnippets(projectID string, drafts []Snippet) ([]Snippet, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE snippets SET is_active = 0
		WHERE project_id = ? AND is_active = 1 AND is_locked = 0`, projectID); err != nil {
		return nil, fmt.Errorf("archiving unlocked snippets: %w", err)
	}

	next, err := nextDisplayOrder(tx, projectID)
	if err != nil {
		return nil, err
	}

	created := make([]Snippet, len(drafts))
	for i, d := range drafts {
		d.ProjectID = projectID
		d.DisplayOrder = next + i
		d.IsActive = true
		if err := insertSnippet(tx, d); err != nil {
			return nil, fmt.Errorf("inserting draft %q: %w", d.ID, err)
		}
		created[i] = d
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing replace: %w", err)
	}
	return created, nil
}

func scanSnippet(row *sql.Row) (Snippet, error) {
	var sn Snippet
	var locked, active int
	var createdAt string
	err := row.Scan(&sn.ID, &sn.ProjectID, &sn.Title, &sn.Content, &sn.Phase, &sn.Theme,
		&sn.DisplayOrder, &locked, &active, &createdAt)
	if err != nil {
		return Snippet{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Snippet{}, fmt.Errorf("parsing created_at: %w", err)
	}
	sn.CreatedAt = t
	sn.IsLocked = locked != 0
	sn.IsActive = active != 0
	return sn, nil
}

func scanSnippets(rows *sql.Rows) ([]Snippet, error) {
	var results []Snippet
	for rows.Next() {
		var sn Snippet
		var locked, active int
		var createdAt string
		if err := rows.Scan(&sn.ID, &sn.ProjectID, &sn.Title, &sn.Content, &sn.Phase, &sn.Theme,
			&sn.DisplayOrder, &locked, &active, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		sn.CreatedAt = t
		sn.IsLocked = locked != 0
		sn.IsActive = active != 0
		results = append(results, sn)
	}
	return results, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
