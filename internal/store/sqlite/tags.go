package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kingrea/lab-assistant/internal/inventory"
)

// ListTags returns every tag ordered by title.
func (s *Store) ListTags(ctx context.Context) ([]inventory.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, color FROM tags ORDER BY title COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	out := make([]inventory.Tag, 0)
	for rows.Next() {
		var tag inventory.Tag
		if err := rows.Scan(&tag.ID, &tag.Title, &tag.Color); err != nil {
			return nil, fmt.Errorf("scan tag row: %w", err)
		}
		out = append(out, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag rows: %w", err)
	}
	return out, nil
}

// GetTag loads one tag.
func (s *Store) GetTag(ctx context.Context, id string) (inventory.Tag, error) {
	var tag inventory.Tag
	err := s.db.QueryRowContext(ctx, `SELECT id, title, color FROM tags WHERE id = ?`, id).
		Scan(&tag.ID, &tag.Title, &tag.Color)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inventory.Tag{}, fmt.Errorf("%w: tag %q", inventory.ErrNotFound, id)
		}
		return inventory.Tag{}, fmt.Errorf("query tag %q: %w", id, err)
	}
	return tag, nil
}

// SaveTag inserts or replaces a tag.
func (s *Store) SaveTag(ctx context.Context, tag inventory.Tag) error {
	if tag.ID == "" {
		return fmt.Errorf("save tag: id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (id, title, color) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		 title = excluded.title,
		 color = excluded.color`,
		tag.ID, tag.Title, tag.Color,
	)
	if err != nil {
		return fmt.Errorf("save tag %q: %w", tag.ID, err)
	}
	return nil
}

// DeleteTag removes a tag and every assignment of it.
func (s *Store) DeleteTag(ctx context.Context, id string) error {
	return s.inTx(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete tag %q: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: tag %q", inventory.ErrNotFound, id)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM chemical_tags WHERE tag_id = ?`, id); err != nil {
			return fmt.Errorf("detach tag %q: %w", id, err)
		}
		return nil
	})
}
