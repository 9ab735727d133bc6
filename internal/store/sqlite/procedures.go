package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kingrea/lab-assistant/internal/procedure"
)

// ListProcedures returns saved procedures ordered by nickname.
func (s *Store) ListProcedures(ctx context.Context) ([]procedure.Procedure, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM procedures ORDER BY nickname COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("list procedures: %w", err)
	}
	defer rows.Close()

	out := make([]procedure.Procedure, 0)
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan procedure row: %w", err)
		}
		p, err := decodeProcedure(id, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate procedure rows: %w", err)
	}
	return out, nil
}

// GetProcedure loads one saved procedure.
func (s *Store) GetProcedure(ctx context.Context, id string) (procedure.Procedure, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM procedures WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return procedure.Procedure{}, fmt.Errorf("%w: %q", procedure.ErrNotFound, id)
		}
		return procedure.Procedure{}, fmt.Errorf("query procedure %q: %w", id, err)
	}
	return decodeProcedure(id, payload)
}

// SaveProcedure inserts or replaces a procedure. The ID must be set.
func (s *Store) SaveProcedure(ctx context.Context, p procedure.Procedure) error {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return fmt.Errorf("save procedure: id is required")
	}
	payload, err := procedure.Marshal(p)
	if err != nil {
		return fmt.Errorf("save procedure %q: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO procedures (id, nickname, payload, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		 nickname = excluded.nickname,
		 payload = excluded.payload,
		 updated_at = excluded.updated_at`,
		id,
		strings.TrimSpace(p.Nickname),
		string(payload),
		s.now(),
	)
	if err != nil {
		return fmt.Errorf("save procedure %q: %w", id, err)
	}
	return nil
}

// DeleteProcedure removes a saved procedure.
func (s *Store) DeleteProcedure(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM procedures WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete procedure %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", procedure.ErrNotFound, id)
	}
	return nil
}

func decodeProcedure(id, payload string) (procedure.Procedure, error) {
	p, err := procedure.ParseYAML([]byte(payload))
	if err != nil {
		return procedure.Procedure{}, fmt.Errorf("decode procedure %q: %w", id, err)
	}
	p.ID = id
	return p, nil
}
