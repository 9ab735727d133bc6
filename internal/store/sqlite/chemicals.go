package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kingrea/lab-assistant/internal/inventory"
)

const chemicalColumns = `id, nickname, units, max_amount, current_amount, expiry, notes, created_at`

// ListChemicals returns every chemical with its tags, ordered by nickname.
func (s *Store) ListChemicals(ctx context.Context) ([]inventory.Chemical, error) {
	return listChemicals(ctx, s.db)
}

// GetChemical loads one chemical with its tags.
func (s *Store) GetChemical(ctx context.Context, id string) (inventory.Chemical, error) {
	return getChemical(ctx, s.db, id)
}

// SaveChemical inserts or replaces a chemical and its tag assignments.
func (s *Store) SaveChemical(ctx context.Context, chem inventory.Chemical) error {
	return s.inTx(ctx, func(q querier) error {
		return saveChemical(ctx, q, chem)
	})
}

// DeleteChemical removes a chemical and its tag assignments.
func (s *Store) DeleteChemical(ctx context.Context, id string) error {
	return s.inTx(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, `DELETE FROM chemicals WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete chemical %q: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: chemical %q", inventory.ErrNotFound, id)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM chemical_tags WHERE chemical_id = ?`, id); err != nil {
			return fmt.Errorf("delete chemical %q tags: %w", id, err)
		}
		return nil
	})
}

// UpdateChemicals runs fn inside one transaction.
func (s *Store) UpdateChemicals(ctx context.Context, fn func(tx inventory.Tx) error) error {
	return s.inTx(ctx, func(q querier) error {
		return fn(txView{q: q})
	})
}

// txView exposes chemical reads and writes bound to an open transaction.
type txView struct {
	q querier
}

func (t txView) GetChemical(ctx context.Context, id string) (inventory.Chemical, error) {
	return getChemical(ctx, t.q, id)
}

func (t txView) SaveChemical(ctx context.Context, chem inventory.Chemical) error {
	return saveChemical(ctx, t.q, chem)
}

func listChemicals(ctx context.Context, q querier) ([]inventory.Chemical, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+chemicalColumns+` FROM chemicals ORDER BY nickname COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("list chemicals: %w", err)
	}
	out := make([]inventory.Chemical, 0)
	for rows.Next() {
		chem, err := scanChemical(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, chem)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate chemical rows: %w", err)
	}
	rows.Close()

	tags, err := loadChemicalTags(ctx, q, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Tags = tags[out[i].ID]
	}
	return out, nil
}

func getChemical(ctx context.Context, q querier, id string) (inventory.Chemical, error) {
	row := q.QueryRowContext(ctx, `SELECT `+chemicalColumns+` FROM chemicals WHERE id = ?`, id)
	chem, err := scanChemical(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inventory.Chemical{}, fmt.Errorf("%w: chemical %q", inventory.ErrNotFound, id)
		}
		return inventory.Chemical{}, err
	}
	tags, err := loadChemicalTags(ctx, q, id)
	if err != nil {
		return inventory.Chemical{}, err
	}
	chem.Tags = tags[id]
	return chem, nil
}

func saveChemical(ctx context.Context, q querier, chem inventory.Chemical) error {
	if chem.ID == "" {
		return fmt.Errorf("save chemical: id is required")
	}
	var expiry sql.NullString
	if chem.Expiry != nil {
		expiry = sql.NullString{String: chem.Expiry.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO chemicals (`+chemicalColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		 nickname = excluded.nickname,
		 units = excluded.units,
		 max_amount = excluded.max_amount,
		 current_amount = excluded.current_amount,
		 expiry = excluded.expiry,
		 notes = excluded.notes`,
		chem.ID,
		chem.Nickname,
		string(chem.Units),
		chem.Max,
		chem.Current,
		expiry,
		chem.Notes,
		chem.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save chemical %q: %w", chem.ID, err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM chemical_tags WHERE chemical_id = ?`, chem.ID); err != nil {
		return fmt.Errorf("reset chemical %q tags: %w", chem.ID, err)
	}
	for i, tag := range chem.Tags {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO chemical_tags (chemical_id, tag_id, position) VALUES (?, ?, ?)
			 ON CONFLICT(chemical_id, tag_id) DO NOTHING`,
			chem.ID, tag.ID, i,
		); err != nil {
			return fmt.Errorf("tag chemical %q: %w", chem.ID, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChemical(row scanner) (inventory.Chemical, error) {
	var (
		chem      inventory.Chemical
		units     string
		expiry    sql.NullString
		createdAt string
	)
	if err := row.Scan(&chem.ID, &chem.Nickname, &units, &chem.Max, &chem.Current, &expiry, &chem.Notes, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inventory.Chemical{}, err
		}
		return inventory.Chemical{}, fmt.Errorf("scan chemical row: %w", err)
	}
	chem.Units = inventory.Unit(units)
	if expiry.Valid {
		ts, err := time.Parse(time.RFC3339Nano, expiry.String)
		if err != nil {
			return inventory.Chemical{}, fmt.Errorf("parse chemical %q expiry: %w", chem.ID, err)
		}
		chem.Expiry = &ts
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return inventory.Chemical{}, fmt.Errorf("parse chemical %q created_at: %w", chem.ID, err)
	}
	chem.CreatedAt = ts
	return chem, nil
}

// loadChemicalTags returns tags keyed by chemical ID. A blank id loads every
// assignment.
func loadChemicalTags(ctx context.Context, q querier, id string) (map[string][]inventory.Tag, error) {
	query := `SELECT ct.chemical_id, t.id, t.title, t.color
		FROM chemical_tags ct JOIN tags t ON t.id = ct.tag_id`
	var args []any
	if id != "" {
		query += ` WHERE ct.chemical_id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY ct.chemical_id, ct.position`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chemical tags: %w", err)
	}
	defer rows.Close()

	out := map[string][]inventory.Tag{}
	for rows.Next() {
		var chemID string
		var tag inventory.Tag
		if err := rows.Scan(&chemID, &tag.ID, &tag.Title, &tag.Color); err != nil {
			return nil, fmt.Errorf("scan chemical tag row: %w", err)
		}
		out[chemID] = append(out[chemID], tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chemical tag rows: %w", err)
	}
	return out, nil
}
