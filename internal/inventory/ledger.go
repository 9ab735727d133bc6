package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/lab-assistant/internal/validation"
)

// Tx is the store view available inside UpdateChemicals.
type Tx interface {
	GetChemical(ctx context.Context, id string) (Chemical, error)
	SaveChemical(ctx context.Context, chem Chemical) error
}

// Store persists chemicals and tags. Lookups of missing records return an
// error wrapping ErrNotFound.
type Store interface {
	Tx
	ListChemicals(ctx context.Context) ([]Chemical, error)
	DeleteChemical(ctx context.Context, id string) error
	// UpdateChemicals runs fn in a single transaction; any error rolls back
	// every write made through tx.
	UpdateChemicals(ctx context.Context, fn func(tx Tx) error) error

	ListTags(ctx context.Context) ([]Tag, error)
	GetTag(ctx context.Context, id string) (Tag, error)
	SaveTag(ctx context.Context, tag Tag) error
	// DeleteTag removes the tag and detaches it from every chemical.
	DeleteTag(ctx context.Context, id string) error
}

// Ledger applies inventory rules on top of a Store.
type Ledger struct {
	store  Store
	clock  func() time.Time
	newID  func() string
	logger *slog.Logger
}

// LedgerOption customizes a Ledger.
type LedgerOption func(*Ledger)

// WithClock injects a deterministic clock.
func WithClock(clock func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithIDs replaces the UUID generator.
func WithIDs(fn func() string) LedgerOption {
	return func(l *Ledger) {
		if fn != nil {
			l.newID = fn
		}
	}
}

// WithLogger routes ledger activity to logger.
func WithLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLedger wires a ledger to its store.
func NewLedger(store Store, opts ...LedgerOption) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("inventory: store is required")
	}
	l := &Ledger{
		store:  store,
		clock:  time.Now,
		newID:  uuid.NewString,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// List returns every chemical sorted by nickname.
func (l *Ledger) List(ctx context.Context) ([]Chemical, error) {
	chems, err := l.store.ListChemicals(ctx)
	if err != nil {
		return nil, err
	}
	SortByNickname(chems)
	return chems, nil
}

// Get returns one chemical.
func (l *Ledger) Get(ctx context.Context, id string) (Chemical, error) {
	return l.store.GetChemical(ctx, id)
}

// Find resolves ref as an ID, then as a case-insensitive nickname.
func (l *Ledger) Find(ctx context.Context, ref string) (Chemical, error) {
	ref = strings.TrimSpace(ref)
	chem, err := l.store.GetChemical(ctx, ref)
	if err == nil {
		return chem, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Chemical{}, err
	}
	chems, err := l.store.ListChemicals(ctx)
	if err != nil {
		return Chemical{}, err
	}
	for _, c := range chems {
		if strings.EqualFold(c.Nickname, ref) {
			return c, nil
		}
	}
	return Chemical{}, fmt.Errorf("%w: chemical %q", ErrNotFound, ref)
}

// Add stores a new chemical. When components are given the chemical is a
// mixture: each component's amount is deducted from its stock in the same
// transaction, and nothing is written if any component is short.
func (l *Ledger) Add(ctx context.Context, chem Chemical, components ...Component) (Chemical, error) {
	chem = chem.Clone()
	chem.Nickname = strings.TrimSpace(chem.Nickname)
	chem.Notes = strings.TrimSpace(chem.Notes)
	if chem.Units == "" {
		chem.Units = UnitMillilitre
	}
	if chem.ID == "" {
		chem.ID = l.newID()
	}
	if chem.CreatedAt.IsZero() {
		chem.CreatedAt = l.clock().UTC()
	}
	if err := chem.Validate(); err != nil {
		return Chemical{}, err
	}
	merged, err := mergeComponents(components)
	if err != nil {
		return Chemical{}, err
	}

	err = l.store.UpdateChemicals(ctx, func(tx Tx) error {
		for _, comp := range merged {
			if comp.ChemicalID == chem.ID {
				return fmt.Errorf("%w: a mixture cannot contain itself", ErrInvalid)
			}
			if _, err := deduct(ctx, tx, comp.ChemicalID, comp.Amount); err != nil {
				return err
			}
		}
		return tx.SaveChemical(ctx, chem)
	})
	if err != nil {
		return Chemical{}, err
	}
	l.logger.Info("chemical added", "id", chem.ID, "nickname", chem.Nickname, "components", len(merged))
	return chem, nil
}

// Update replaces an existing chemical's editable fields.
func (l *Ledger) Update(ctx context.Context, chem Chemical) (Chemical, error) {
	chem = chem.Clone()
	chem.Nickname = strings.TrimSpace(chem.Nickname)
	if err := chem.Validate(); err != nil {
		return Chemical{}, err
	}
	err := l.store.UpdateChemicals(ctx, func(tx Tx) error {
		existing, err := tx.GetChemical(ctx, chem.ID)
		if err != nil {
			return err
		}
		chem.CreatedAt = existing.CreatedAt
		return tx.SaveChemical(ctx, chem)
	})
	if err != nil {
		return Chemical{}, err
	}
	return chem, nil
}

// Consume deducts amount from a chemical's current stock.
func (l *Ledger) Consume(ctx context.Context, id string, amount float64) (Chemical, error) {
	if amount <= 0 {
		return Chemical{}, fmt.Errorf("%w: amount must be greater than 0", ErrInvalid)
	}
	var updated Chemical
	err := l.store.UpdateChemicals(ctx, func(tx Tx) error {
		chem, err := deduct(ctx, tx, id, amount)
		updated = chem
		return err
	})
	if err != nil {
		return Chemical{}, err
	}
	l.logger.Info("chemical consumed", "id", id, "amount", amount, "current", updated.Current)
	return updated, nil
}

// Delete removes a chemical.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	return l.store.DeleteChemical(ctx, id)
}

// Expired lists chemicals whose expiry is at or before now.
func (l *Ledger) Expired(ctx context.Context, now time.Time) ([]Chemical, error) {
	return l.filter(ctx, func(c Chemical) bool { return c.Expired(now) })
}

// ExpiringWithin lists chemicals that are still good at now but expire
// within window.
func (l *Ledger) ExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]Chemical, error) {
	return l.filter(ctx, func(c Chemical) bool { return c.ExpiresWithin(now, window) })
}

// Tags returns every tag.
func (l *Ledger) Tags(ctx context.Context) ([]Tag, error) {
	return l.store.ListTags(ctx)
}

// CreateTag stores a new tag. A blank colour becomes DefaultTagColor.
func (l *Ledger) CreateTag(ctx context.Context, title, color string) (Tag, error) {
	tag := Tag{ID: l.newID(), Title: title, Color: color}.normalized()
	if err := tag.Validate(); err != nil {
		return Tag{}, err
	}
	if err := l.store.SaveTag(ctx, tag); err != nil {
		return Tag{}, err
	}
	return tag, nil
}

// FindTag resolves ref as a tag ID, then as a case-insensitive title.
func (l *Ledger) FindTag(ctx context.Context, ref string) (Tag, error) {
	ref = strings.TrimSpace(ref)
	tags, err := l.store.ListTags(ctx)
	if err != nil {
		return Tag{}, err
	}
	for _, tag := range tags {
		if tag.ID == ref {
			return tag, nil
		}
	}
	for _, tag := range tags {
		if strings.EqualFold(tag.Title, ref) {
			return tag, nil
		}
	}
	return Tag{}, fmt.Errorf("%w: tag %q", ErrNotFound, ref)
}

// ApplyTag attaches a tag to a chemical. Applying it twice is a no-op.
func (l *Ledger) ApplyTag(ctx context.Context, chemicalID, tagID string) (Chemical, error) {
	tag, err := l.store.GetTag(ctx, tagID)
	if err != nil {
		return Chemical{}, err
	}
	var updated Chemical
	err = l.store.UpdateChemicals(ctx, func(tx Tx) error {
		chem, err := tx.GetChemical(ctx, chemicalID)
		if err != nil {
			return err
		}
		if !chem.HasTag(tag.ID) {
			chem.Tags = append(chem.Tags, tag)
		}
		updated = chem
		return tx.SaveChemical(ctx, chem)
	})
	return updated, err
}

// RemoveTag detaches a tag from a chemical.
func (l *Ledger) RemoveTag(ctx context.Context, chemicalID, tagID string) (Chemical, error) {
	var updated Chemical
	err := l.store.UpdateChemicals(ctx, func(tx Tx) error {
		chem, err := tx.GetChemical(ctx, chemicalID)
		if err != nil {
			return err
		}
		kept := chem.Tags[:0]
		for _, t := range chem.Tags {
			if t.ID != tagID {
				kept = append(kept, t)
			}
		}
		chem.Tags = kept
		updated = chem
		return tx.SaveChemical(ctx, chem)
	})
	return updated, err
}

// DeleteTag removes a tag everywhere.
func (l *Ledger) DeleteTag(ctx context.Context, id string) error {
	return l.store.DeleteTag(ctx, id)
}

func (l *Ledger) filter(ctx context.Context, keep func(Chemical) bool) ([]Chemical, error) {
	chems, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Chemical
	for _, c := range chems {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func deduct(ctx context.Context, tx Tx, id string, amount float64) (Chemical, error) {
	chem, err := tx.GetChemical(ctx, id)
	if err != nil {
		return Chemical{}, err
	}
	if amount > chem.Current {
		return Chemical{}, fmt.Errorf("%w: %s has %g %s, need %g", ErrInsufficient, chem.Nickname, chem.Current, chem.Units, amount)
	}
	chem.Current -= amount
	if err := tx.SaveChemical(ctx, chem); err != nil {
		return Chemical{}, err
	}
	return chem, nil
}

// mergeComponents validates each component and sums repeated chemicals.
func mergeComponents(components []Component) ([]Component, error) {
	var merged []Component
	index := map[string]int{}
	for i, comp := range components {
		comp.ChemicalID = strings.TrimSpace(comp.ChemicalID)
		if errs := validation.Struct(comp); len(errs) > 0 {
			return nil, fmt.Errorf("%w: components[%d]: %w", ErrInvalid, i, errors.Join(errs...))
		}
		if at, ok := index[comp.ChemicalID]; ok {
			merged[at].Amount += comp.Amount
			continue
		}
		index[comp.ChemicalID] = len(merged)
		merged = append(merged, comp)
	}
	return merged, nil
}
