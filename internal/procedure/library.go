package procedure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Store persists user procedures.
type Store interface {
	ListProcedures(ctx context.Context) ([]Procedure, error)
	GetProcedure(ctx context.Context, id string) (Procedure, error)
	SaveProcedure(ctx context.Context, p Procedure) error
	DeleteProcedure(ctx context.Context, id string) error
}

// Source says where a library entry came from.
type Source string

const (
	SourcePreset Source = "preset"
	SourceSaved  Source = "saved"
	SourceFile   Source = "file"
)

// Entry is one procedure visible in the library.
type Entry struct {
	Procedure Procedure
	Source    Source
	// Saved is true for presets and files that already have a similar copy in
	// the store.
	Saved bool
}

// Library merges bundled presets, stored procedures and YAML files from the
// procedures directory.
type Library struct {
	store Store
	dir   string
}

// LibraryOption customizes a Library.
type LibraryOption func(*Library)

// WithDir adds a directory of YAML procedure files to the library.
func WithDir(dir string) LibraryOption {
	return func(l *Library) {
		l.dir = strings.TrimSpace(dir)
	}
}

// NewLibrary wires a library to its store.
func NewLibrary(store Store, opts ...LibraryOption) (*Library, error) {
	if store == nil {
		return nil, fmt.Errorf("procedure: library store is required")
	}
	l := &Library{store: store}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// List returns presets first, then stored procedures, then files. Files that
// fail to load are reported through the returned error while the remaining
// entries are still listed.
func (l *Library) List(ctx context.Context) ([]Entry, error) {
	saved, err := l.store.ListProcedures(ctx)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, preset := range Presets() {
		entries = append(entries, Entry{Procedure: preset, Source: SourcePreset, Saved: containsSimilar(saved, preset)})
	}
	for _, p := range saved {
		entries = append(entries, Entry{Procedure: p, Source: SourceSaved, Saved: true})
	}
	var loadErr error
	if l.dir != "" {
		files, errs := LoadDir(l.dir)
		for _, p := range files {
			entries = append(entries, Entry{Procedure: p, Source: SourceFile, Saved: containsSimilar(saved, p)})
		}
		loadErr = errors.Join(errs...)
	}
	return entries, loadErr
}

// Find resolves ref against IDs first, then case-insensitive nicknames.
func (l *Library) Find(ctx context.Context, ref string) (Procedure, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Procedure{}, fmt.Errorf("procedure: reference is required")
	}
	entries, err := l.List(ctx)
	if len(entries) == 0 && err != nil {
		return Procedure{}, err
	}
	for _, entry := range entries {
		if entry.Procedure.ID != "" && entry.Procedure.ID == ref {
			return entry.Procedure, nil
		}
	}
	for _, entry := range entries {
		if strings.EqualFold(entry.Procedure.Nickname, ref) {
			return entry.Procedure, nil
		}
	}
	return Procedure{}, fmt.Errorf("%w: %q", ErrNotFound, ref)
}

// Save validates p, assigns an ID when missing and stores it.
func (l *Library) Save(ctx context.Context, p Procedure) (Procedure, error) {
	if p.ID == "" || strings.HasPrefix(p.ID, "preset-") {
		p.ID = uuid.NewString()
	}
	p.Renumber()
	normalized, err := p.Normalized()
	if err != nil {
		return Procedure{}, err
	}
	if err := l.store.SaveProcedure(ctx, normalized); err != nil {
		return Procedure{}, err
	}
	return normalized, nil
}

// Import reads a YAML procedure and stores it unless a similar procedure is
// already saved. The bool result reports whether an existing copy was kept.
func (l *Library) Import(ctx context.Context, r io.Reader) (Procedure, bool, error) {
	p, err := LoadReader(r)
	if err != nil {
		return Procedure{}, false, err
	}
	saved, err := l.store.ListProcedures(ctx)
	if err != nil {
		return Procedure{}, false, err
	}
	for _, existing := range saved {
		if Similar(existing, p) {
			return existing, true, nil
		}
	}
	p.ID = ""
	stored, err := l.Save(ctx, p)
	return stored, false, err
}

// Export writes the procedure matching ref as YAML.
func (l *Library) Export(ctx context.Context, ref string, w io.Writer) error {
	p, err := l.Find(ctx, ref)
	if err != nil {
		return err
	}
	return Export(w, p)
}

// Delete removes a stored procedure. Presets and files cannot be deleted.
func (l *Library) Delete(ctx context.Context, id string) error {
	return l.store.DeleteProcedure(ctx, id)
}

func containsSimilar(list []Procedure, target Procedure) bool {
	for _, candidate := range list {
		if Similar(candidate, target) {
			return true
		}
	}
	return false
}
