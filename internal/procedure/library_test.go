package procedure

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	items map[string]Procedure
	order []string
}

func newMemStore() *memStore {
	return &memStore{items: map[string]Procedure{}}
}

func (m *memStore) ListProcedures(context.Context) ([]Procedure, error) {
	out := make([]Procedure, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id].Clone())
	}
	return out, nil
}

func (m *memStore) GetProcedure(_ context.Context, id string) (Procedure, error) {
	p, ok := m.items[id]
	if !ok {
		return Procedure{}, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *memStore) SaveProcedure(_ context.Context, p Procedure) error {
	if _, ok := m.items[p.ID]; !ok {
		m.order = append(m.order, p.ID)
	}
	m.items[p.ID] = p.Clone()
	return nil
}

func (m *memStore) DeleteProcedure(_ context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func TestNewLibraryRequiresStore(t *testing.T) {
	_, err := NewLibrary(nil)
	require.Error(t, err)
}

func TestLibraryListsPresetsSavedAndFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rodinal.yaml"), []byte(developYAML), 0o644))

	lib, err := NewLibrary(newMemStore(), WithDir(dir))
	require.NoError(t, err)

	entries, err := lib.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, SourcePreset, entries[0].Source)
	assert.False(t, entries[0].Saved)
	assert.Equal(t, SourceFile, entries[1].Source)

	_, err = lib.Save(ctx, Presets()[0])
	require.NoError(t, err)
	entries, err = lib.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Saved, "preset should be marked saved once a similar copy exists")
	assert.Equal(t, SourceSaved, entries[1].Source)
}

func TestLibrarySaveAssignsIDAndRenumbers(t *testing.T) {
	lib, err := NewLibrary(newMemStore())
	require.NoError(t, err)

	saved, err := lib.Save(context.Background(), Procedure{
		ID:       "preset-hp5-ddx",
		Nickname: "  Quick rinse ",
		Steps:    []Step{{Order: 4, Title: "Rinse", Duration: Seconds(30)}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, "preset-hp5-ddx", saved.ID)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "Quick rinse", saved.Nickname)
	assert.Equal(t, 0, saved.Steps[0].Order)
}

func TestLibraryFindByIDOrNickname(t *testing.T) {
	ctx := context.Background()
	lib, err := NewLibrary(newMemStore())
	require.NoError(t, err)

	byName, err := lib.Find(ctx, "hp5+ in dd-x")
	require.NoError(t, err)
	assert.Equal(t, "preset-hp5-ddx", byName.ID)

	byID, err := lib.Find(ctx, "preset-hp5-ddx")
	require.NoError(t, err)
	assert.Equal(t, "HP5+ in DD-X", byID.Nickname)

	_, err = lib.Find(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLibraryImportSkipsSimilar(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	lib, err := NewLibrary(store)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, lib.Export(ctx, "HP5+ in DD-X", &buf))
	exported := buf.String()

	first, existed, err := lib.Import(ctx, strings.NewReader(exported))
	require.NoError(t, err)
	assert.False(t, existed)
	assert.NotEqual(t, "preset-hp5-ddx", first.ID)

	second, existed, err := lib.Import(ctx, strings.NewReader(exported))
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.order, 1)
}

func TestLibraryDelete(t *testing.T) {
	ctx := context.Background()
	lib, err := NewLibrary(newMemStore())
	require.NoError(t, err)
	saved, err := lib.Save(ctx, Presets()[0])
	require.NoError(t, err)

	require.NoError(t, lib.Delete(ctx, saved.ID))
	assert.True(t, errors.Is(lib.Delete(ctx, saved.ID), ErrNotFound))
}
