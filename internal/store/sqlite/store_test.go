package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/lab-assistant/internal/inventory"
	"github.com/kingrea/lab-assistant/internal/procedure"
)

var (
	_ procedure.Store = (*Store)(nil)
	_ inventory.Store = (*Store)(nil)
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "labassistant.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestProcedureRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	preset := procedure.Presets()[0]
	preset.ID = "p-1"
	require.NoError(t, store.SaveProcedure(ctx, preset))

	got, err := store.GetProcedure(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.ID)
	assert.True(t, procedure.Similar(preset, got))
	require.NotNil(t, got.Steps[1].Substep)
	assert.Equal(t, 10*time.Second, got.Steps[1].Substep.Active)

	preset.Nickname = "HP5+ pushed"
	require.NoError(t, store.SaveProcedure(ctx, preset))
	other := procedure.Procedure{ID: "p-2", Nickname: "Afterbath", Steps: []procedure.Step{{Order: 0, Title: "Rinse"}}}
	require.NoError(t, store.SaveProcedure(ctx, other))

	list, err := store.ListProcedures(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Afterbath", list[0].Nickname)
	assert.Equal(t, "HP5+ pushed", list[1].Nickname)

	require.NoError(t, store.DeleteProcedure(ctx, "p-2"))
	assert.True(t, errors.Is(store.DeleteProcedure(ctx, "p-2"), procedure.ErrNotFound))
	_, err = store.GetProcedure(ctx, "p-2")
	assert.True(t, errors.Is(err, procedure.ErrNotFound))
}

func TestSaveProcedureRejectsInvalid(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	assert.Error(t, store.SaveProcedure(ctx, procedure.Procedure{Nickname: "no id", Steps: []procedure.Step{{Title: "x"}}}))
	assert.Error(t, store.SaveProcedure(ctx, procedure.Procedure{ID: "x", Nickname: "no steps"}))
}

func TestChemicalRoundTripWithTags(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	bw := inventory.Tag{ID: "t-bw", Title: "B&W", Color: "#000000"}
	stock := inventory.Tag{ID: "t-stock", Title: "Stock", Color: "#4CAF50"}
	require.NoError(t, store.SaveTag(ctx, bw))
	require.NoError(t, store.SaveTag(ctx, stock))

	expiry := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	chem := inventory.Chemical{
		ID: "c-1", Nickname: "DD-X", Units: inventory.UnitMillilitre,
		Max: 1000, Current: 640.5, Expiry: &expiry, Notes: "opened June",
		Tags: []inventory.Tag{stock, bw}, CreatedAt: created,
	}
	require.NoError(t, store.SaveChemical(ctx, chem))

	got, err := store.GetChemical(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "DD-X", got.Nickname)
	assert.Equal(t, 640.5, got.Current)
	require.NotNil(t, got.Expiry)
	assert.True(t, got.Expiry.Equal(expiry))
	assert.True(t, got.CreatedAt.Equal(created))
	assert.Equal(t, []inventory.Tag{stock, bw}, got.Tags)

	plain := inventory.Chemical{ID: "c-2", Nickname: "acetic acid", Units: inventory.UnitMillilitre, Max: 500, CreatedAt: created}
	require.NoError(t, store.SaveChemical(ctx, plain))
	list, err := store.ListChemicals(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "acetic acid", list[0].Nickname)
	assert.Nil(t, list[0].Expiry)
	assert.Empty(t, list[0].Tags)
	assert.Len(t, list[1].Tags, 2)

	require.NoError(t, store.DeleteTag(ctx, bw.ID))
	got, err = store.GetChemical(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, []inventory.Tag{stock}, got.Tags)
	assert.True(t, errors.Is(store.DeleteTag(ctx, bw.ID), inventory.ErrNotFound))

	tags, err := store.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []inventory.Tag{stock}, tags)

	require.NoError(t, store.DeleteChemical(ctx, "c-1"))
	_, err = store.GetChemical(ctx, "c-1")
	assert.True(t, errors.Is(err, inventory.ErrNotFound))
	assert.True(t, errors.Is(store.DeleteChemical(ctx, "c-1"), inventory.ErrNotFound))
}

func TestUpdateChemicalsRollsBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.SaveChemical(ctx, inventory.Chemical{ID: "c-1", Nickname: "Fixer", Units: inventory.UnitLitre, Max: 1, Current: 1, CreatedAt: created}))

	boom := errors.New("boom")
	err := store.UpdateChemicals(ctx, func(tx inventory.Tx) error {
		chem, err := tx.GetChemical(ctx, "c-1")
		if err != nil {
			return err
		}
		chem.Current = 0.25
		if err := tx.SaveChemical(ctx, chem); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetChemical(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Current)
}

func TestLedgerMixtureOverSQLite(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ledger, err := inventory.NewLedger(store)
	require.NoError(t, err)

	stock, err := ledger.Add(ctx, inventory.Chemical{Nickname: "HC-110", Max: 1000, Current: 100})
	require.NoError(t, err)
	water, err := ledger.Add(ctx, inventory.Chemical{Nickname: "Water", Max: 4000, Current: 4000})
	require.NoError(t, err)

	_, err = ledger.Add(ctx, inventory.Chemical{Nickname: "Dilution B", Max: 1000, Current: 1000},
		inventory.Component{ChemicalID: water.ID, Amount: 969},
		inventory.Component{ChemicalID: stock.ID, Amount: 131},
	)
	require.ErrorIs(t, err, inventory.ErrInsufficient)
	got, err := store.GetChemical(ctx, water.ID)
	require.NoError(t, err)
	assert.Equal(t, 4000.0, got.Current)

	mix, err := ledger.Add(ctx, inventory.Chemical{Nickname: "Dilution B", Max: 1000, Current: 1000},
		inventory.Component{ChemicalID: water.ID, Amount: 969},
		inventory.Component{ChemicalID: stock.ID, Amount: 31},
	)
	require.NoError(t, err)
	got, err = store.GetChemical(ctx, mix.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dilution B", got.Nickname)
	got, err = store.GetChemical(ctx, stock.ID)
	require.NoError(t, err)
	assert.Equal(t, 69.0, got.Current)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveTag(context.Background(), inventory.Tag{ID: "t", Title: "C-41", Color: "#FF9800"}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	tag, err := reopened.GetTag(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "C-41", tag.Title)
}
