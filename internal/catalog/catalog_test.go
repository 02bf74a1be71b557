package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kvsql/internal/codec"
	"kvsql/internal/core"
	"kvsql/internal/storage"
)

func testTable(name string) *core.Table {
	return &core.Table{
		Name: name,
		Columns: []*core.Column{
			{Name: "id", Type: core.TypeInt, PrimaryKey: true},
			{Name: "label", Type: core.TypeText},
		},
	}
}

func TestCreateLookupList(t *testing.T) {
	store := storage.NewMemory()
	cat, err := Open(store, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, cat.Create(testTable("b")))
	require.NoError(t, cat.Create(testTable("a")))

	table, err := cat.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, "a", table.Name)
	assert.Equal(t, uint64(2), table.ID)

	// Lookup folds case.
	table, err = cat.Lookup("A")
	require.NoError(t, err)
	assert.Equal(t, "a", table.Name)

	_, err = cat.Lookup("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	names := []string{}
	for _, table := range cat.List() {
		names = append(names, table.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestCreateDuplicate(t *testing.T) {
	cat, err := Open(storage.NewMemory(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, cat.Create(testTable("t")))
	err = cat.Create(testTable("T"))
	assert.ErrorIs(t, err, core.ErrAlreadyExists)
}

func TestCreateInvalidSchema(t *testing.T) {
	cat, err := Open(storage.NewMemory(), zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, cat.Create(&core.Table{Name: "t"}))
}

func TestDropRemovesRowsThenSchema(t *testing.T) {
	store := storage.NewMemory()
	cat, err := Open(store, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, cat.Create(testTable("t")))
	table, err := cat.Lookup("t")
	require.NoError(t, err)

	prefix := codec.TablePrefix(table.ID)
	key, err := codec.PrimaryKey(prefix, core.NewInt(1))
	require.NoError(t, err)
	require.NoError(t, store.Put(key, codec.EncodeRow(core.Row{core.NewInt(1), core.NewText("x")})))

	require.NoError(t, cat.Drop("t"))

	it, err := store.Scan(prefix)
	require.NoError(t, err)
	assert.False(t, it.Next())
	require.NoError(t, it.Close())

	_, err = cat.Lookup("t")
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = cat.Drop("t")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReopenLoadsSchemas(t *testing.T) {
	store := storage.NewMemory()
	cat, err := Open(store, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, cat.Create(testTable("t")))

	reopened, err := Open(store, zap.NewNop())
	require.NoError(t, err)
	table, err := reopened.Lookup("t")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), table.ID)
	require.Len(t, table.Columns, 2)
	assert.True(t, table.Columns[0].PrimaryKey)
	assert.Equal(t, core.TypeText, table.Columns[1].Type)
}

func TestIDsSkipPastExisting(t *testing.T) {
	cat, err := Open(storage.NewMemory(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, cat.Create(testTable("a")))
	require.NoError(t, cat.Create(testTable("b")))
	require.NoError(t, cat.Drop("a"))
	require.NoError(t, cat.Create(testTable("c")))
	table, err := cat.Lookup("c")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), table.ID)
}
