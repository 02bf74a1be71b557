package codec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvsql/internal/core"
)

func TestRowRoundTrip(t *testing.T) {
	rows := []core.Row{
		{},
		{core.Null},
		{core.NewInt(0), core.NewInt(-1), core.NewInt(1<<63 - 1), core.NewInt(-1 << 63)},
		{core.NewBool(true), core.NewBool(false)},
		{core.NewText(""), core.NewText("foo"), core.NewText("ünïcode £")},
		{core.NewInt(1), core.NewInt(4), core.NewText("foo"), core.Null, core.NewBool(true)},
	}
	for _, row := range rows {
		decoded, err := DecodeRow(EncodeRow(row))
		require.NoError(t, err)
		require.Len(t, decoded, len(row))
		for i := range row {
			assert.True(t, row[i].Equal(decoded[i]), "index %d: %s vs %s", i, row[i], decoded[i])
		}
	}
}

func TestRowRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	letters := []rune("abcdefghij ,.-")
	for trial := 0; trial < 200; trial++ {
		row := make(core.Row, rng.Intn(8))
		for i := range row {
			switch rng.Intn(4) {
			case 0:
				row[i] = core.Null
			case 1:
				row[i] = core.NewInt(rng.Int63() - rng.Int63())
			case 2:
				row[i] = core.NewBool(rng.Intn(2) == 0)
			default:
				text := make([]rune, rng.Intn(12))
				for j := range text {
					text[j] = letters[rng.Intn(len(letters))]
				}
				row[i] = core.NewText(string(text))
			}
		}
		decoded, err := DecodeRow(EncodeRow(row))
		require.NoError(t, err)
		require.Len(t, decoded, len(row))
		for i := range row {
			require.True(t, row[i].Equal(decoded[i]))
		}
	}
}

func TestDecodeRowMalformed(t *testing.T) {
	_, err := DecodeRow([]byte{})
	assert.Error(t, err)
	_, err = DecodeRow([]byte{0x02, 0x01}) // arity 2, truncated after one tag
	assert.Error(t, err)
	_, err = DecodeRow([]byte{0x01, 0xff}) // unknown tag
	assert.Error(t, err)
	_, err = DecodeRow(append(EncodeRow(core.Row{core.Null}), 0x00)) // trailing byte
	assert.Error(t, err)
}

// Byte order of encoded primary keys must agree with the SQL order of the
// values.
func TestPrimaryKeyOrder(t *testing.T) {
	prefix := TablePrefix(1)
	ordered := [][]core.Value{
		{core.NewInt(-1 << 63), core.NewInt(-42), core.NewInt(-1), core.NewInt(0), core.NewInt(1), core.NewInt(42), core.NewInt(1<<63 - 1)},
		{core.NewText(""), core.NewText("a"), core.NewText("ab"), core.NewText("b"), core.NewText("ba")},
		{core.NewBool(false), core.NewBool(true)},
	}
	for _, values := range ordered {
		for i := 0; i+1 < len(values); i++ {
			a, err := PrimaryKey(prefix, values[i])
			require.NoError(t, err)
			b, err := PrimaryKey(prefix, values[i+1])
			require.NoError(t, err)
			assert.Negative(t, bytes.Compare(a, b), "%s should order before %s", values[i], values[i+1])
		}
	}
}

func TestPrimaryKeyRejects(t *testing.T) {
	prefix := TablePrefix(1)
	_, err := PrimaryKey(prefix, core.Null)
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
	_, err = PrimaryKey(prefix, core.NewText("a\x00b"))
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
}

func TestRowIDKeys(t *testing.T) {
	prefix := TablePrefix(7)
	var prev []byte
	for id := uint64(1); id < 300; id += 17 {
		key := RowIDKey(prefix, id)
		back, err := RowID(prefix, key)
		require.NoError(t, err)
		assert.Equal(t, id, back)
		if prev != nil {
			assert.Negative(t, bytes.Compare(prev, key))
		}
		prev = key
	}
	_, err := RowID(prefix, []byte("short"))
	assert.Error(t, err)
}

// Table prefixes must never collide with each other or with the catalog
// prefix: no prefix may be a prefix of another.
func TestPrefixesArePrefixFree(t *testing.T) {
	prefixes := [][]byte{CatalogPrefix()}
	for id := uint64(1); id < 300; id++ {
		prefixes = append(prefixes, TablePrefix(id))
	}
	for i, a := range prefixes {
		for j, b := range prefixes {
			if i == j {
				continue
			}
			assert.False(t, bytes.HasPrefix(b, a), "prefix %x contains %x", b, a)
		}
	}
}

func TestSchemaRoundTrip(t *testing.T) {
	table := &core.Table{
		Name: "t",
		ID:   3,
		Columns: []*core.Column{
			{Name: "v1", Type: core.TypeInt, PrimaryKey: true},
			{Name: "v2", Type: core.TypeBool},
			{Name: "v3", Type: core.TypeText},
		},
	}
	decoded, err := DecodeSchema("t", EncodeSchema(table))
	require.NoError(t, err)
	assert.Equal(t, table, decoded)

	noPK := &core.Table{Name: "n", ID: 9, Columns: []*core.Column{{Name: "a", Type: core.TypeText}}}
	decoded, err = DecodeSchema("n", EncodeSchema(noPK))
	require.NoError(t, err)
	assert.Equal(t, noPK, decoded)
	assert.Equal(t, -1, decoded.PrimaryKeyIndex())
}

func TestCatalogKeys(t *testing.T) {
	key := CatalogKey("Users")
	assert.True(t, bytes.HasPrefix(key, CatalogPrefix()))
	assert.Equal(t, "users", CatalogName(key))
}
