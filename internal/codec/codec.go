// Package codec defines the byte layout of everything the engine stores:
// table key prefixes, order-preserving primary-key encodings, rowid keys,
// and the tag-prefixed tuple encoding used for row values and catalog
// entries. The key space partitions by table prefix; catalog entries live
// under a reserved prefix no table id can collide with.
package codec

import (
	"encoding/binary"
	"fmt"
	"strings"

	"kvsql/internal/core"
)

// catalogPrefix is the reserved first byte of every catalog key. Table ids
// start at 1, and the uvarint encoding of any id >= 1 never begins with
// 0x00, so table prefixes cannot collide with it.
const catalogPrefix = 0x00

// Value type tags inside the tuple encoding.
const (
	tagNull = 0x00
	tagInt  = 0x01
	tagBool = 0x02
	tagText = 0x03
)

// TablePrefix returns the key prefix owned by the table with the given id.
func TablePrefix(id uint64) []byte {
	return binary.AppendUvarint(nil, id)
}

// CatalogKey returns the catalog entry key for a table name.
func CatalogKey(name string) []byte {
	key := make([]byte, 0, 1+len(name))
	key = append(key, catalogPrefix)
	return append(key, strings.ToLower(name)...)
}

// CatalogPrefix returns the prefix covering every catalog entry.
func CatalogPrefix() []byte {
	return []byte{catalogPrefix}
}

// CatalogName recovers the table name from a catalog entry key.
func CatalogName(key []byte) string {
	return string(key[1:])
}

// PrimaryKey encodes a primary-key value so that byte order agrees with
// the SQL order of the values: ints are big-endian with the sign bit
// flipped, text is the raw UTF-8 bytes with a NUL terminator, bools are a
// single byte. Null is not allowed as a primary key, and primary-key text
// may not contain NUL.
func PrimaryKey(prefix []byte, v core.Value) ([]byte, error) {
	key := append([]byte(nil), prefix...)
	switch v.Kind() {
	case core.KindInt:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(v.Int())^(1<<63))
		return append(key, buf[:]...), nil
	case core.KindText:
		s := v.Text()
		if strings.IndexByte(s, 0x00) >= 0 {
			return nil, fmt.Errorf("%w: primary key text may not contain a NUL byte", core.ErrTypeMismatch)
		}
		key = append(key, s...)
		return append(key, 0x00), nil
	case core.KindBool:
		if v.Bool() {
			return append(key, 0x01), nil
		}
		return append(key, 0x00), nil
	case core.KindNull:
		return nil, fmt.Errorf("%w: primary key must not be NULL", core.ErrTypeMismatch)
	}
	return nil, fmt.Errorf("%w: unsupported primary key kind", core.ErrTypeMismatch)
}

// RowIDKey encodes the key of a row in a table without a primary key. The
// fixed-width big-endian counter keeps insertion order equal to byte order.
func RowIDKey(prefix []byte, rowID uint64) []byte {
	key := append([]byte(nil), prefix...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], rowID)
	return append(key, buf[:]...)
}

// RowID recovers the rowid from a key produced by RowIDKey.
func RowID(prefix, key []byte) (uint64, error) {
	if len(key) != len(prefix)+8 {
		return 0, fmt.Errorf("malformed rowid key of length %d", len(key))
	}
	return binary.BigEndian.Uint64(key[len(prefix):]), nil
}

// EncodeRow encodes a full row tuple (including the pk column) as a
// length-tagged sequence of values. This form does not preserve order;
// only keys do.
func EncodeRow(row core.Row) []byte {
	buf := binary.AppendUvarint(nil, uint64(len(row)))
	for _, v := range row {
		buf = appendValue(buf, v)
	}
	return buf
}

// DecodeRow decodes a tuple previously produced by EncodeRow.
func DecodeRow(data []byte) (core.Row, error) {
	n, rest, err := readUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("decode row arity: %w", err)
	}
	row := make(core.Row, 0, n)
	for i := uint64(0); i < n; i++ {
		var v core.Value
		v, rest, err = readValue(rest)
		if err != nil {
			return nil, fmt.Errorf("decode row value %d: %w", i, err)
		}
		row = append(row, v)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode row: %d trailing bytes", len(rest))
	}
	return row, nil
}

func appendValue(buf []byte, v core.Value) []byte {
	switch v.Kind() {
	case core.KindNull:
		return append(buf, tagNull)
	case core.KindInt:
		buf = append(buf, tagInt)
		return binary.AppendVarint(buf, v.Int())
	case core.KindBool:
		buf = append(buf, tagBool)
		if v.Bool() {
			return append(buf, 0x01)
		}
		return append(buf, 0x00)
	case core.KindText:
		buf = append(buf, tagText)
		buf = binary.AppendUvarint(buf, uint64(len(v.Text())))
		return append(buf, v.Text()...)
	}
	panic(fmt.Sprintf("unreachable value kind %d", v.Kind()))
}

func readValue(data []byte) (core.Value, []byte, error) {
	if len(data) == 0 {
		return core.Null, nil, fmt.Errorf("truncated value")
	}
	tag, rest := data[0], data[1:]
	switch tag {
	case tagNull:
		return core.Null, rest, nil
	case tagInt:
		i, n := binary.Varint(rest)
		if n <= 0 {
			return core.Null, nil, fmt.Errorf("truncated int payload")
		}
		return core.NewInt(i), rest[n:], nil
	case tagBool:
		if len(rest) == 0 {
			return core.Null, nil, fmt.Errorf("truncated bool payload")
		}
		return core.NewBool(rest[0] != 0), rest[1:], nil
	case tagText:
		n, rest, err := readUvarint(rest)
		if err != nil {
			return core.Null, nil, fmt.Errorf("text length: %w", err)
		}
		if uint64(len(rest)) < n {
			return core.Null, nil, fmt.Errorf("truncated text payload")
		}
		return core.NewText(string(rest[:n])), rest[n:], nil
	}
	return core.Null, nil, fmt.Errorf("unknown value tag 0x%02x", tag)
}

func readUvarint(data []byte) (uint64, []byte, error) {
	n, size := binary.Uvarint(data)
	if size <= 0 {
		return 0, nil, fmt.Errorf("truncated uvarint")
	}
	return n, data[size:], nil
}

// EncodeSchema flattens a table schema into the tuple codec: id, primary
// key index (-1 when absent), then a (name, type) pair per column.
func EncodeSchema(t *core.Table) []byte {
	row := core.Row{core.NewInt(int64(t.ID)), core.NewInt(int64(t.PrimaryKeyIndex()))}
	for _, c := range t.Columns {
		row = append(row, core.NewText(c.Name), core.NewInt(int64(c.Type)))
	}
	return EncodeRow(row)
}

// DecodeSchema rebuilds a table schema from a catalog entry.
func DecodeSchema(name string, data []byte) (*core.Table, error) {
	row, err := DecodeRow(data)
	if err != nil {
		return nil, fmt.Errorf("decode schema for %q: %w", name, err)
	}
	if len(row) < 2 || (len(row)-2)%2 != 0 {
		return nil, fmt.Errorf("decode schema for %q: malformed entry of arity %d", name, len(row))
	}
	t := &core.Table{Name: name, ID: uint64(row[0].Int())}
	pk := int(row[1].Int())
	for i := 2; i < len(row); i += 2 {
		t.Columns = append(t.Columns, &core.Column{
			Name: row[i].Text(),
			Type: core.Type(row[i+1].Int()),
		})
	}
	if pk >= 0 {
		if pk >= len(t.Columns) {
			return nil, fmt.Errorf("decode schema for %q: primary key index %d out of range", name, pk)
		}
		t.Columns[pk].PrimaryKey = true
	}
	return t, nil
}
