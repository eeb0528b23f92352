package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func studentSchema() Schema {
	return Schema{Cols: []Column{
		{Name: "id", Type: ColInt, PrimaryKey: true},
		{Name: "name", Type: ColVarchar, Param: 16, Nullable: true},
		{Name: "active", Type: ColBool, Nullable: true},
	}}
}

func TestRowCodec_RoundTrip(t *testing.T) {
	s := studentSchema()

	tests := []struct {
		desc string
		row  []any
	}{
		{"all set", []any{int64(1), "ann", true}},
		{"null string", []any{int64(2), nil, false}},
		{"null bool", []any{int64(3), "bob", nil}},
		{"empty string", []any{int64(4), "", true}},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			buf, err := EncodeRow(s, tc.row)
			require.NoError(t, err)

			got, err := DecodeRow(s, buf)
			require.NoError(t, err)
			assert.Equal(t, tc.row, got)
		})
	}
}

func TestRowCodec_EncodeErrors(t *testing.T) {
	s := studentSchema()

	_, err := EncodeRow(s, []any{int64(1), "ann"})
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = EncodeRow(s, []any{"not an int", "ann", true})
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	// 17 bytes into VARCHAR(16).
	_, err = EncodeRow(s, []any{int64(1), "aaaaaaaaaaaaaaaaa", true})
	assert.ErrorIs(t, err, ErrVarTooLong)
}

func TestRowCodec_EncodeAcceptsIntKinds(t *testing.T) {
	s := Schema{Cols: []Column{{Name: "n", Type: ColInt}}}

	for _, v := range []any{int(5), int32(5), int64(5)} {
		buf, err := EncodeRow(s, []any{v})
		require.NoError(t, err)
		got, err := DecodeRow(s, buf)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(5)}, got)
	}
}

func TestRowCodec_DecodeErrors(t *testing.T) {
	s := studentSchema()

	_, err := DecodeRow(s, nil)
	assert.ErrorIs(t, err, ErrDecode)

	// Truncated payload: header says 3 non-null columns but the
	// buffer ends inside the INT field.
	buf, err := EncodeRow(s, []any{int64(1), "ann", true})
	require.NoError(t, err)
	_, err = DecodeRow(s, buf[:5])
	assert.ErrorIs(t, err, ErrDecode)

	// Column count mismatch.
	other := Schema{Cols: []Column{{Name: "x", Type: ColInt}}}
	_, err = DecodeRow(other, buf)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestRowCodec_DecodeRejectsOversizedVarchar(t *testing.T) {
	// Encode under a wide schema, decode under a narrow one: the
	// stored length exceeds the declared max.
	wide := Schema{Cols: []Column{{Name: "s", Type: ColVarchar, Param: 64}}}
	narrow := Schema{Cols: []Column{{Name: "s", Type: ColVarchar, Param: 4}}}

	buf, err := EncodeRow(wide, []any{"longer than four"})
	require.NoError(t, err)

	_, err = DecodeRow(narrow, buf)
	assert.ErrorIs(t, err, ErrDecode)
}
