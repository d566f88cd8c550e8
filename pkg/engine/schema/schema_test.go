package schema

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
)

func TestNew(t *testing.T) {
	t.Run("duplicate names are rejected", func(t *testing.T) {
		_, err := New(Field{Name: "a", Type: Int}, Field{Name: "a", Type: Bool})
		require.ErrorIs(t, err, errors.ErrDuplicateField)
	})

	t.Run("invalid types are rejected", func(t *testing.T) {
		_, err := New(Field{Name: "a"})
		require.Error(t, err)
	})

	t.Run("fields keep their order", func(t *testing.T) {
		s, err := New(Field{Name: "c", Type: Int}, Field{Name: "a", Type: Bool}, Field{Name: "b", Type: Int})
		require.NoError(t, err)
		require.Equal(t, []string{"c", "a", "b"}, s.FieldNames())
		require.Equal(t, 3, s.Len())
	})
}

func TestSchema_Select(t *testing.T) {
	s := MustNew(
		Field{Name: "a", Type: Int},
		Field{Name: "b", Type: Bool},
		Field{Name: "c", Type: Int},
		Field{Name: "d", Type: Int},
	)

	for _, tt := range []struct {
		name  string
		names []string
	}{
		{name: "single field", names: []string{"b"}},
		{name: "schema order", names: []string{"a", "c"}},
		{name: "reversed order", names: []string{"d", "c", "b", "a"}},
		{name: "interleaved", names: []string{"c", "a", "d"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			selected, err := s.Select(tt.names...)
			require.NoError(t, err)
			require.Equal(t, tt.names, selected.FieldNames())
			for _, name := range tt.names {
				want, _ := s.DataType(name)
				got, err := selected.DataType(name)
				require.NoError(t, err)
				require.Equal(t, want, got)
			}
		})
	}

	t.Run("empty selection", func(t *testing.T) {
		selected, err := s.Select()
		require.NoError(t, err)
		require.Equal(t, 0, selected.Len())
		require.Equal(t, []string{}, selected.FieldNames())
	})

	t.Run("absent field", func(t *testing.T) {
		_, err := s.Select("a", "x")
		require.ErrorIs(t, err, errors.ErrFieldNotFound)
		require.ErrorContains(t, err, "x not in schema")
	})
}

func TestSchema_DataType(t *testing.T) {
	s := MustNew(Field{Name: "a", Type: Int}, Field{Name: "b", Type: Bool})

	dt, err := s.DataType("b")
	require.NoError(t, err)
	require.Equal(t, Bool, dt)

	_, err = s.DataType("B")
	require.ErrorIs(t, err, errors.ErrFieldNotFound)
}

func TestParse(t *testing.T) {
	s, err := Parse("a:int, b:bool ,c:int")
	require.NoError(t, err)
	require.Equal(t, "a:int,b:bool,c:int", s.String())

	_, err = Parse("a:float")
	require.ErrorContains(t, err, `unknown data type "float"`)

	_, err = Parse("a")
	require.Error(t, err)

	_, err = Parse("a:int,a:int")
	require.ErrorIs(t, err, errors.ErrDuplicateField)
}

func TestArrowConversion(t *testing.T) {
	s := MustNew(Field{Name: "a", Type: Int}, Field{Name: "b", Type: Bool})

	as := s.Arrow()
	require.Equal(t, arrow.INT64, as.Field(0).Type.ID())
	require.Equal(t, arrow.BOOL, as.Field(1).Type.ID())

	back, err := FromArrow(as)
	require.NoError(t, err)
	require.True(t, back.Equal(s))

	_, err = FromArrow(arrow.NewSchema([]arrow.Field{{Name: "s", Type: arrow.BinaryTypes.String}}, nil))
	require.ErrorIs(t, err, errors.ErrSchemaMismatch)
}
