// Package schema describes the shape of the data flowing through the engine:
// an ordered list of uniquely named, typed fields.
package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
)

// Field is a named, typed column of a [Schema].
type Field struct {
	Name string
	Type DataType
}

func (f Field) String() string {
	return f.Name + ":" + f.Type.String()
}

// Schema is an ordered sequence of fields with unique names. The order of
// fields is significant: columns of a batch are bound to fields by position.
//
// The zero value is an empty schema. A Schema is immutable; all methods
// returning a Schema return a new value.
type Schema struct {
	fields []Field
}

// New creates a schema from fields. It returns an error if two fields share
// a name or a field has an invalid type.
func New(fields ...Field) (Schema, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Type != Int && f.Type != Bool {
			return Schema{}, fmt.Errorf("field %q: invalid data type %s", f.Name, f.Type)
		}
		if _, ok := seen[f.Name]; ok {
			return Schema{}, fmt.Errorf("%w: %s", errors.ErrDuplicateField, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return Schema{fields: slices.Clone(fields)}, nil
}

// MustNew is like [New] but panics on error.
func MustNew(fields ...Field) Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Parse parses a schema declaration of the form "a:int,b:bool".
func Parse(decl string) (Schema, error) {
	var fields []Field
	for _, part := range strings.Split(decl, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, typ, ok := strings.Cut(part, ":")
		if !ok {
			return Schema{}, fmt.Errorf("invalid field declaration %q, expected name:type", part)
		}
		dt, err := ParseDataType(strings.TrimSpace(typ))
		if err != nil {
			return Schema{}, err
		}
		fields = append(fields, Field{Name: strings.TrimSpace(name), Type: dt})
	}
	return New(fields...)
}

// Len returns the number of fields.
func (s Schema) Len() int { return len(s.fields) }

// Field returns the i-th field.
func (s Schema) Field(i int) Field { return s.fields[i] }

// Fields returns a copy of the fields of s.
func (s Schema) Fields() []Field { return slices.Clone(s.fields) }

// FieldNames returns the names of all fields in order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of the field with the given name, or -1 if s
// has no such field.
func (s Schema) Index(name string) int {
	return slices.IndexFunc(s.fields, func(f Field) bool { return f.Name == name })
}

// DataType returns the type of the field with the given name.
func (s Schema) DataType(name string) (DataType, error) {
	idx := s.Index(name)
	if idx < 0 {
		return Invalid, fmt.Errorf("%w: %s not in schema", errors.ErrFieldNotFound, name)
	}
	return s.fields[idx].Type, nil
}

// Select returns a schema restricted to the named fields, in the order of
// names. Selecting no names returns an empty schema.
func (s Schema) Select(names ...string) (Schema, error) {
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		idx := s.Index(name)
		if idx < 0 {
			return Schema{}, fmt.Errorf("%w: %s not in schema", errors.ErrFieldNotFound, name)
		}
		fields = append(fields, s.fields[idx])
	}
	return New(fields...)
}

// Equal reports whether s and other have the same fields in the same order.
func (s Schema) Equal(other Schema) bool {
	return slices.Equal(s.fields, other.fields)
}

// Arrow returns the arrow schema equivalent to s.
func (s Schema) Arrow() *arrow.Schema {
	fields := make([]arrow.Field, len(s.fields))
	for i, f := range s.fields {
		fields[i] = arrow.Field{Name: f.Name, Type: f.Type.Arrow()}
	}
	return arrow.NewSchema(fields, nil)
}

// FromArrow converts an arrow schema into a Schema. It fails if a field has
// a type other than int64 or boolean.
func FromArrow(as *arrow.Schema) (Schema, error) {
	fields := make([]Field, as.NumFields())
	for i, af := range as.Fields() {
		dt := FromArrowType(af.Type)
		if dt == Invalid {
			return Schema{}, fmt.Errorf("%w: field %s has unsupported arrow type %s", errors.ErrSchemaMismatch, af.Name, af.Type)
		}
		fields[i] = Field{Name: af.Name, Type: dt}
	}
	return New(fields...)
}

// String returns the schema in declaration form, for example "a:int,b:bool".
func (s Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, ",")
}
