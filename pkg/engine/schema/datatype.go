package schema

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// DataType is the type of the values of a column.
type DataType int

const (
	// Invalid is the zero value and never a valid field type.
	Invalid DataType = iota

	Int  // Signed 64bit integer.
	Bool // Boolean.
)

var dataTypeStrings = map[DataType]string{
	Invalid: "invalid",
	Int:     "int",
	Bool:    "bool",
}

// String returns the lowercase name of the type, as used in schema
// declarations such as "a:int,b:bool".
func (t DataType) String() string {
	if s, ok := dataTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", t)
}

// ParseDataType parses the lowercase name of a data type.
func ParseDataType(s string) (DataType, error) {
	switch s {
	case "int":
		return Int, nil
	case "bool":
		return Bool, nil
	default:
		return Invalid, fmt.Errorf("unknown data type %q", s)
	}
}

var (
	// ArrowType maps each data type to the arrow type backing its columns.
	ArrowType = map[DataType]arrow.DataType{
		Int:  arrow.PrimitiveTypes.Int64,
		Bool: arrow.FixedWidthTypes.Boolean,
	}
)

// Arrow returns the arrow type backing columns of type t.
func (t DataType) Arrow() arrow.DataType {
	return ArrowType[t]
}

// FromArrowType returns the data type of an arrow type. It returns Invalid
// for arrow types that have no equivalent.
func FromArrowType(dt arrow.DataType) DataType {
	switch dt.ID() {
	case arrow.INT64:
		return Int
	case arrow.BOOL:
		return Bool
	default:
		return Invalid
	}
}
