package types

import "fmt"

// BinaryOp denotes the kind of binary operation to perform.
type BinaryOp int

// Recognized values of [BinaryOp].
const (
	// BinaryOpInvalid indicates an invalid binary operation.
	BinaryOpInvalid BinaryOp = iota

	BinaryOpAdd // Addition operation (+).
	BinaryOpSub // Subtraction operation (-).
	BinaryOpMul // Multiplication operation (*).
	BinaryOpDiv // Truncating division operation (/).
	BinaryOpMod // Truncating remainder operation (%).

	BinaryOpEq  // Equality comparison (=).
	BinaryOpNeq // Inequality comparison (!=).
	BinaryOpGt  // Greater than comparison (>).
	BinaryOpGte // Greater than or equal comparison (>=).
	BinaryOpLt  // Less than comparison (<).
	BinaryOpLte // Less than or equal comparison (<=).
	BinaryOpAnd // Logical AND operation.
	BinaryOpOr  // Logical OR operation.
)

var binaryOpStrings = map[BinaryOp]string{
	BinaryOpInvalid: "invalid",

	BinaryOpAdd: "ADD",
	BinaryOpSub: "SUB",
	BinaryOpMul: "MUL",
	BinaryOpDiv: "DIV",
	BinaryOpMod: "MOD",

	BinaryOpEq:  "EQ",
	BinaryOpNeq: "NEQ",
	BinaryOpGt:  "GT",
	BinaryOpGte: "GTE",
	BinaryOpLt:  "LT",
	BinaryOpLte: "LTE",
	BinaryOpAnd: "AND",
	BinaryOpOr:  "OR",
}

var binaryOpSymbols = map[BinaryOp]string{
	BinaryOpAdd: "+",
	BinaryOpSub: "-",
	BinaryOpMul: "*",
	BinaryOpDiv: "/",
	BinaryOpMod: "%",

	BinaryOpEq:  "=",
	BinaryOpNeq: "!=",
	BinaryOpGt:  ">",
	BinaryOpGte: ">=",
	BinaryOpLt:  "<",
	BinaryOpLte: "<=",
	BinaryOpAnd: "AND",
	BinaryOpOr:  "OR",
}

// String returns a human-readable representation of the binary operation.
func (op BinaryOp) String() string {
	if s, ok := binaryOpStrings[op]; ok {
		return s
	}
	return fmt.Sprintf("BinaryOp(%d)", op)
}

// Symbol returns the infix symbol of the operation as it is written in
// expressions, for example "+" or ">=".
func (op BinaryOp) Symbol() string {
	if s, ok := binaryOpSymbols[op]; ok {
		return s
	}
	return op.String()
}

// IsMath reports whether op belongs to the arithmetic family.
func (op BinaryOp) IsMath() bool {
	return op >= BinaryOpAdd && op <= BinaryOpMod
}

// IsComparison reports whether op compares two values.
func (op BinaryOp) IsComparison() bool {
	return op >= BinaryOpEq && op <= BinaryOpLte
}

// IsLogical reports whether op is AND or OR.
func (op BinaryOp) IsLogical() bool {
	return op == BinaryOpAnd || op == BinaryOpOr
}

// IsBoolean reports whether op belongs to the boolean family, i.e. it
// always produces a boolean result.
func (op BinaryOp) IsBoolean() bool {
	return op.IsComparison() || op.IsLogical()
}

// AggregationType denotes the kind of aggregation to apply to the values of a group.
type AggregationType int

// Recognized values of [AggregationType].
const (
	// AggregationTypeInvalid indicates an invalid aggregation.
	AggregationTypeInvalid AggregationType = iota

	AggregationTypeSum   // Sum of all values.
	AggregationTypeMin   // Smallest value.
	AggregationTypeMax   // Largest value.
	AggregationTypeAvg   // Truncating average of all values.
	AggregationTypeCount // Number of rows.
)

var aggregationTypeStrings = map[AggregationType]string{
	AggregationTypeInvalid: "invalid",

	AggregationTypeSum:   "SUM",
	AggregationTypeMin:   "MIN",
	AggregationTypeMax:   "MAX",
	AggregationTypeAvg:   "AVG",
	AggregationTypeCount: "COUNT",
}

// String returns the string representation of the AggregationType.
func (t AggregationType) String() string {
	if s, ok := aggregationTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("AggregationType(%d)", t)
}
