package execution

import (
	"fmt"
	"strings"

	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/storage"
)

type ComparisonType int

const (
	Equal ComparisonType = iota
	NotEqual
	GreaterThan
	LessThan
	GreaterThanOrEqual
	LessThanOrEqual
)

func (c ComparisonType) String() string {
	switch c {
	case Equal:
		return "="
	case NotEqual:
		return "!="
	case GreaterThan:
		return ">"
	case LessThan:
		return "<"
	case GreaterThanOrEqual:
		return ">="
	case LessThanOrEqual:
		return "<="
	}
	return "???"
}

// ParseComparisonType parses the symbol printed by ComparisonType.String. "==" and "<>" are accepted too.
func ParseComparisonType(s string) (ComparisonType, error) {
	switch strings.TrimSpace(s) {
	case "=", "==":
		return Equal, nil
	case "!=", "<>":
		return NotEqual, nil
	case ">":
		return GreaterThan, nil
	case "<":
		return LessThan, nil
	case ">=":
		return GreaterThanOrEqual, nil
	case "<=":
		return LessThanOrEqual, nil
	}
	return Equal, common.NewError(common.ConfigurationError, "unknown comparison '%s'", s)
}

// Predicate compares one field of a tuple against a constant operand.
type Predicate struct {
	field   int
	op      ComparisonType
	operand common.Value
}

func NewPredicate(field int, op ComparisonType, operand common.Value) Predicate {
	return Predicate{field: field, op: op, operand: operand}
}

func (p Predicate) Field() int {
	return p.field
}

func (p Predicate) Op() ComparisonType {
	return p.op
}

func (p Predicate) Operand() common.Value {
	return p.operand
}

// Filter reports whether t satisfies the predicate. A field of a different type than the operand is never
// equal to it, and is neither smaller nor greater.
func (p Predicate) Filter(t *storage.Tuple) bool {
	val := t.GetValue(p.field)
	if val.Type() != p.operand.Type() {
		return p.op == NotEqual
	}

	cmp := val.Compare(p.operand)
	switch p.op {
	case Equal:
		return cmp == 0
	case NotEqual:
		return cmp != 0
	case GreaterThan:
		return cmp > 0
	case LessThan:
		return cmp < 0
	case GreaterThanOrEqual:
		return cmp >= 0
	case LessThanOrEqual:
		return cmp <= 0
	}
	return false
}

func (p Predicate) String() string {
	operand := p.operand.String()
	if p.operand.Type() == common.StringType {
		operand = fmt.Sprintf("'%s'", operand)
	}
	return fmt.Sprintf("($%d %s %s)", p.field, p.op, operand)
}
