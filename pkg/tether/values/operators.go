package values

import (
	"math"
	"reflect"

	terrors "github.com/sambeau/tether/pkg/tether/errors"
)

func operatorError(op string, left, right any) error {
	return terrors.New("OP-0001", map[string]any{
		"Operator":  op,
		"LeftType":  TypeName(left),
		"RightType": TypeName(right),
	})
}

// AutoConvertAdd implements `+`: numeric addition when both operands are
// numbers, concatenation when either operand is a string.
func AutoConvertAdd(left, right any) (any, error) {
	if IsNumber(left) && IsNumber(right) {
		if isInteger(left) && isInteger(right) {
			l, _ := ToInt(left)
			r, _ := ToInt(right)
			return l + r, nil
		}
		l, _ := ToFloat(left)
		r, _ := ToFloat(right)
		return l + r, nil
	}
	_, ls := left.(string)
	_, rs := right.(string)
	if ls || rs {
		return ToString(left) + ToString(right), nil
	}
	return nil, operatorError("+", left, right)
}

// Arith implements `-`, `*`, `/` and `%` on numbers. Integer operands stay
// integers except under `/`, which always yields a float64.
func Arith(op string, left, right any) (any, error) {
	if !IsNumber(left) || !IsNumber(right) {
		return nil, operatorError(op, left, right)
	}

	if isInteger(left) && isInteger(right) && op != "/" {
		l, _ := ToInt(left)
		r, _ := ToInt(right)
		switch op {
		case "-":
			return l - r, nil
		case "*":
			return l * r, nil
		case "%":
			if r == 0 {
				return nil, terrors.New("OP-0002", nil)
			}
			return l % r, nil
		}
		return nil, operatorError(op, left, right)
	}

	l, _ := ToFloat(left)
	r, _ := ToFloat(right)
	switch op {
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		return l / r, nil
	case "%":
		return math.Mod(l, r), nil
	}
	return nil, operatorError(op, left, right)
}

// Bitwise implements `^` (xor) and `&` (and) on integers. Floats without a
// fractional part are accepted.
func Bitwise(op string, left, right any) (any, error) {
	l, lok := ToInt(left)
	r, rok := ToInt(right)
	if !lok || !rok {
		return nil, terrors.New("OP-0003", map[string]any{
			"Operator":  op,
			"LeftType":  TypeName(left),
			"RightType": TypeName(right),
		})
	}
	switch op {
	case "^":
		return l ^ r, nil
	case "&":
		return l & r, nil
	}
	return nil, operatorError(op, left, right)
}

// Equal reports whether two values are equal. Numbers compare by value
// across Go numeric types; containers compare structurally.
func Equal(left, right any) bool {
	if IsNull(left) || IsNull(right) {
		return IsNull(left) && IsNull(right)
	}
	if IsNumber(left) && IsNumber(right) {
		if isInteger(left) && isInteger(right) {
			l, _ := ToInt(left)
			r, _ := ToInt(right)
			return l == r
		}
		l, _ := ToFloat(left)
		r, _ := ToFloat(right)
		return l == r
	}

	switch l := left.(type) {
	case string:
		r, ok := right.(string)
		return ok && l == r
	case bool:
		r, ok := right.(bool)
		return ok && l == r
	case *Map:
		r, ok := right.(*Map)
		if !ok {
			return false
		}
		return mapsEqual(l, r)
	case []any:
		r, ok := right.([]any)
		if !ok {
			return false
		}
		return listsEqual(l, r)
	case *List:
		r, ok := right.(*List)
		if !ok {
			return false
		}
		return l == r || listsEqual(l.Elements, r.Elements)
	}

	lt := reflect.TypeOf(left)
	if lt != reflect.TypeOf(right) {
		return false
	}
	// A comparable type can still hold an interface field whose dynamic
	// value is not comparable; == would panic on it.
	if lt.Comparable() && reflect.ValueOf(left).Comparable() && reflect.ValueOf(right).Comparable() {
		return left == right
	}
	if lt.Kind() == reflect.Func {
		return reflect.ValueOf(left).Pointer() == reflect.ValueOf(right).Pointer()
	}
	return reflect.DeepEqual(left, right)
}

func mapsEqual(l, r *Map) bool {
	if l == r {
		return true
	}
	if l.Len() != r.Len() {
		return false
	}
	equal := true
	l.Range(func(k, v any) bool {
		rv, ok := r.Get(k)
		if !ok || !Equal(v, rv) {
			equal = false
		}
		return equal
	})
	return equal
}

func listsEqual(l, r []any) bool {
	if len(l) != len(r) {
		return false
	}
	for i := range l {
		if !Equal(l[i], r[i]) {
			return false
		}
	}
	return true
}

// Relational implements `<`, `>`, `<=` and `>=` on pairs of numbers or pairs
// of strings. Comparisons involving NaN are false.
func Relational(op string, left, right any) (bool, error) {
	if IsNumber(left) && IsNumber(right) {
		if isInteger(left) && isInteger(right) {
			l, _ := ToInt(left)
			r, _ := ToInt(right)
			return compareOrdered(op, l, r)
		}
		l, _ := ToFloat(left)
		r, _ := ToFloat(right)
		return compareOrdered(op, l, r)
	}
	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		return compareOrdered(op, ls, rs)
	}
	return false, operatorError(op, left, right)
}

func compareOrdered[T int | float64 | string](op string, l, r T) (bool, error) {
	switch op {
	case "<":
		return l < r, nil
	case ">":
		return l > r, nil
	case "<=":
		return l <= r, nil
	case ">=":
		return l >= r, nil
	}
	return false, terrors.New("INTERNAL-0001", map[string]any{"Operator": op})
}
