// Package types contains shared types used across multiple packages to avoid import cycles.
package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ValueKind identifies the scalar stored in a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindText
	KindInteger
	KindReal
	// KindRaw holds an unevaluated token or expression exactly as written.
	KindRaw
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindRaw:
		return "raw"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a tagged scalar used for record fields, record keys and
// simulated row state.
type Value struct {
	Kind ValueKind
	Str  string // text payload, or the token text for KindRaw
	Int  int64
	Real float64
}

// Null returns the SQL NULL value.
func Null() Value { return Value{Kind: KindNull} }

// Text returns a text value.
func Text(s string) Value { return Value{Kind: KindText, Str: s} }

// Integer returns an integer value.
func Integer(i int64) Value { return Value{Kind: KindInteger, Int: i} }

// Real returns a floating point value.
func Real(f float64) Value { return Value{Kind: KindReal, Real: f} }

// Raw returns a value that keeps the original token text unevaluated.
func Raw(token string) Value { return Value{Kind: KindRaw, Str: token} }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsNumeric reports whether v holds an integer or real.
func (v Value) IsNumeric() bool { return v.Kind == KindInteger || v.Kind == KindReal }

// Float returns the numeric payload as float64. Non-numeric values return false.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindInteger:
		return float64(v.Int), true
	case KindReal:
		return v.Real, true
	default:
		return 0, false
	}
}

// Equal compares two values. Integers and reals compare numerically,
// NULL equals NULL, everything else compares by kind and payload.
func (v Value) Equal(o Value) bool {
	if v.IsNumeric() && o.IsNumeric() {
		if v.Kind == KindInteger && o.Kind == KindInteger {
			return v.Int == o.Int
		}
		a, _ := v.Float()
		b, _ := o.Float()
		return a == b
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	default:
		return v.Str == o.Str
	}
}

// String renders the value for humans: text without quotes, NULL as "NULL".
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindReal:
		return strconv.FormatFloat(v.Real, 'f', -1, 64)
	default:
		return v.Str
	}
}

// SQL renders the value as a SQLite literal that parses back to the same value.
func (v Value) SQL() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindText:
		return "'" + strings.ReplaceAll(v.Str, "'", "''") + "'"
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindReal:
		if math.IsInf(v.Real, 0) || math.IsNaN(v.Real) {
			return "NULL"
		}
		s := strconv.FormatFloat(v.Real, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	default:
		return v.Str
	}
}

// ValueOf converts a value scanned from database/sql into a Value.
// Drivers return int64, float64, []byte, string, bool, time.Time or nil.
func ValueOf(x interface{}) Value {
	if i, ok := toInt64(x); ok {
		return Integer(i)
	}
	switch t := x.(type) {
	case nil:
		return Null()
	case float64:
		return Real(t)
	case float32:
		return Real(float64(t))
	case []byte:
		return Text(string(t))
	case string:
		return Text(t)
	case bool:
		if t {
			return Integer(1)
		}
		return Integer(0)
	case time.Time:
		return Text(t.Format(time.RFC3339Nano))
	default:
		return Raw(fmt.Sprint(t))
	}
}

// toInt64 converts the integer family to int64.
func toInt64(v interface{}) (int64, bool) {
	switch i := v.(type) {
	case int64:
		return i, true
	case int:
		return int64(i), true
	case int32:
		return int64(i), true
	case int16:
		return int64(i), true
	case int8:
		return int64(i), true
	case uint:
		return int64(i), true
	case uint64:
		return int64(i), true
	case uint32:
		return int64(i), true
	case uint16:
		return int64(i), true
	case uint8:
		return int64(i), true
	default:
		return 0, false
	}
}
