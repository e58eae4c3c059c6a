package factum

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// ValueType enumerates the supported Datom value types. Currently
// unsupported (matching the upstream design this system follows):
// db.type/bigdec, db.type/bigint, db.type/float, db.type/symbol,
// db.type/tuple.
type ValueType uint8

const (
	ValueTypeBoolean ValueType = iota
	ValueTypeDouble
	ValueTypeInstant
	ValueTypeKeyword
	ValueTypeLong
	ValueTypeRef
	ValueTypeString
	ValueTypeUUID
	ValueTypeURI
)

var valueTypeNames = map[ValueType]string{
	ValueTypeBoolean: "db.type/boolean",
	ValueTypeDouble:  "db.type/double",
	ValueTypeInstant: "db.type/instant",
	ValueTypeKeyword: "db.type/keyword",
	ValueTypeLong:    "db.type/long",
	ValueTypeRef:     "db.type/ref",
	ValueTypeString:  "db.type/string",
	ValueTypeUUID:    "db.type/uuid",
	ValueTypeURI:     "db.type/uri",
}

var valueTypeByName = func() map[string]ValueType {
	m := make(map[string]ValueType, len(valueTypeNames))
	for t, name := range valueTypeNames {
		m[name] = t
	}
	return m
}()

func (t ValueType) String() string { return valueTypeNames[t] }

// ParseValueType resolves a "db.type/..." name to its ValueType.
func ParseValueType(name string) (ValueType, bool) {
	t, ok := valueTypeByName[name]
	return t, ok
}

// AllValueTypeNames returns every value type name, used to restrict
// db/valueType to its enumerated set (see builtin attrs in attr.go).
func AllValueTypeNames() []string {
	names := make([]string, 0, len(valueTypeNames))
	for _, name := range valueTypeNames {
		names = append(names, name)
	}
	return names
}

// Value is the tagged union carried by a Datom. It is deliberately not
// erased to `any`: ref-vs-long and instant-vs-long are semantically
// load-bearing, so each value type has its own concrete implementation.
type Value interface {
	Type() ValueType
}

type BoolValue bool

func (v BoolValue) Type() ValueType { return ValueTypeBoolean }

type DoubleValue float64

func (v DoubleValue) Type() ValueType { return ValueTypeDouble }

// InstantValue is milliseconds since the Unix epoch, UTC.
type InstantValue int64

func (v InstantValue) Type() ValueType { return ValueTypeInstant }
func (v InstantValue) Time() time.Time { return IntToTime(int64(v)) }

type KeywordValue string

func (v KeywordValue) Type() ValueType { return ValueTypeKeyword }

type LongValue int64

func (v LongValue) Type() ValueType { return ValueTypeLong }

// RefValue is an entity id. Resolvability (the referenced entity must
// have at least one active attribute) is validated separately, against
// a Database, because it requires a data-dependent lookup.
type RefValue int64

func (v RefValue) Type() ValueType { return ValueTypeRef }

type StringValue string

func (v StringValue) Type() ValueType { return ValueTypeString }

// UUIDValue is a lowercase canonical UUID string.
type UUIDValue string

func (v UUIDValue) Type() ValueType { return ValueTypeUUID }

// URIValue is an RFC3986 URI string.
type URIValue string

func (v URIValue) Type() ValueType { return ValueTypeURI }

// shapeAndWrap checks that raw (a native Go value supplied through Facts)
// matches the native shape expected for t, runs any per-type semantic
// check, and returns the canonical typed Value.
func (t ValueType) shapeAndWrap(raw any, attrIdent string) (Value, error) {
	switch t {
	case ValueTypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, shapeError(attrIdent, t, "bool", raw)
		}
		return BoolValue(b), nil

	case ValueTypeDouble:
		switch n := raw.(type) {
		case float64:
			return DoubleValue(n), nil
		case float32:
			return DoubleValue(float64(n)), nil
		default:
			return nil, shapeError(attrIdent, t, "float64", raw)
		}

	case ValueTypeInstant:
		switch n := raw.(type) {
		case time.Time:
			return InstantValue(TimeToInt(n)), nil
		case int64:
			return InstantValue(n), nil
		case int:
			return InstantValue(int64(n)), nil
		default:
			return nil, shapeError(attrIdent, t, "time.Time or int64", raw)
		}

	case ValueTypeKeyword:
		s, ok := raw.(string)
		if !ok {
			return nil, shapeError(attrIdent, t, "string", raw)
		}
		if err := ValidateKeyword(s); err != nil {
			return nil, err
		}
		return KeywordValue(s), nil

	case ValueTypeLong:
		switch n := raw.(type) {
		case int64:
			return LongValue(n), nil
		case int:
			return LongValue(int64(n)), nil
		default:
			return nil, shapeError(attrIdent, t, "int64", raw)
		}

	case ValueTypeRef:
		switch n := raw.(type) {
		case int64:
			return RefValue(n), nil
		case int:
			return RefValue(int64(n)), nil
		default:
			return nil, shapeError(attrIdent, t, "int64", raw)
		}

	case ValueTypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, shapeError(attrIdent, t, "string", raw)
		}
		return StringValue(s), nil

	case ValueTypeUUID:
		s, ok := raw.(string)
		if !ok {
			return nil, shapeError(attrIdent, t, "string", raw)
		}
		if err := validateUUID(s); err != nil {
			return nil, err
		}
		return UUIDValue(s), nil

	case ValueTypeURI:
		s, ok := raw.(string)
		if !ok {
			return nil, shapeError(attrIdent, t, "string", raw)
		}
		if err := validateURI(s); err != nil {
			return nil, err
		}
		return URIValue(s), nil
	}
	return nil, &ValidationError{Reason: fmt.Sprintf("unknown value type %v", t)}
}

func shapeError(attrIdent string, t ValueType, expected string, got any) error {
	return &ValidationError{Reason: fmt.Sprintf(
		"the attribute %q has value type %q, expected a %s, got %T instead", attrIdent, t.String(), expected, got)}
}

func validateUUID(s string) error {
	// uuid.Parse also accepts braced, URN, and unhyphenated forms; only
	// the 36-character hyphenated form is canonical here.
	if len(s) != 36 || s != toLower(s) {
		return &ValidationError{Reason: fmt.Sprintf("the value %q is not a valid lowercase UUID", s)}
	}
	if _, err := uuid.Parse(s); err != nil {
		return &ValidationError{Reason: fmt.Sprintf("the value %q is not a valid lowercase UUID", s)}
	}
	return nil
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func validateURI(s string) error {
	u, err := url.ParseRequestURI(s)
	if err != nil || u.Scheme == "" {
		return &ValidationError{Reason: fmt.Sprintf("the value %q is not a valid URI", s)}
	}
	return nil
}

// valuesEqual compares two typed Values for equality. Every concrete
// Value type wraps a comparable Go type, so interface equality already
// does the right thing (including Go's usual NaN != NaN for doubles,
// matching the host language semantics this system follows).
func valuesEqual(a, b Value) bool {
	return a == b
}
