package factum

import (
	"errors"
	"fmt"
)

// Cardinality controls whether an attribute holds one value or a set of
// values per entity.
type Cardinality uint8

const (
	CardinalityOne Cardinality = iota
	CardinalityMany
)

func (c Cardinality) String() string {
	if c == CardinalityMany {
		return "db.cardinality/many"
	}
	return "db.cardinality/one"
}

// ParseCardinality resolves a "db.cardinality/..." name.
func ParseCardinality(name string) (Cardinality, bool) {
	switch name {
	case "db.cardinality/one":
		return CardinalityOne, true
	case "db.cardinality/many":
		return CardinalityMany, true
	default:
		return 0, false
	}
}

// Unique controls whether an attribute's values must be distinct across
// entities. UniqueNone means no constraint.
type Unique uint8

const (
	UniqueNone Unique = iota
	UniqueIdentity
	UniqueValue
)

func (u Unique) String() string {
	switch u {
	case UniqueIdentity:
		return "db.unique/identity"
	case UniqueValue:
		return "db.unique/value"
	default:
		return ""
	}
}

// ParseUnique resolves a "db.unique/..." name.
func ParseUnique(name string) (Unique, bool) {
	switch name {
	case "db.unique/identity":
		return UniqueIdentity, true
	case "db.unique/value":
		return UniqueValue, true
	default:
		return 0, false
	}
}

// Attr is an attribute definition: value type, cardinality, uniqueness,
// and (for builtins only) an enumerated set of legal keyword values.
type Attr struct {
	Ident            string
	ValueType        ValueType
	Cardinality      Cardinality
	Unique           Unique
	Doc              string
	RestrictedValues []string // builtins only; nil means unrestricted
}

// IsUnique reports whether this attribute carries a uniqueness
// constraint (identity or value).
func (a Attr) IsUnique() bool { return a.Unique != UniqueNone }

// AttrFromMap reconstructs an Attr from a stored entity map, as
// returned by Database.Get for the entity defining the attribute.
// Required keys: db/valueType, db/cardinality. Optional: db/unique,
// db/doc.
func AttrFromMap(ident string, dct map[string]any) (Attr, error) {
	vtRaw, ok := dct["db/valueType"]
	if !ok {
		return Attr{}, &ValidationError{Reason: fmt.Sprintf("required attribute %q of attribute %q is not defined", "db/valueType", ident)}
	}
	cardRaw, ok := dct["db/cardinality"]
	if !ok {
		return Attr{}, &ValidationError{Reason: fmt.Sprintf("required attribute %q of attribute %q is not defined", "db/cardinality", ident)}
	}

	vtKw, ok := vtRaw.(KeywordValue)
	if !ok {
		return Attr{}, &ValidationError{Reason: fmt.Sprintf("db/valueType of attribute %q is malformed", ident)}
	}
	vt, ok := ParseValueType(string(vtKw))
	if !ok {
		return Attr{}, &ValidationError{Reason: fmt.Sprintf("unknown value type %q for attribute %q", vtKw, ident)}
	}

	cardKw, ok := cardRaw.(KeywordValue)
	if !ok {
		return Attr{}, &ValidationError{Reason: fmt.Sprintf("db/cardinality of attribute %q is malformed", ident)}
	}
	card, ok := ParseCardinality(string(cardKw))
	if !ok {
		return Attr{}, &ValidationError{Reason: fmt.Sprintf("unknown cardinality %q for attribute %q", cardKw, ident)}
	}

	attr := Attr{Ident: ident, ValueType: vt, Cardinality: card}

	if uRaw, ok := dct["db/unique"]; ok {
		uKw, ok := uRaw.(KeywordValue)
		if !ok {
			return Attr{}, &ValidationError{Reason: fmt.Sprintf("db/unique of attribute %q is malformed", ident)}
		}
		u, ok := ParseUnique(string(uKw))
		if !ok {
			return Attr{}, &ValidationError{Reason: fmt.Sprintf("unknown uniqueness %q for attribute %q", uKw, ident)}
		}
		if u != UniqueNone && card != CardinalityOne {
			return Attr{}, &ValidationError{Reason: fmt.Sprintf("attribute %q is set to be unique, so it must have cardinality one", ident)}
		}
		attr.Unique = u
	}
	if dRaw, ok := dct["db/doc"]; ok {
		if dKw, ok := dRaw.(StringValue); ok {
			attr.Doc = string(dKw)
		}
	}
	return attr, nil
}

// ValidateValue runs the shape check for the value type plus, for
// builtin attributes, the restricted_values membership check, and
// returns the canonical typed Value.
func (a Attr) ValidateValue(raw any) (Value, error) {
	v, err := a.ValueType.shapeAndWrap(raw, a.Ident)
	if err != nil {
		return nil, err
	}
	if err := a.validateRestrictedValues(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (a Attr) validateRestrictedValues(v Value) error {
	if a.RestrictedValues == nil {
		return nil
	}
	kv, ok := v.(KeywordValue)
	if !ok {
		return &ValidationError{Reason: fmt.Sprintf("the attribute %q must be one of the values %v, got %v instead", a.Ident, a.RestrictedValues, v)}
	}
	for _, rv := range a.RestrictedValues {
		if rv == string(kv) {
			return nil
		}
	}
	return &ValidationError{Reason: fmt.Sprintf("the attribute %q must be one of the values %v, got %q instead", a.Ident, a.RestrictedValues, kv)}
}

// ValidateRef checks, for ref-typed attributes only, that the value
// names an entity with at least one currently active attribute.
func (a Attr) ValidateRef(v Value, db *Database) error {
	if a.ValueType != ValueTypeRef {
		return nil
	}
	rv := v.(RefValue)
	m, err := db.Get(EntityID(int64(rv)))
	if err != nil {
		return err
	}
	if len(m) == 0 {
		return &ValidationError{Reason: fmt.Sprintf(
			"entity %d does not exist: a reference must point to a valid entity that has at least one attribute set", int64(rv))}
	}
	return nil
}

// ValidateCardinality checks the assert/retract transition against the
// entity's currently existing value(s) for this attribute (existing is
// nil, a Value, or a []Value depending on cardinality and presence).
func (a Attr) ValidateCardinality(e int64, v Value, op bool, existing any) error {
	switch a.Cardinality {
	case CardinalityOne:
		if op {
			if existing != nil {
				return &ValidationError{Reason: fmt.Sprintf(
					"cannot add attribute %q of entity %d: a value is already set (cardinality is one)", a.Ident, e)}
			}
		} else {
			if existing == nil || !valuesEqual(existing.(Value), v) {
				return &ValidationError{Reason: fmt.Sprintf(
					"cannot remove attribute %q of entity %d: the value %v is not set (cardinality is one)", a.Ident, e, v)}
			}
		}
	case CardinalityMany:
		var values []Value
		if existing != nil {
			values = existing.([]Value)
		}
		present := containsValue(values, v)
		if op {
			if present {
				return &ValidationError{Reason: fmt.Sprintf(
					"cannot add attribute %q of entity %d: the value %v is already present (cardinality is many)", a.Ident, e, v)}
			}
		} else {
			if !present {
				return &ValidationError{Reason: fmt.Sprintf(
					"cannot remove attribute %q of entity %d: the value %v is not set (cardinality is many)", a.Ident, e, v)}
			}
		}
	}
	return nil
}

// ValidateUniqueness checks, on assert only, that no other entity
// currently holds this (attribute, value) pair.
func (a Attr) ValidateUniqueness(v Value, op bool, db *Database) error {
	if !op || a.Unique == UniqueNone {
		return nil
	}
	e, err := db.lookup(a.Ident, v)
	if err == nil {
		return &UniquenessViolationError{Attribute: a.Ident, Value: v, ExistingEntity: e}
	}
	var notFound *EntityNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

func containsValue(values []Value, v Value) bool {
	for _, existing := range values {
		if valuesEqual(existing, v) {
			return true
		}
	}
	return false
}

// builtinAttrs are hard-coded constants, never stored as datoms
// themselves.
var builtinAttrs = []Attr{
	{Ident: "db/txInstant", ValueType: ValueTypeInstant, Cardinality: CardinalityOne},
	{Ident: "db/ident", ValueType: ValueTypeKeyword, Cardinality: CardinalityOne, Unique: UniqueIdentity},
	{Ident: "db/valueType", ValueType: ValueTypeKeyword, Cardinality: CardinalityOne, RestrictedValues: AllValueTypeNames()},
	{Ident: "db/cardinality", ValueType: ValueTypeKeyword, Cardinality: CardinalityOne, RestrictedValues: []string{"db.cardinality/one", "db.cardinality/many"}},
	{Ident: "db/unique", ValueType: ValueTypeKeyword, Cardinality: CardinalityOne, RestrictedValues: []string{"db.unique/identity", "db.unique/value"}},
	{Ident: "db/doc", ValueType: ValueTypeString, Cardinality: CardinalityOne},
}

var builtinAttrsByIdent = func() map[string]Attr {
	m := make(map[string]Attr, len(builtinAttrs))
	for _, a := range builtinAttrs {
		m[a.Ident] = a
	}
	return m
}()

// BuiltinAttr returns a hard-coded attribute definition by ident, if any.
func BuiltinAttr(ident string) (Attr, bool) {
	a, ok := builtinAttrsByIdent[ident]
	return a, ok
}
