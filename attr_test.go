package factum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrFromMapRequiresValueTypeAndCardinality(t *testing.T) {
	_, err := AttrFromMap("provider/id", map[string]any{})
	assert.Error(t, err)

	_, err = AttrFromMap("provider/id", map[string]any{"db/valueType": KeywordValue("db.type/string")})
	assert.Error(t, err)
}

func TestAttrFromMapRejectsUniqueWithCardinalityMany(t *testing.T) {
	_, err := AttrFromMap("provider/id", map[string]any{
		"db/valueType":   KeywordValue("db.type/string"),
		"db/cardinality": KeywordValue("db.cardinality/many"),
		"db/unique":      KeywordValue("db.unique/value"),
	})
	assert.Error(t, err)
}

func TestAttrFromMapBuildsFullDefinition(t *testing.T) {
	attr, err := AttrFromMap("provider/id", map[string]any{
		"db/valueType":   KeywordValue("db.type/string"),
		"db/cardinality": KeywordValue("db.cardinality/one"),
		"db/unique":      KeywordValue("db.unique/value"),
		"db/doc":         StringValue("the provider's external id"),
	})
	require.NoError(t, err)
	assert.Equal(t, ValueTypeString, attr.ValueType)
	assert.Equal(t, CardinalityOne, attr.Cardinality)
	assert.Equal(t, UniqueValue, attr.Unique)
	assert.True(t, attr.IsUnique())
	assert.Equal(t, "the provider's external id", attr.Doc)
}

func TestAttrValidateValueChecksRestrictedValues(t *testing.T) {
	attr := Attr{Ident: "db/cardinality", ValueType: ValueTypeKeyword, RestrictedValues: []string{"db.cardinality/one", "db.cardinality/many"}}

	_, err := attr.ValidateValue("db.cardinality/one")
	assert.NoError(t, err)

	_, err = attr.ValidateValue("db.cardinality/bogus")
	assert.Error(t, err)
}

func TestAttrValidateCardinalityOne(t *testing.T) {
	attr := Attr{Ident: "provider/name", ValueType: ValueTypeString, Cardinality: CardinalityOne}

	// assert against nothing existing: ok
	assert.NoError(t, attr.ValidateCardinality(1, StringValue("Apple"), true, nil))
	// assert when already set: rejected
	assert.Error(t, attr.ValidateCardinality(1, StringValue("Apple Inc."), true, StringValue("Apple")))
	// retract the exact value: ok
	assert.NoError(t, attr.ValidateCardinality(1, StringValue("Apple"), false, StringValue("Apple")))
	// retract a value that isn't set: rejected
	assert.Error(t, attr.ValidateCardinality(1, StringValue("Apple"), false, nil))
}

func TestAttrValidateCardinalityMany(t *testing.T) {
	attr := Attr{Ident: "test/number", ValueType: ValueTypeDouble, Cardinality: CardinalityMany}

	existing := []Value{DoubleValue(1), DoubleValue(2)}
	assert.NoError(t, attr.ValidateCardinality(1, DoubleValue(3), true, existing))
	assert.Error(t, attr.ValidateCardinality(1, DoubleValue(1), true, existing))
	assert.NoError(t, attr.ValidateCardinality(1, DoubleValue(1), false, existing))
	assert.Error(t, attr.ValidateCardinality(1, DoubleValue(3), false, existing))
}

func TestContainsValue(t *testing.T) {
	values := []Value{LongValue(1), LongValue(2)}
	assert.True(t, containsValue(values, LongValue(1)))
	assert.False(t, containsValue(values, LongValue(3)))
}

func TestBuiltinAttr(t *testing.T) {
	attr, ok := BuiltinAttr("db/ident")
	require.True(t, ok)
	assert.Equal(t, UniqueIdentity, attr.Unique)

	_, ok = BuiltinAttr("not/a/builtin")
	assert.False(t, ok)
}
