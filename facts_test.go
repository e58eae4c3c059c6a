package factum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactsAddRemoveReplaceOrder(t *testing.T) {
	f := NewFacts()
	f.Add(EntityID(1), "provider/name", "Apple")
	f.Replace(EntityID(1), "provider/name", "Apple", "Apple Inc.")

	require.Len(t, f.ops, 3)
	assert.Equal(t, "provider/name", f.ops[0].attr)
	assert.True(t, f.ops[0].op)
	assert.Equal(t, "Apple", f.ops[0].value)

	assert.False(t, f.ops[1].op)
	assert.Equal(t, "Apple", f.ops[1].value)

	assert.True(t, f.ops[2].op)
	assert.Equal(t, "Apple Inc.", f.ops[2].value)
}

func TestFactsAddSetSharesOneEntityAcrossKeys(t *testing.T) {
	f := NewFacts()
	f.AddSet(TempID("apple"), map[string]any{
		"provider/id":   "AAPL",
		"provider/name": "Apple",
	})

	require.Len(t, f.ops, 2)
	assert.Equal(t, f.ops[0].entity, f.ops[1].entity)
	assert.Equal(t, entityRefTempName, f.ops[0].entity.kind)
	assert.Equal(t, "apple", f.ops[0].entity.tempName)
}

func TestFactsAddSetResolvesAnonymousEntityOnce(t *testing.T) {
	f := NewFacts()
	f.AddSet(Anon(), map[string]any{
		"a": 1,
		"b": 2,
	})

	require.Len(t, f.ops, 2)
	assert.Equal(t, entityRefTempName, f.ops[0].entity.kind)
	assert.Equal(t, f.ops[0].entity.tempName, f.ops[1].entity.tempName)
	assert.NotEmpty(t, f.ops[0].entity.tempName)
}

func TestEntityRefConstructors(t *testing.T) {
	assert.Equal(t, entityRefID, EntityID(5).kind)
	assert.Equal(t, entityRefTempName, TempID("x").kind)
	assert.Equal(t, entityRefAnonymous, Anon().kind)

	l := Lookup("provider/id", "AAPL")
	assert.Equal(t, entityRefLookup, l.kind)
	assert.Equal(t, "provider/id", l.lookupAttr)
	assert.Equal(t, "AAPL", l.lookupVal)
}
