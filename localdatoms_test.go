package factum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDatomsAppendIsImmutable(t *testing.T) {
	base := NewLocalDatoms([]Datom{{ID: 0, E: 0, A: "a", V: LongValue(1), Tx: 0, Op: true}})
	branched := base.Append([]Datom{{ID: 1, E: 1, A: "a", V: LongValue(2), Tx: 1, Op: true}})

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, branched.Len())
}

func TestLocalDatomsAppendFactPatchesBuiltCaches(t *testing.T) {
	l := NewLocalDatoms(nil)

	// Build every cache against the empty buffer first.
	assert.Empty(t, l.FactsByAttribute("a"))
	assert.Empty(t, l.FactsByAttributeValue("a", LongValue(1)))
	assert.Empty(t, l.FactsByEntity(0))
	assert.Equal(t, int64(-1), l.MaxKey("e"))
	assert.Equal(t, int64(-1), l.MaxKey("id"))
	assert.Equal(t, int64(-1), l.TxMax())

	d := Datom{ID: 0, E: 0, A: "a", V: LongValue(1), Tx: 0, Op: true}
	l.AppendFact(d)

	require.Len(t, l.FactsByAttribute("a"), 1)
	require.Len(t, l.FactsByAttributeValue("a", LongValue(1)), 1)
	require.Len(t, l.FactsByEntity(0), 1)
	assert.Equal(t, int64(0), l.MaxKey("e"))
	assert.Equal(t, int64(0), l.MaxKey("id"))
	assert.Equal(t, int64(0), l.TxMax())
}

func TestLocalDatomsAsOfTruncatesByTx(t *testing.T) {
	l := NewLocalDatoms([]Datom{
		{ID: 0, E: 0, A: "a", V: LongValue(1), Tx: 0, Op: true},
		{ID: 1, E: 1, A: "a", V: LongValue(2), Tx: 1, Op: true},
		{ID: 2, E: 2, A: "a", V: LongValue(3), Tx: 2, Op: true},
	})

	at1 := l.AsOf(1)
	assert.Equal(t, 2, at1.Len())
	for _, d := range at1.Facts() {
		assert.LessOrEqual(t, d.Tx, int64(1))
	}
}

func TestLocalDatomsMaxKeyPanicsOnUnknownKey(t *testing.T) {
	l := NewLocalDatoms(nil)
	assert.Panics(t, func() { l.MaxKey("bogus") })
}
