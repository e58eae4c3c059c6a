package factum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatomEqualAndLessUseIDOnly(t *testing.T) {
	a := Datom{ID: 1, E: 9, A: "x", V: LongValue(1), Tx: 0, Op: true}
	b := Datom{ID: 1, E: 1, A: "y", V: LongValue(2), Tx: 1, Op: false}
	assert.True(t, a.Equal(b))

	c := Datom{ID: 2, E: 9, A: "x", V: LongValue(1), Tx: 0, Op: true}
	assert.True(t, a.Less(c))
	assert.False(t, c.Less(a))
}

func TestDatomStringMarksAssertAndRetract(t *testing.T) {
	assertDatom := Datom{ID: 0, E: 1, A: "provider/id", V: StringValue("AAPL"), Tx: 0, Op: true}
	retractDatom := Datom{ID: 1, E: 1, A: "provider/id", V: StringValue("AAPL"), Tx: 1, Op: false}
	assert.Contains(t, assertDatom.String(), "+")
	assert.Contains(t, retractDatom.String(), "-")
}

func TestSortDatomsByIDSortsAscending(t *testing.T) {
	datoms := []Datom{
		{ID: 3}, {ID: 1}, {ID: 2},
	}
	SortDatomsByID(datoms)
	require := []int64{1, 2, 3}
	for i, want := range require {
		assert.Equal(t, want, datoms[i].ID)
	}
}
