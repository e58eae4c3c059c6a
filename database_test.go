package factum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defineStringAttr(t *testing.T, conn *Connection, ident string, unique string) {
	t.Helper()
	f := NewFacts()
	f.Add(TempID(ident), "db/ident", ident)
	f.Add(TempID(ident), "db/valueType", "db.type/string")
	f.Add(TempID(ident), "db/cardinality", "db.cardinality/one")
	if unique != "" {
		f.Add(TempID(ident), "db/unique", unique)
	}
	_, _, _, _, err := conn.Transact(f)
	require.NoError(t, err)
}

// States is keyed by real transaction ids only: one entry per transaction
// that actually touched the entity, each holding Get(e) as of that
// transaction.
func TestDatabaseStatesKeyedByTouchingTransactionsOnly(t *testing.T) {
	conn := newMemConn()
	defineStringAttr(t, conn, "provider/id", "db.unique/value")
	defineStringAttr(t, conn, "provider/name", "")

	insert := NewFacts()
	insert.Add(TempID("apple"), "provider/id", "AAPL")
	insert.Add(TempID("apple"), "provider/name", "Apple")
	_, _, insertData, insertIDs, err := conn.Transact(insert)
	require.NoError(t, err)
	apple := insertIDs["apple"]
	insertTx := insertData[0].Tx

	// A transaction not touching apple must not appear in its states.
	unrelated := NewFacts()
	unrelated.Add(Anon(), "provider/name", "Microsoft")
	_, _, _, _, err = conn.Transact(unrelated)
	require.NoError(t, err)

	rename := NewFacts()
	rename.Replace(EntityID(apple), "provider/name", "Apple", "Apple Inc.")
	_, _, renameData, _, err := conn.Transact(rename)
	require.NoError(t, err)
	renameTx := renameData[0].Tx

	db, err := conn.Db()
	require.NoError(t, err)
	states, err := db.States(EntityID(apple))
	require.NoError(t, err)

	require.Len(t, states, 2)
	assert.Equal(t, StringValue("Apple"), states[insertTx]["provider/name"])
	assert.Equal(t, StringValue("Apple Inc."), states[renameTx]["provider/name"])
	assert.Equal(t, StringValue("AAPL"), states[renameTx]["provider/id"])
}

func TestDatabaseTransactionAt(t *testing.T) {
	conn := newMemConn()
	defineStringAttr(t, conn, "provider/name", "")

	data := NewFacts()
	data.Add(Anon(), "provider/name", "Apple")
	_, _, txData, _, err := conn.Transact(data)
	require.NoError(t, err)
	lastTx := txData[0].Tx

	db, err := conn.Db()
	require.NoError(t, err)

	tx, err := db.TransactionAt(Now() + 60_000)
	require.NoError(t, err)
	assert.Equal(t, lastTx, tx)

	tx, err = db.TransactionAt(-5)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), tx)
}

// Since and History carry their bound/flag but change no read method.
func TestDatabaseSinceAndHistoryAreInert(t *testing.T) {
	conn := newMemConn()
	defineStringAttr(t, conn, "provider/name", "")

	db, err := conn.Db()
	require.NoError(t, err)
	all, err := db.AllFacts()
	require.NoError(t, err)

	since := db.Since(0)
	assert.Equal(t, int64(0), since.txMin)
	sinceAll, err := since.AllFacts()
	require.NoError(t, err)
	assert.Equal(t, all, sinceAll)

	hist := db.History()
	assert.True(t, hist.fullHistory)
	histAll, err := hist.AllFacts()
	require.NoError(t, err)
	assert.Equal(t, all, histAll)
}

func TestDatabaseEntitiesEnumeratesZeroToMax(t *testing.T) {
	conn := newMemConn()

	db, err := conn.Db()
	require.NoError(t, err)
	empty, err := db.Entities()
	require.NoError(t, err)
	assert.Empty(t, empty)

	defineStringAttr(t, conn, "provider/name", "")

	db, err = conn.Db()
	require.NoError(t, err)
	entities, err := db.Entities()
	require.NoError(t, err)
	// tx entity 0 and attribute entity 1
	assert.Equal(t, []int64{0, 1}, entities)
}

func TestTransactUndefinedAttributeIsSchemaError(t *testing.T) {
	conn := newMemConn()

	f := NewFacts()
	f.Add(Anon(), "no/such-attribute", "x")
	_, _, _, _, err := conn.Transact(f)
	require.Error(t, err)
	var serr *SchemaError
	assert.ErrorAs(t, err, &serr)
	assert.Equal(t, "no/such-attribute", serr.Attribute)
}

// An attribute definition created earlier in a transaction is visible to
// later datoms of that same transaction.
func TestTransactSchemaAndDataInOneTransaction(t *testing.T) {
	conn := newMemConn()

	f := NewFacts()
	f.Add(TempID("attr"), "db/ident", "inline/label")
	f.Add(TempID("attr"), "db/valueType", "db.type/string")
	f.Add(TempID("attr"), "db/cardinality", "db.cardinality/one")
	f.Add(TempID("e"), "inline/label", "works")
	_, _, _, tempIDs, err := conn.Transact(f)
	require.NoError(t, err)

	db, err := conn.Db()
	require.NoError(t, err)
	m, err := db.Get(EntityID(tempIDs["e"]))
	require.NoError(t, err)
	assert.Equal(t, StringValue("works"), m["inline/label"])
}

func TestTransactTempIDStability(t *testing.T) {
	conn := newMemConn()
	defineStringAttr(t, conn, "provider/name", "")

	f := NewFacts()
	f.Add(TempID("x"), "provider/name", "one")
	f.Add(TempID("y"), "provider/name", "two")
	f.Add(Anon(), "provider/name", "three")
	_, _, txData, tempIDs, err := conn.Transact(f)
	require.NoError(t, err)

	assert.NotEqual(t, tempIDs["x"], tempIDs["y"])

	// The same name resolving twice yields one entity; distinct names and
	// anonymous refs each get a fresh id above every previously assigned
	// one.
	entities := map[int64]bool{}
	for _, d := range txData[1:] {
		entities[d.E] = true
	}
	assert.Len(t, entities, 3)
	for e := range entities {
		assert.Greater(t, e, int64(1)) // above the schema tx's allocations
	}

	again := NewFacts()
	again.Add(TempID("x"), "provider/name", "four")
	again.Add(TempID("x"), "provider/name", "five")
	_, _, _, _, err = conn.Transact(again)
	// Both datoms resolve to the same entity, so the second assert is a
	// cardinality-one violation — proof the temp-id bound once.
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestTransactBareIntRefMustAlreadyExist(t *testing.T) {
	conn := newMemConn()
	defineStringAttr(t, conn, "provider/name", "")

	f := NewFacts()
	f.Add(EntityID(999), "provider/name", "ghost")
	_, _, _, _, err := conn.Transact(f)
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDbIdentIsGloballyUnique(t *testing.T) {
	conn := newMemConn()
	defineStringAttr(t, conn, "provider/name", "")

	dupe := NewFacts()
	dupe.Add(TempID("other"), "db/ident", "provider/name")
	dupe.Add(TempID("other"), "db/valueType", "db.type/string")
	dupe.Add(TempID("other"), "db/cardinality", "db.cardinality/one")
	_, _, _, _, err := conn.Transact(dupe)
	require.Error(t, err)
	var uverr *UniquenessViolationError
	assert.ErrorAs(t, err, &uverr)
	assert.Equal(t, "db/ident", uverr.Attribute)
}

func TestLookupRequiresUniqueAttribute(t *testing.T) {
	conn := newMemConn()
	defineStringAttr(t, conn, "provider/name", "")

	data := NewFacts()
	data.Add(Anon(), "provider/name", "Apple")
	_, _, _, _, err := conn.Transact(data)
	require.NoError(t, err)

	db, err := conn.Db()
	require.NoError(t, err)
	_, err = db.Get(Lookup("provider/name", "Apple"))
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLookupRefResolvesInFactsRead(t *testing.T) {
	conn := newMemConn()
	defineStringAttr(t, conn, "provider/id", "db.unique/identity")

	data := NewFacts()
	data.Add(TempID("apple"), "provider/id", "AAPL")
	_, _, _, tempIDs, err := conn.Transact(data)
	require.NoError(t, err)

	db, err := conn.Db()
	require.NoError(t, err)
	facts, err := db.Facts(Lookup("provider/id", "AAPL"))
	require.NoError(t, err)
	require.NotEmpty(t, facts)
	for _, d := range facts {
		assert.Equal(t, tempIDs["apple"], d.E)
	}

	_, err = db.Facts(Lookup("provider/id", "MSFT"))
	require.Error(t, err)
	var nferr *EntityNotFoundError
	assert.ErrorAs(t, err, &nferr)
}

// AllFacts is sorted by id and equals the union of remote and overlay.
func TestAllFactsIsSortedUnionOfRemoteAndOverlay(t *testing.T) {
	conn := newMemConn()
	defineStringAttr(t, conn, "provider/name", "")

	db, err := conn.Db()
	require.NoError(t, err)

	branch := NewFacts()
	branch.Add(Anon(), "provider/name", "Speculative")
	_, after, _, _, err := db.AsIf(branch)
	require.NoError(t, err)

	all, err := after.AllFacts()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}

	committed, err := db.AllFacts()
	require.NoError(t, err)
	assert.Equal(t, len(committed)+2, len(all)) // overlay adds txInstant + the assert
}
