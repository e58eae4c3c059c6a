package factum

import (
	"math"

	"github.com/mercerlabs/factum/storage"
)

// noTxBound stands in for "no upper bound" when querying the backend's
// current maximum — there is no committed transaction greater than it.
const noTxBound = math.MaxInt64

// Connection multiplexes backend access to one named database. Db
// builds a fresh immutable Database value; Transact is the only write
// path.
type Connection struct {
	name string
	coll storage.Collection
}

// Name returns the database name this connection is attached to.
func (conn *Connection) Name() string { return conn.name }

// Db queries the current global tx_max and returns a Database value
// bounded by it, with an empty local overlay.
func (conn *Connection) Db() (*Database, error) {
	doc, ok, err := conn.coll.FindMaxByKey(storage.SortKeyTx, noTxBound)
	if err != nil {
		return nil, wrapBackend("find current tx_max", err)
	}
	txMax := int64(-1)
	if ok {
		txMax = doc.Tx
	}
	return newDatabase(conn.coll, txMax), nil
}

// Transact is the only write path: it stages facts through the
// transaction engine against the database's current state, and — only
// if validation succeeds in full — issues the resulting batch as a
// single bulk insert. On success it re-reads Db() as
// the new "after" snapshot. If validation fails, nothing is ever
// written and no entity/datom id is reused.
func (conn *Connection) Transact(facts *Facts) (before, after *Database, txData []Datom, tempIDs map[string]int64, err error) {
	before, err = conn.Db()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	_, batch, tempIDs, err := prepareTransaction(before, facts)
	if err != nil {
		Log.Debug().Err(err).Msg("transaction validation failed, nothing written")
		return nil, nil, nil, nil, err
	}

	docs := make([]storage.DatomDoc, len(batch))
	for i, d := range batch {
		docs[i] = docFromDatom(d)
	}
	if err := conn.coll.Insert(docs); err != nil {
		return nil, nil, nil, nil, wrapBackend("insert transaction batch", err)
	}

	after, err = conn.Db()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	Log.Info().Int("datoms", len(batch)).Msg("transaction committed")
	return before, after, batch, tempIDs, nil
}

// Close releases this connection's collection handle.
func (conn *Connection) Close() error {
	return conn.coll.Close()
}
