package factum

import "fmt"

// pendingDatom is a candidate datom after id/entity assignment but
// before value-shape and schema validation: rawV is still the raw Go
// value supplied through Facts, not yet wrapped as a typed Value.
type pendingDatom struct {
	ID   int64
	E    int64
	A    string
	rawV any
	Tx   int64
	Op   bool
}

// transactionData assigns the transaction entity and a contiguous id
// run, resolves every EntityRef in facts against db's
// pre-transaction state, and returns the ordered candidate datoms plus
// the temp-id -> entity-id bindings (including the reserved
// "datomic.tx" binding). db is mutated nowhere by this step; resolution
// of lookup refs therefore sees the database exactly as it stood before
// this transaction.
func transactionData(db *Database, facts *Facts) ([]pendingDatom, map[string]int64, error) {
	maxE, err := db.maxEntity()
	if err != nil {
		return nil, nil, err
	}
	maxID, err := db.maxID()
	if err != nil {
		return nil, nil, err
	}

	currentMaxEntity := maxE
	tx := maxE + 1
	maxE = tx // reserve the transaction entity id

	tempIDs := map[string]int64{TxEntity: tx}

	id := maxID + 1
	out := make([]pendingDatom, 0, len(facts.ops)+1)
	out = append(out, pendingDatom{ID: id, E: tx, A: "db/txInstant", rawV: Now(), Tx: tx, Op: true})
	id++

	for _, op := range facts.ops {
		e, err := db.resolveTransactingRef(op.entity, &maxE, tempIDs, currentMaxEntity)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, pendingDatom{ID: id, E: e, A: op.attr, rawV: op.value, Tx: tx, Op: op.op})
		id++
	}
	return out, tempIDs, nil
}

// resolveTransactingRef resolves one EntityRef during ID assignment,
// allocating fresh entity ids for temp-ids/anonymous refs and enforcing
// that bare int refs name an entity that already existed before this
// transaction.
func (db *Database) resolveTransactingRef(ref EntityRef, maxE *int64, tempIDs map[string]int64, currentMaxEntity int64) (int64, error) {
	switch ref.kind {
	case entityRefID:
		if ref.id > currentMaxEntity {
			return 0, &ValidationError{Reason: fmt.Sprintf("entity %d does not exist yet", ref.id)}
		}
		return ref.id, nil
	case entityRefLookup:
		v, err := db.attrTypedValue(ref.lookupAttr, ref.lookupVal)
		if err != nil {
			return 0, err
		}
		return db.lookup(ref.lookupAttr, v)
	case entityRefTempName:
		if id, ok := tempIDs[ref.tempName]; ok {
			return id, nil
		}
		*maxE++
		tempIDs[ref.tempName] = *maxE
		return *maxE, nil
	case entityRefAnonymous:
		*maxE++
		return *maxE, nil
	default:
		return 0, &ValidationError{Reason: "malformed entity reference"}
	}
}

// validateTransaction walks the candidate datoms in
// order, validating each against db (an applicative copy already
// advanced by every prior datom in this same batch) before applying it
// in place and appending it to the durable write batch.
func validateTransaction(db *Database, pending []pendingDatom) ([]Datom, error) {
	batch := make([]Datom, 0, len(pending))
	for _, p := range pending {
		attr, err := db.getAttrDef(p.A)
		if err != nil {
			return nil, err
		}
		v, err := attr.ValidateValue(p.rawV)
		if err != nil {
			return nil, err
		}
		if attr.ValueType == ValueTypeRef {
			if err := attr.ValidateRef(v, db); err != nil {
				return nil, err
			}
		}
		existing, err := db.existingValue(p.E, p.A)
		if err != nil {
			return nil, err
		}
		if err := attr.ValidateCardinality(p.E, v, p.Op, existing); err != nil {
			return nil, err
		}
		if err := attr.ValidateUniqueness(v, p.Op, db); err != nil {
			return nil, err
		}

		d := Datom{ID: p.ID, E: p.E, A: p.A, V: v, Tx: p.Tx, Op: p.Op}
		db.applyDatom(d)
		batch = append(batch, d)
	}
	return batch, nil
}

// existingValue returns db.Get(e)[a] (nil if absent), the "existing"
// argument Attr.ValidateCardinality compares the candidate datom
// against.
func (db *Database) existingValue(e int64, a string) (any, error) {
	m, err := db.Get(EntityID(e))
	if err != nil {
		return nil, err
	}
	v, ok := m[a]
	if !ok {
		return nil, nil
	}
	return v, nil
}

// prepareTransaction runs the full engine — id assignment followed by
// incremental validation — against a private applicative copy of db,
// without modifying db or writing to any backend. It is shared by Connection.Transact
// (which persists the result) and Database.AsIf (which does not).
func prepareTransaction(db *Database, facts *Facts) (working *Database, batch []Datom, tempIDs map[string]int64, err error) {
	working = db.applicativeCopy()
	pending, tempIDs, err := transactionData(working, facts)
	if err != nil {
		return nil, nil, nil, err
	}
	batch, err = validateTransaction(working, pending)
	if err != nil {
		return nil, nil, nil, err
	}
	return working, batch, tempIDs, nil
}

// AsIf runs the transaction engine against facts as Connection.Transact
// would, but commits only to a new local overlay: it never writes to the
// backend, so concurrent as-if branches from the same db are isolated
// from each other and from Connection.Db().
func (db *Database) AsIf(facts *Facts) (before, after *Database, txData []Datom, tempIDs map[string]int64, err error) {
	after, txData, tempIDs, err = prepareTransaction(db, facts)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return db, after, txData, tempIDs, nil
}
