package factum

import (
	"encoding/binary"
	"math"

	"github.com/mercerlabs/factum/storage"
)

// EncodeValue renders a Value to the opaque byte form the storage
// backend compares for attribute/value index lookups. The one-byte
// type tag keeps ref-vs-long and instant-vs-long distinguishable on
// decode.
func EncodeValue(v Value) []byte {
	buf := make([]byte, 1, 9)
	buf[0] = byte(v.Type())
	switch t := v.(type) {
	case BoolValue:
		if t {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case DoubleValue:
		buf = appendUint64(buf, math.Float64bits(float64(t)))
	case InstantValue:
		buf = appendUint64(buf, uint64(int64(t)))
	case KeywordValue:
		buf = append(buf, []byte(t)...)
	case LongValue:
		buf = appendUint64(buf, uint64(int64(t)))
	case RefValue:
		buf = appendUint64(buf, uint64(int64(t)))
	case StringValue:
		buf = append(buf, []byte(t)...)
	case UUIDValue:
		buf = append(buf, []byte(t)...)
	case URIValue:
		buf = append(buf, []byte(t)...)
	}
	return buf
}

func appendUint64(buf []byte, n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return append(buf, b[:]...)
}

// DecodeValue reverses EncodeValue.
func DecodeValue(data []byte) (Value, error) {
	if len(data) < 1 {
		return nil, &ValidationError{Reason: "cannot decode an empty encoded value"}
	}
	t := ValueType(data[0])
	payload := data[1:]
	switch t {
	case ValueTypeBoolean:
		if len(payload) != 1 {
			return nil, &ValidationError{Reason: "malformed encoded boolean value"}
		}
		return BoolValue(payload[0] != 0), nil
	case ValueTypeDouble:
		n, err := readUint64(payload)
		if err != nil {
			return nil, err
		}
		return DoubleValue(math.Float64frombits(n)), nil
	case ValueTypeInstant:
		n, err := readUint64(payload)
		if err != nil {
			return nil, err
		}
		return InstantValue(int64(n)), nil
	case ValueTypeKeyword:
		return KeywordValue(payload), nil
	case ValueTypeLong:
		n, err := readUint64(payload)
		if err != nil {
			return nil, err
		}
		return LongValue(int64(n)), nil
	case ValueTypeRef:
		n, err := readUint64(payload)
		if err != nil {
			return nil, err
		}
		return RefValue(int64(n)), nil
	case ValueTypeString:
		return StringValue(payload), nil
	case ValueTypeUUID:
		return UUIDValue(payload), nil
	case ValueTypeURI:
		return URIValue(payload), nil
	default:
		return nil, &ValidationError{Reason: "cannot decode unknown value type tag"}
	}
}

func readUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, &ValidationError{Reason: "malformed encoded numeric value"}
	}
	return binary.BigEndian.Uint64(b), nil
}

// docFromDatom converts a Datom to the storage.DatomDoc wire shape.
func docFromDatom(d Datom) storage.DatomDoc {
	return storage.DatomDoc{ID: d.ID, E: d.E, A: d.A, V: EncodeValue(d.V), Tx: d.Tx, Op: d.Op}
}

// datomFromDoc reverses docFromDatom.
func datomFromDoc(doc storage.DatomDoc) (Datom, error) {
	v, err := DecodeValue(doc.V)
	if err != nil {
		return Datom{}, err
	}
	return Datom{ID: doc.ID, E: doc.E, A: doc.A, V: v, Tx: doc.Tx, Op: doc.Op}, nil
}

func datomsFromDocs(docs []storage.DatomDoc) ([]Datom, error) {
	out := make([]Datom, 0, len(docs))
	for _, doc := range docs {
		d, err := datomFromDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
