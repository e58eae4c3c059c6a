package storage

import (
	"encoding/binary"
	"fmt"
)

// indexPrefix tags which index ordering a key belongs to.
type indexPrefix byte

const (
	prefixEAVT indexPrefix = iota // entity + attr + id -> per-entity scans
	prefixAEVT                    // attr + entity + id -> FindByAttr
	prefixAVET                    // attr + value + entity + id -> FindByAttrValue
	prefixSEQ                     // id -> FindAll / FindMaxByKey
)

const sep = 0x00

func putUint64(n int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

// eavtKey orders by entity so FindByEntities can do one prefix scan per
// entity.
func eavtKey(e int64, a string, id int64) []byte {
	key := make([]byte, 0, 1+8+len(a)+1+8)
	key = append(key, byte(prefixEAVT))
	key = append(key, putUint64(e)...)
	key = append(key, []byte(a)...)
	key = append(key, sep)
	key = append(key, putUint64(id)...)
	return key
}

func eavtPrefix(e int64) []byte {
	key := make([]byte, 0, 1+8)
	key = append(key, byte(prefixEAVT))
	key = append(key, putUint64(e)...)
	return key
}

// aevtKey orders by attribute so FindByAttr can do one prefix scan.
func aevtKey(a string, e int64, id int64) []byte {
	key := make([]byte, 0, 1+len(a)+1+8+8)
	key = append(key, byte(prefixAEVT))
	key = append(key, []byte(a)...)
	key = append(key, sep)
	key = append(key, putUint64(e)...)
	key = append(key, putUint64(id)...)
	return key
}

func aevtPrefix(a string) []byte {
	key := make([]byte, 0, 1+len(a)+1)
	key = append(key, byte(prefixAEVT))
	key = append(key, []byte(a)...)
	key = append(key, sep)
	return key
}

// avetKey orders by (attribute, value) so FindByAttrValue can do one
// prefix scan, standing in for a document database's compound (a,v)
// index.
func avetKey(a string, v []byte, e int64, id int64) []byte {
	key := make([]byte, 0, 1+len(a)+1+len(v)+8+8)
	key = append(key, byte(prefixAVET))
	key = append(key, []byte(a)...)
	key = append(key, sep)
	key = append(key, v...)
	key = append(key, putUint64(e)...)
	key = append(key, putUint64(id)...)
	return key
}

func avetPrefix(a string, v []byte) []byte {
	key := make([]byte, 0, 1+len(a)+1+len(v))
	key = append(key, byte(prefixAVET))
	key = append(key, []byte(a)...)
	key = append(key, sep)
	key = append(key, v...)
	return key
}

// seqKey orders purely by id, the global commit order.
func seqKey(id int64) []byte {
	key := make([]byte, 0, 1+8)
	key = append(key, byte(prefixSEQ))
	key = append(key, putUint64(id)...)
	return key
}

func seqPrefix() []byte {
	return []byte{byte(prefixSEQ)}
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix, used as an exclusive range-scan bound.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return append(end, 0xFF)
}

// encodeDoc serializes a DatomDoc to a length-prefixed binary record:
// fixed-width id and e, length-prefixed a and v, then tx and op.
func encodeDoc(d DatomDoc) []byte {
	buf := make([]byte, 0, 8+8+4+len(d.A)+4+len(d.V)+8+1)
	buf = append(buf, putUint64(d.ID)...)
	buf = append(buf, putUint64(d.E)...)
	buf = appendUint32Prefixed(buf, []byte(d.A))
	buf = appendUint32Prefixed(buf, d.V)
	buf = append(buf, putUint64(d.Tx)...)
	if d.Op {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func appendUint32Prefixed(buf, data []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, data...)
	return buf
}

func decodeDoc(b []byte) (DatomDoc, error) {
	var d DatomDoc
	if len(b) < 8+8+4 {
		return d, fmt.Errorf("storage: truncated datom record")
	}
	d.ID = int64(binary.BigEndian.Uint64(b[0:8]))
	d.E = int64(binary.BigEndian.Uint64(b[8:16]))
	off := 16
	aLen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if len(b) < off+aLen+4 {
		return d, fmt.Errorf("storage: truncated datom attribute field")
	}
	d.A = string(b[off : off+aLen])
	off += aLen
	vLen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if len(b) < off+vLen+8+1 {
		return d, fmt.Errorf("storage: truncated datom value field")
	}
	d.V = append([]byte(nil), b[off:off+vLen]...)
	off += vLen
	d.Tx = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	d.Op = b[off] != 0
	return d, nil
}
