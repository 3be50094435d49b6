package eip712

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Encoder computes encodings and hashes of typed data. Its only state is the
// type hash cache, so one Encoder can be shared by any number of goroutines.
type Encoder struct {
	cache *TypeHashCache
}

// NewEncoder returns an Encoder backed by cache. A nil cache gets a private,
// empty one.
func NewEncoder(cache *TypeHashCache) *Encoder {
	if cache == nil {
		cache = NewTypeHashCache()
	}
	return &Encoder{cache: cache}
}

// Cache returns the type hash cache used by e.
func (e *Encoder) Cache() *TypeHashCache { return e.cache }

// EncodeType returns the canonical type string of s: its own block first,
// then every referenced struct type sorted by name, e.g.
// "Mail(Person from,Person to,string contents)Person(string name,address wallet)".
func (e *Encoder) EncodeType(s StructType) (string, error) {
	return encodeType(s)
}

// TypeHash returns keccak256(EncodeType(s)), memoized per concrete type.
func (e *Encoder) TypeHash(s StructType) (common.Hash, error) {
	return e.cache.TypeHash(s)
}

// EncodeData returns typeHash(s) followed by the 32-byte encoding of each
// member in declaration order. Nested structs contribute their HashStruct.
func (e *Encoder) EncodeData(s StructType) ([]byte, error) {
	typeHash, err := e.TypeHash(s)
	if err != nil {
		return nil, err
	}
	v := &dataVisitor{encoder: e, buf: make([]byte, 0, 4*common.HashLength)}
	v.buf = append(v.buf, typeHash[:]...)
	s.VisitMembers(v)
	if v.err != nil {
		return nil, v.err
	}
	return v.buf, nil
}

// HashStruct returns keccak256(EncodeData(s)).
func (e *Encoder) HashStruct(s StructType) (common.Hash, error) {
	data, err := e.EncodeData(s)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(data), nil
}

// Encode returns "\x19\x01" ‖ domainSeparator ‖ hashStruct(message).
func (e *Encoder) Encode(ds DomainSeparator, message StructType) ([66]byte, error) {
	var out [66]byte
	hash, err := e.HashStruct(message)
	if err != nil {
		return out, err
	}
	out[0] = 0x19
	out[1] = 0x01
	copy(out[2:34], ds.hash[:])
	copy(out[34:], hash[:])
	return out, nil
}

// SignHash returns the digest that gets signed: keccak256(Encode(ds, message)).
func (e *Encoder) SignHash(ds DomainSeparator, message StructType) (common.Hash, error) {
	encoded, err := e.Encode(ds, message)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded[:]), nil
}

func (e *Encoder) encodeMember(value MemberType) (common.Hash, error) {
	switch v := value.(type) {
	case AtomicType:
		return v.EncodeData(), nil
	case DynamicType:
		return v.EncodeData(), nil
	case StructType:
		return e.HashStruct(v)
	case nil:
		return common.Hash{}, schemaErrorf("member has no value")
	default:
		return common.Hash{}, schemaErrorf("unsupported member type %T", value)
	}
}

// dataVisitor appends member encodings; the first error stops it.
type dataVisitor struct {
	encoder *Encoder
	buf     []byte
	err     error
}

func (v *dataVisitor) Visit(_ string, value MemberType) {
	if v.err != nil {
		return
	}
	word, err := v.encoder.encodeMember(value)
	if err != nil {
		v.err = err
		return
	}
	v.buf = append(v.buf, word[:]...)
}

var defaultEncoder = sync.OnceValue(func() *Encoder {
	return NewEncoder(DefaultCache())
})

// DefaultEncoder returns the Encoder behind the package-level functions. It
// uses DefaultCache.
func DefaultEncoder() *Encoder {
	return defaultEncoder()
}

// EncodeType calls DefaultEncoder().EncodeType.
func EncodeType(s StructType) (string, error) {
	return DefaultEncoder().EncodeType(s)
}

// TypeHash calls DefaultEncoder().TypeHash.
func TypeHash(s StructType) (common.Hash, error) {
	return DefaultEncoder().TypeHash(s)
}

// EncodeData calls DefaultEncoder().EncodeData.
func EncodeData(s StructType) ([]byte, error) {
	return DefaultEncoder().EncodeData(s)
}

// HashStruct calls DefaultEncoder().HashStruct.
func HashStruct(s StructType) (common.Hash, error) {
	return DefaultEncoder().HashStruct(s)
}

// Encode calls DefaultEncoder().Encode.
func Encode(ds DomainSeparator, message StructType) ([66]byte, error) {
	return DefaultEncoder().Encode(ds, message)
}

// SignHash calls DefaultEncoder().SignHash.
func SignHash(ds DomainSeparator, message StructType) (common.Hash, error) {
	return DefaultEncoder().SignHash(ds, message)
}
