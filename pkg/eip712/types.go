// Package eip712 hashes and signs typed structured data following the
// EIP-712 scheme: a struct value is reduced to a canonical type string, a
// memoized type hash, a recursive data encoding and finally a signing digest
// bound to a domain separator.
//
// Struct types describe themselves through VisitMembers instead of runtime
// reflection. A minimal type looks like:
//
//	type Person struct {
//		Name   string
//		Wallet common.Address
//	}
//
//	func (Person) TypeName() string { return "Person" }
//
//	func (p Person) VisitMembers(v eip712.MemberVisitor) {
//		v.Visit("name", eip712.String(p.Name))
//		v.Visit("wallet", eip712.Address(p.Wallet))
//	}
package eip712

import "github.com/ethereum/go-ethereum/common"

// MemberType is anything that can appear as a struct member. Every member
// belongs to exactly one of three categories: AtomicType, DynamicType or
// StructType. Atomic and dynamic implementations are closed to this package.
type MemberType interface {
	// TypeName is the canonical type name, e.g. "address" or "Mail".
	TypeName() string
}

// AtomicType is a fixed-width value with a direct 32-byte encoding.
type AtomicType interface {
	MemberType
	EncodeData() common.Hash
	atomic()
}

// DynamicType is variable-length content encoded as the hash of its bytes.
type DynamicType interface {
	MemberType
	EncodeData() common.Hash
	dynamic()
}

// StructType is a named type with an ordered list of members. TypeName must
// be unique among all struct types reachable from a single root, and the set
// of members visited, with their type names, must not depend on field values.
// A struct and a pointer to it count as the same type.
type StructType interface {
	MemberType
	// VisitMembers calls v.Visit once per field, in declaration order.
	VisitMembers(v MemberVisitor)
}

// MemberVisitor receives the members of a struct.
type MemberVisitor interface {
	Visit(name string, value MemberType)
}
