package eip712

import "github.com/ethereum/go-ethereum/common"

// DomainSeparator binds signatures to one application context. It is opaque
// once built.
type DomainSeparator struct {
	hash common.Hash
}

// DomainSeparatorFromBytes wraps a precomputed separator.
func DomainSeparatorFromBytes(b [32]byte) DomainSeparator {
	return DomainSeparator{hash: b}
}

// NewDomainSeparator hashes a domain struct. EIP-712 recommends the fields
// name, version, chainId, verifyingContract and salt but any struct named by
// the caller is accepted.
func (e *Encoder) NewDomainSeparator(domain StructType) (DomainSeparator, error) {
	hash, err := e.HashStruct(domain)
	if err != nil {
		return DomainSeparator{}, err
	}
	return DomainSeparator{hash: hash}, nil
}

// NewDomainSeparator calls DefaultEncoder().NewDomainSeparator.
func NewDomainSeparator(domain StructType) (DomainSeparator, error) {
	return DefaultEncoder().NewDomainSeparator(domain)
}

// Bytes returns the 32 separator bytes.
func (d DomainSeparator) Bytes() [32]byte { return d.hash }

// Hash returns the separator as a common.Hash.
func (d DomainSeparator) Hash() common.Hash { return d.hash }

func (d DomainSeparator) String() string { return d.hash.Hex() }

// EIP712Domain carries all five recommended domain fields.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           Uint256
	VerifyingContract Address
	Salt              Bytes32
}

func (EIP712Domain) TypeName() string { return "EIP712Domain" }

func (d EIP712Domain) VisitMembers(v MemberVisitor) {
	v.Visit("name", String(d.Name))
	v.Visit("version", String(d.Version))
	v.Visit("chainId", d.ChainID)
	v.Visit("verifyingContract", d.VerifyingContract)
	v.Visit("salt", d.Salt)
}

// EIP712DomainNoSalt is the common four-field domain without a salt.
type EIP712DomainNoSalt struct {
	Name              string
	Version           string
	ChainID           Uint256
	VerifyingContract Address
}

func (EIP712DomainNoSalt) TypeName() string { return "EIP712Domain" }

func (d EIP712DomainNoSalt) VisitMembers(v MemberVisitor) {
	v.Visit("name", String(d.Name))
	v.Visit("version", String(d.Version))
	v.Visit("chainId", d.ChainID)
	v.Visit("verifyingContract", d.VerifyingContract)
}
