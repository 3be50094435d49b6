package eip712

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	xerrors "TypedSign-Chain/internal/errors"
)

// Address is the 20-byte "address" atomic type.
type Address common.Address

// HexToAddress parses a hex encoded address, with or without 0x prefix.
func HexToAddress(s string) Address {
	return Address(common.HexToAddress(s))
}

func (Address) TypeName() string { return "address" }

// EncodeData left-pads the address to 32 bytes.
func (a Address) EncodeData() common.Hash { return common.BytesToHash(a[:]) }

// Common returns the go-ethereum representation.
func (a Address) Common() common.Address { return common.Address(a) }

func (a Address) String() string { return common.Address(a).Hex() }

// MarshalText encodes the checksummed hex form.
func (a Address) MarshalText() ([]byte, error) { return common.Address(a).MarshalText() }

// UnmarshalText accepts a 0x-prefixed 20-byte hex string.
func (a *Address) UnmarshalText(b []byte) error {
	return (*common.Address)(a).UnmarshalText(b)
}

func (Address) atomic() {}

// Uint256 is the "uint256" atomic type, held as a 256-bit unsigned integer.
type Uint256 struct {
	value uint256.Int
}

// NewUint256 copies x into a Uint256.
func NewUint256(x *uint256.Int) Uint256 {
	var u Uint256
	if x != nil {
		u.value.Set(x)
	}
	return u
}

// Uint256FromUint64 returns x as a Uint256.
func Uint256FromUint64(x uint64) Uint256 {
	var u Uint256
	u.value.SetUint64(x)
	return u
}

// Uint256FromBig converts a non-negative big integer that fits in 256 bits.
func Uint256FromBig(x *big.Int) (Uint256, error) {
	if x == nil {
		return Uint256{}, nil
	}
	if x.Sign() < 0 {
		return Uint256{}, xerrors.New(xerrors.CodeInvalidArgument, "uint256 cannot be negative")
	}
	v, overflow := uint256.FromBig(x)
	if overflow {
		return Uint256{}, xerrors.New(xerrors.CodeInvalidArgument, "value does not fit in uint256")
	}
	return NewUint256(v), nil
}

// ParseUint256 accepts a decimal string or a 0x-prefixed hex string.
func ParseUint256(s string) (Uint256, error) {
	if s == "" {
		return Uint256{}, xerrors.New(xerrors.CodeInvalidArgument, "empty uint256")
	}
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		x, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return Uint256{}, xerrors.New(xerrors.CodeInvalidArgument, "invalid uint256 "+strconv.Quote(s))
		}
		return Uint256FromBig(x)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Uint256{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid uint256 "+strconv.Quote(s))
	}
	return NewUint256(v), nil
}

func (Uint256) TypeName() string { return "uint256" }

// EncodeData returns the 32-byte big-endian form.
func (u Uint256) EncodeData() common.Hash { return common.Hash(u.value.Bytes32()) }

// Big returns the value as a new big.Int.
func (u Uint256) Big() *big.Int { return u.value.ToBig() }

func (u Uint256) String() string { return u.value.Dec() }

// MarshalJSON writes the value as a quoted decimal string.
func (u Uint256) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(u.value.Dec())), nil
}

// UnmarshalJSON accepts a JSON number or a string in the forms understood
// by ParseUint256.
func (u *Uint256) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid uint256 literal")
		}
		s = unquoted
	}
	v, err := ParseUint256(s)
	if err != nil {
		return err
	}
	*u = v
	return nil
}

func (Uint256) atomic() {}
