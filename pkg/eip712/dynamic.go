package eip712

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// String is the "string" dynamic type.
type String string

func (String) TypeName() string { return "string" }

// EncodeData is the keccak-256 hash of the raw UTF-8 bytes.
func (s String) EncodeData() common.Hash { return crypto.Keccak256Hash([]byte(s)) }

func (String) dynamic() {}
