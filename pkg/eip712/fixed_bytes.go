package eip712

import "github.com/ethereum/go-ethereum/common"

// Bytes1 through Bytes32 are the "bytes1" to "bytes32" atomic types. The
// width is part of the Go type, so every value of a struct field carries the
// same type name. EncodeData right-aligns the value in 32 bytes with the
// high-order bytes zero.
type (
	Bytes1  [1]byte
	Bytes2  [2]byte
	Bytes3  [3]byte
	Bytes4  [4]byte
	Bytes5  [5]byte
	Bytes6  [6]byte
	Bytes7  [7]byte
	Bytes8  [8]byte
	Bytes9  [9]byte
	Bytes10 [10]byte
	Bytes11 [11]byte
	Bytes12 [12]byte
	Bytes13 [13]byte
	Bytes14 [14]byte
	Bytes15 [15]byte
	Bytes16 [16]byte
	Bytes17 [17]byte
	Bytes18 [18]byte
	Bytes19 [19]byte
	Bytes20 [20]byte
	Bytes21 [21]byte
	Bytes22 [22]byte
	Bytes23 [23]byte
	Bytes24 [24]byte
	Bytes25 [25]byte
	Bytes26 [26]byte
	Bytes27 [27]byte
	Bytes28 [28]byte
	Bytes29 [29]byte
	Bytes30 [30]byte
	Bytes31 [31]byte
	Bytes32 [32]byte
)

// rightAligned places b in the low-order bytes of a word.
func rightAligned(b []byte) common.Hash {
	var out common.Hash
	copy(out[common.HashLength-len(b):], b)
	return out
}

func (Bytes1) TypeName() string { return "bytes1" }
func (b Bytes1) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes1) atomic() {}

func (Bytes2) TypeName() string { return "bytes2" }
func (b Bytes2) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes2) atomic() {}

func (Bytes3) TypeName() string { return "bytes3" }
func (b Bytes3) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes3) atomic() {}

func (Bytes4) TypeName() string { return "bytes4" }
func (b Bytes4) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes4) atomic() {}

func (Bytes5) TypeName() string { return "bytes5" }
func (b Bytes5) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes5) atomic() {}

func (Bytes6) TypeName() string { return "bytes6" }
func (b Bytes6) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes6) atomic() {}

func (Bytes7) TypeName() string { return "bytes7" }
func (b Bytes7) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes7) atomic() {}

func (Bytes8) TypeName() string { return "bytes8" }
func (b Bytes8) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes8) atomic() {}

func (Bytes9) TypeName() string { return "bytes9" }
func (b Bytes9) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes9) atomic() {}

func (Bytes10) TypeName() string { return "bytes10" }
func (b Bytes10) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes10) atomic() {}

func (Bytes11) TypeName() string { return "bytes11" }
func (b Bytes11) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes11) atomic() {}

func (Bytes12) TypeName() string { return "bytes12" }
func (b Bytes12) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes12) atomic() {}

func (Bytes13) TypeName() string { return "bytes13" }
func (b Bytes13) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes13) atomic() {}

func (Bytes14) TypeName() string { return "bytes14" }
func (b Bytes14) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes14) atomic() {}

func (Bytes15) TypeName() string { return "bytes15" }
func (b Bytes15) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes15) atomic() {}

func (Bytes16) TypeName() string { return "bytes16" }
func (b Bytes16) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes16) atomic() {}

func (Bytes17) TypeName() string { return "bytes17" }
func (b Bytes17) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes17) atomic() {}

func (Bytes18) TypeName() string { return "bytes18" }
func (b Bytes18) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes18) atomic() {}

func (Bytes19) TypeName() string { return "bytes19" }
func (b Bytes19) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes19) atomic() {}

func (Bytes20) TypeName() string { return "bytes20" }
func (b Bytes20) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes20) atomic() {}

func (Bytes21) TypeName() string { return "bytes21" }
func (b Bytes21) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes21) atomic() {}

func (Bytes22) TypeName() string { return "bytes22" }
func (b Bytes22) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes22) atomic() {}

func (Bytes23) TypeName() string { return "bytes23" }
func (b Bytes23) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes23) atomic() {}

func (Bytes24) TypeName() string { return "bytes24" }
func (b Bytes24) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes24) atomic() {}

func (Bytes25) TypeName() string { return "bytes25" }
func (b Bytes25) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes25) atomic() {}

func (Bytes26) TypeName() string { return "bytes26" }
func (b Bytes26) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes26) atomic() {}

func (Bytes27) TypeName() string { return "bytes27" }
func (b Bytes27) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes27) atomic() {}

func (Bytes28) TypeName() string { return "bytes28" }
func (b Bytes28) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes28) atomic() {}

func (Bytes29) TypeName() string { return "bytes29" }
func (b Bytes29) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes29) atomic() {}

func (Bytes30) TypeName() string { return "bytes30" }
func (b Bytes30) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes30) atomic() {}

func (Bytes31) TypeName() string { return "bytes31" }
func (b Bytes31) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes31) atomic() {}

func (Bytes32) TypeName() string { return "bytes32" }
func (b Bytes32) EncodeData() common.Hash { return rightAligned(b[:]) }
func (Bytes32) atomic() {}
