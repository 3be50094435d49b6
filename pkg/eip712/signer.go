package eip712

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "TypedSign-Chain/internal/errors"
)

// recoveryOffset is added to the recovery id for legacy verifiers.
const recoveryOffset = 27

// PrivateKey is a raw secp256k1 scalar. Callers own it and should call Zero
// when it is no longer needed.
type PrivateKey [32]byte

// PrivateKeyFromHex decodes a 32-byte hex scalar, with or without 0x.
func PrivateKeyFromHex(s string) (PrivateKey, error) {
	if len(s) < 2 || (s[:2] != "0x" && s[:2] != "0X") {
		s = "0x" + s
	}
	raw, err := hexutil.Decode(s)
	defer clear(raw)
	if err != nil {
		return PrivateKey{}, xerrors.Wrap(CodeInvalidKey, err, "decode private key")
	}
	if len(raw) != 32 {
		return PrivateKey{}, xerrors.Newf(CodeInvalidKey, "private key must be 32 bytes, got %d", len(raw))
	}
	var key PrivateKey
	copy(key[:], raw)
	return key, nil
}

// Zero overwrites the key material.
func (k *PrivateKey) Zero() {
	clear(k[:])
}

// Address derives the Ethereum address of the key.
func (k *PrivateKey) Address() (common.Address, error) {
	var addr common.Address
	err := withECDSAKey(k, func(priv *ecdsa.PrivateKey) error {
		addr = crypto.PubkeyToAddress(priv.PublicKey)
		return nil
	})
	return addr, err
}

// Signature is a recoverable secp256k1 signature. V is the recovery id plus
// 27.
type Signature struct {
	RS [64]byte
	V  byte
}

// ParseSignature reads the 65-byte r ‖ s ‖ v form. v may be 0/1 or 27/28.
func ParseSignature(b []byte) (Signature, error) {
	if len(b) != 65 {
		return Signature{}, xerrors.Newf(CodeInvalidSignature, "signature must be 65 bytes, got %d", len(b))
	}
	var sig Signature
	copy(sig.RS[:], b[:64])
	sig.V = b[64]
	if sig.V < recoveryOffset {
		sig.V += recoveryOffset
	}
	if sig.V != recoveryOffset && sig.V != recoveryOffset+1 {
		return Signature{}, xerrors.Newf(CodeInvalidSignature, "invalid recovery id %d", b[64])
	}
	return sig, nil
}

// R returns the first half of the signature.
func (s Signature) R() common.Hash { return common.BytesToHash(s.RS[:32]) }

// S returns the second half of the signature.
func (s Signature) S() common.Hash { return common.BytesToHash(s.RS[32:]) }

// Bytes returns r ‖ s ‖ v.
func (s Signature) Bytes() []byte {
	out := make([]byte, 65)
	copy(out, s.RS[:])
	out[64] = s.V
	return out
}

func (s Signature) String() string { return hexutil.Encode(s.Bytes()) }

// SignDigest signs a 32-byte digest with key. The transient copies of the
// scalar are zeroed before it returns, whatever the outcome.
func SignDigest(digest common.Hash, key *PrivateKey) (Signature, error) {
	var sig Signature
	err := withECDSAKey(key, func(priv *ecdsa.PrivateKey) error {
		raw, err := crypto.Sign(digest[:], priv)
		if err != nil {
			return xerrors.Wrap(CodeSigningFailure, err, "sign digest")
		}
		copy(sig.RS[:], raw[:64])
		sig.V = raw[64] + recoveryOffset
		return nil
	})
	if err != nil {
		return Signature{}, err
	}
	return sig, nil
}

// RecoverDigest returns the address that produced sig over digest.
func RecoverDigest(digest common.Hash, sig Signature) (common.Address, error) {
	if sig.V != recoveryOffset && sig.V != recoveryOffset+1 {
		return common.Address{}, xerrors.Newf(CodeInvalidSignature, "invalid recovery id %d", sig.V)
	}
	raw := sig.Bytes()
	raw[64] -= recoveryOffset
	pub, err := crypto.SigToPub(digest[:], raw)
	if err != nil {
		return common.Address{}, xerrors.Wrap(CodeInvalidSignature, err, "recover public key")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignTyped signs the digest of message under ds.
func (e *Encoder) SignTyped(ds DomainSeparator, message StructType, key *PrivateKey) (Signature, error) {
	digest, err := e.SignHash(ds, message)
	if err != nil {
		return Signature{}, err
	}
	return SignDigest(digest, key)
}

// RecoverTyped returns the signer of message under ds.
func (e *Encoder) RecoverTyped(ds DomainSeparator, message StructType, sig Signature) (common.Address, error) {
	digest, err := e.SignHash(ds, message)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverDigest(digest, sig)
}

// VerifyTyped reports whether sig over message under ds was made by signer.
func (e *Encoder) VerifyTyped(ds DomainSeparator, message StructType, sig Signature, signer common.Address) (bool, error) {
	recovered, err := e.RecoverTyped(ds, message, sig)
	if err != nil {
		return false, err
	}
	return recovered == signer, nil
}

// SignTyped calls DefaultEncoder().SignTyped.
func SignTyped(ds DomainSeparator, message StructType, key *PrivateKey) (Signature, error) {
	return DefaultEncoder().SignTyped(ds, message, key)
}

// RecoverTyped calls DefaultEncoder().RecoverTyped.
func RecoverTyped(ds DomainSeparator, message StructType, sig Signature) (common.Address, error) {
	return DefaultEncoder().RecoverTyped(ds, message, sig)
}

// VerifyTyped calls DefaultEncoder().VerifyTyped.
func VerifyTyped(ds DomainSeparator, message StructType, sig Signature, signer common.Address) (bool, error) {
	return DefaultEncoder().VerifyTyped(ds, message, sig, signer)
}

// withECDSAKey parses key into an *ecdsa.PrivateKey for the duration of fn.
// Both the byte copy handed to the parser and the parsed scalar are zeroed
// on every return path, including a rejected scalar.
func withECDSAKey(key *PrivateKey, fn func(*ecdsa.PrivateKey) error) error {
	if key == nil {
		return xerrors.New(CodeInvalidKey, "private key is nil")
	}
	scalar := make([]byte, len(key))
	defer clear(scalar)
	copy(scalar, key[:])

	priv, err := crypto.ToECDSA(scalar)
	if err != nil {
		return xerrors.Wrap(CodeInvalidKey, err, "parse private key")
	}
	defer zeroECDSAKey(priv)
	return fn(priv)
}

func zeroECDSAKey(k *ecdsa.PrivateKey) {
	if k == nil || k.D == nil {
		return
	}
	clear(k.D.Bits())
}
