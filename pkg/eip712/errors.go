package eip712

import (
	xerrors "TypedSign-Chain/internal/errors"
)

const (
	// CodeSchema marks a malformed type graph. It indicates a programming
	// error in the type declarations and is never retryable.
	CodeSchema xerrors.Code = "SCHEMA_ERROR"
	// CodeInvalidKey marks a private scalar that is zero or not below the
	// curve order.
	CodeInvalidKey xerrors.Code = "INVALID_KEY"
	// CodeSigningFailure marks a failure of the curve signing operation.
	CodeSigningFailure xerrors.Code = "SIGNING_FAILURE"
	// CodeInvalidSignature marks a signature that cannot be parsed or
	// recovered.
	CodeInvalidSignature xerrors.Code = "INVALID_SIGNATURE"
)

// Sentinels for errors.Is; matching is by code.
var (
	ErrSchema           = xerrors.New(CodeSchema, "typed data schema error")
	ErrInvalidKey       = xerrors.New(CodeInvalidKey, "invalid private key")
	ErrSigningFailure   = xerrors.New(CodeSigningFailure, "signing failed")
	ErrInvalidSignature = xerrors.New(CodeInvalidSignature, "invalid signature")
)

func init() {
	xerrors.Register(CodeSchema, xerrors.Attributes{
		Message:  "typed data schema error",
		Severity: xerrors.SeverityCritical,
		Alert:    true,
	})
	xerrors.Register(CodeInvalidKey, xerrors.Attributes{
		Message:  "invalid private key",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeSigningFailure, xerrors.Attributes{
		Message:   "signing failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeInvalidSignature, xerrors.Attributes{
		Message:  "invalid signature",
		Severity: xerrors.SeverityInfo,
	})
}

func schemaErrorf(format string, args ...any) error {
	return xerrors.Newf(CodeSchema, format, args...)
}
