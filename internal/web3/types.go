package web3

import (
	"context"
	"math/big"

	xerrors "TypedSign-Chain/internal/errors"
)

// CodeChainMismatch marks an RPC endpoint whose chain id differs from the
// one a domain declares.
const CodeChainMismatch xerrors.Code = "CHAIN_ID_MISMATCH"

func init() {
	xerrors.Register(CodeChainMismatch, xerrors.Attributes{
		Message:  "chain id mismatch",
		Severity: xerrors.SeverityCritical,
		Alert:    true,
	})
}

// ChainSnapshot represents summarized network metadata for reporting.
type ChainSnapshot struct {
	ChainID     string
	BlockNumber string
	Notes       string
}

// Client is the subset of chain access the service needs.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	Close()
}

// VerifyChainID asks client for its chain id and compares it with want.
func VerifyChainID(ctx context.Context, client Client, want *big.Int) error {
	if client == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未初始化的链客户端")
	}
	if want == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "缺少期望的链 ID")
	}
	got, err := client.ChainID(ctx)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInitializationFailure, err, "获取链 ID 失败")
	}
	if got.Cmp(want) != 0 {
		return xerrors.New(CodeChainMismatch, "链 ID 不匹配",
			xerrors.WithMetadata("want", want.String()),
			xerrors.WithMetadata("got", got.String()))
	}
	return nil
}
