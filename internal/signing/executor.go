package signing

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"TypedSign-Chain/internal/domain"
	xerrors "TypedSign-Chain/internal/errors"
	"TypedSign-Chain/internal/message"
	"TypedSign-Chain/internal/observability/metrics"
	"TypedSign-Chain/pkg/eip712"
)

// Executor 执行一次签名任务。
type Executor interface {
	Execute(ctx context.Context, job *Job) (*Result, error)
}

// Validator 在任务入队前校验请求，避免无效任务进入队列。
type Validator interface {
	Validate(ctx context.Context, req Request) error
}

// KeySigner 按名称使用私钥签名。
type KeySigner interface {
	Address(name string) (common.Address, error)
	Sign(name string, ds eip712.DomainSeparator, message eip712.StructType) (eip712.Signature, common.Address, error)
}

// Preview 是一条消息在签名前的全部中间哈希。
type Preview struct {
	Domain          string `json:"domain"`
	Kind            string `json:"kind"`
	PrimaryType     string `json:"primary_type"`
	EncodedType     string `json:"encoded_type"`
	TypeHash        string `json:"type_hash"`
	StructHash      string `json:"struct_hash"`
	DomainSeparator string `json:"domain_separator"`
	Digest          string `json:"digest"`
}

// TypedDataExecutor 通过签名域、消息目录与私钥仓库完成签名。
type TypedDataExecutor struct {
	domains  *domain.Registry
	messages *message.Catalog
	keys     KeySigner
	encoder  *eip712.Encoder
}

// NewTypedDataExecutor 构造执行器。enc 为空时使用默认编码器。
func NewTypedDataExecutor(domains *domain.Registry, messages *message.Catalog, keys KeySigner, enc *eip712.Encoder) *TypedDataExecutor {
	if enc == nil {
		enc = eip712.DefaultEncoder()
	}
	if messages == nil {
		messages = message.NewCatalog()
	}
	return &TypedDataExecutor{domains: domains, messages: messages, keys: keys, encoder: enc}
}

func (e *TypedDataExecutor) resolve(domainKey, kind string, raw json.RawMessage) (*domain.Domain, eip712.StructType, error) {
	d, err := e.domains.Get(strings.TrimSpace(domainKey))
	if err != nil {
		return nil, nil, err
	}
	msg, err := e.messages.Decode(strings.TrimSpace(kind), raw)
	if err != nil {
		return nil, nil, err
	}
	return d, msg, nil
}

// Preview 计算消息的类型字符串、各级哈希与最终摘要。
func (e *TypedDataExecutor) Preview(domainKey, kind string, raw json.RawMessage) (*Preview, error) {
	d, msg, err := e.resolve(domainKey, kind, raw)
	if err != nil {
		return nil, err
	}
	encoded, err := e.encoder.EncodeType(msg)
	if err != nil {
		return nil, err
	}
	typeHash, err := e.encoder.TypeHash(msg)
	if err != nil {
		return nil, err
	}
	structHash, err := e.encoder.HashStruct(msg)
	if err != nil {
		return nil, err
	}
	digest, err := e.encoder.SignHash(d.Separator, msg)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Domain:          d.Key,
		Kind:            kind,
		PrimaryType:     msg.TypeName(),
		EncodedType:     encoded,
		TypeHash:        typeHash.Hex(),
		StructHash:      structHash.Hex(),
		DomainSeparator: d.Separator.String(),
		Digest:          digest.Hex(),
	}, nil
}

// Recover 返回对消息签名的地址。signature 为 0x 前缀的 65 字节十六进制。
func (e *TypedDataExecutor) Recover(domainKey, kind string, raw json.RawMessage, signature string) (common.Address, error) {
	d, msg, err := e.resolve(domainKey, kind, raw)
	if err != nil {
		return common.Address{}, err
	}
	sigBytes, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil {
		return common.Address{}, xerrors.Wrap(eip712.CodeInvalidSignature, err, "签名不是合法的十六进制")
	}
	sig, err := eip712.ParseSignature(sigBytes)
	if err != nil {
		return common.Address{}, err
	}
	return e.encoder.RecoverTyped(d.Separator, msg, sig)
}

// Validate 实现 Validator 接口。
func (e *TypedDataExecutor) Validate(_ context.Context, req Request) error {
	if _, _, err := e.resolve(req.Domain, req.Kind, req.Message); err != nil {
		return err
	}
	if e.keys == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "私钥仓库未初始化")
	}
	_, err := e.keys.Address(strings.TrimSpace(req.Key))
	return err
}

// Execute 实现 Executor 接口。
func (e *TypedDataExecutor) Execute(ctx context.Context, job *Job) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeTimeout, err, "签名任务已取消")
	}
	if e.keys == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "私钥仓库未初始化")
	}
	d, msg, err := e.resolve(job.Domain, job.Kind, job.Message)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	typeHash, err := e.encoder.TypeHash(msg)
	if err != nil {
		return nil, err
	}
	digest, err := e.encoder.SignHash(d.Separator, msg)
	if err != nil {
		return nil, err
	}
	sig, signer, err := e.keys.Sign(job.Key, d.Separator, msg)
	if err != nil {
		return nil, err
	}
	metrics.ObserveSigningDuration(time.Since(started))

	return &Result{
		TypeHash:        typeHash.Hex(),
		DomainSeparator: d.Separator.String(),
		Digest:          digest.Hex(),
		Signature:       sig.String(),
		Signer:          signer.Hex(),
	}, nil
}

var (
	_ Executor  = (*TypedDataExecutor)(nil)
	_ Validator = (*TypedDataExecutor)(nil)
)
