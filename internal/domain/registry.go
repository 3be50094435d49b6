package domain

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	xerrors "TypedSign-Chain/internal/errors"
	"TypedSign-Chain/pkg/eip712"
)

// CodeDomainNotFound 表示请求的签名域不存在。
const CodeDomainNotFound xerrors.Code = "DOMAIN_NOT_FOUND"

func init() {
	xerrors.Register(CodeDomainNotFound, xerrors.Attributes{
		Message:  "signing domain not found",
		Severity: xerrors.SeverityInfo,
	})
}

// Domain 是加载完成的签名域，包含预先计算的域分隔符。
type Domain struct {
	Key               string
	Name              string
	Version           string
	ChainID           eip712.Uint256
	VerifyingContract eip712.Address
	Salt              *[32]byte
	RPCURL            string
	Description       string
	Separator         eip712.DomainSeparator
}

// Struct 返回用于计算域分隔符的 EIP712Domain 结构。
func (d *Domain) Struct() eip712.StructType {
	if d.Salt != nil {
		return eip712.EIP712Domain{
			Name:              d.Name,
			Version:           d.Version,
			ChainID:           d.ChainID,
			VerifyingContract: d.VerifyingContract,
			Salt:              eip712.Bytes32(*d.Salt),
		}
	}
	return eip712.EIP712DomainNoSalt{
		Name:              d.Name,
		Version:           d.Version,
		ChainID:           d.ChainID,
		VerifyingContract: d.VerifyingContract,
	}
}

// View 是对外展示的域信息。
type View struct {
	Key               string `json:"key"`
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           string `json:"chain_id"`
	VerifyingContract string `json:"verifying_contract"`
	Salt              string `json:"salt,omitempty"`
	Description       string `json:"description,omitempty"`
	Separator         string `json:"separator"`
}

// View 生成展示用的副本。
func (d *Domain) View() View {
	v := View{
		Key:               d.Key,
		Name:              d.Name,
		Version:           d.Version,
		ChainID:           d.ChainID.String(),
		VerifyingContract: d.VerifyingContract.String(),
		Description:       d.Description,
		Separator:         d.Separator.String(),
	}
	if d.Salt != nil {
		v.Salt = hexutil.Encode(d.Salt[:])
	}
	return v
}

// Registry 按名称提供签名域查询。加载后只读，可并发访问。
type Registry struct {
	domains map[string]*Domain
}

// NewRegistry 根据目录构建全部签名域。
func NewRegistry(cat Catalog, enc *eip712.Encoder) (*Registry, error) {
	if enc == nil {
		enc = eip712.DefaultEncoder()
	}
	domains := make(map[string]*Domain, len(cat.Domains))
	for key, def := range cat.Domains {
		d, err := build(key, def, enc)
		if err != nil {
			return nil, err
		}
		domains[key] = d
	}
	return &Registry{domains: domains}, nil
}

// Load 读取 YAML 目录并构建注册表。
func Load(path string, enc *eip712.Encoder) (*Registry, error) {
	cat, err := LoadCatalog(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "加载签名域失败")
	}
	return NewRegistry(cat, enc)
}

func build(key string, def Definition, enc *eip712.Encoder) (*Domain, error) {
	invalid := func(format string, args ...any) error {
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("域 %s: ", key)+fmt.Sprintf(format, args...))
	}
	if strings.TrimSpace(key) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "域名称不能为空")
	}
	if def.Name == "" {
		return nil, invalid("缺少 name")
	}
	chainID, err := eip712.ParseUint256(string(def.ChainID))
	if err != nil {
		return nil, invalid("chain_id 无效: %v", err)
	}
	if !common.IsHexAddress(def.VerifyingContract) {
		return nil, invalid("verifying_contract 不是合法地址: %q", def.VerifyingContract)
	}

	d := &Domain{
		Key:               key,
		Name:              def.Name,
		Version:           def.Version,
		ChainID:           chainID,
		VerifyingContract: eip712.HexToAddress(def.VerifyingContract),
		RPCURL:            strings.TrimSpace(def.RPCURL),
		Description:       def.Description,
	}
	if def.Salt != "" {
		raw, err := hexutil.Decode(def.Salt)
		if err != nil || len(raw) != 32 {
			return nil, invalid("salt 必须是 32 字节十六进制")
		}
		var salt [32]byte
		copy(salt[:], raw)
		d.Salt = &salt
	}

	d.Separator, err = enc.NewDomainSeparator(d.Struct())
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Get 返回指定名称的签名域。
func (r *Registry) Get(key string) (*Domain, error) {
	if r != nil {
		if d, ok := r.domains[key]; ok {
			return d, nil
		}
	}
	return nil, xerrors.New(CodeDomainNotFound, fmt.Sprintf("签名域 %q 不存在", key))
}

// List 按名称排序返回全部签名域。
func (r *Registry) List() []*Domain {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.domains))
	for key := range r.domains {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]*Domain, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.domains[key])
	}
	return out
}

// ChainVerifier 检查 rpcURL 所在链的 ID 是否与 want 一致。
type ChainVerifier func(ctx context.Context, rpcURL string, want *big.Int) error

// VerifyChains 对配置了 rpc_url 的签名域逐一校验链 ID。
func (r *Registry) VerifyChains(ctx context.Context, verify ChainVerifier) error {
	if verify == nil {
		return nil
	}
	for _, d := range r.List() {
		if d.RPCURL == "" {
			continue
		}
		if err := verify(ctx, d.RPCURL, d.ChainID.Big()); err != nil {
			return xerrors.Wrap(xerrors.CodeInitializationFailure, err, fmt.Sprintf("校验域 %s 的链 ID 失败", d.Key))
		}
	}
	return nil
}
