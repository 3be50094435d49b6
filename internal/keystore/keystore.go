// Package keystore holds the named signing keys of the daemon in memory.
// Keys never leave the store; callers sign through it by name.
package keystore

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"TypedSign-Chain/internal/config"
	xerrors "TypedSign-Chain/internal/errors"
	"TypedSign-Chain/pkg/eip712"
)

// CodeKeyNotFound 表示请求的私钥名称不存在。
const CodeKeyNotFound xerrors.Code = "KEY_NOT_FOUND"

func init() {
	xerrors.Register(CodeKeyNotFound, xerrors.Attributes{Message: "signing key not found", Severity: xerrors.SeverityInfo})
}

type entry struct {
	key     eip712.PrivateKey
	address common.Address
}

// Store 是并发安全的内存私钥仓库。
type Store struct {
	mu      sync.RWMutex
	encoder *eip712.Encoder
	keys    map[string]*entry
	closed  bool
}

// New 创建空的私钥仓库。
func New(enc *eip712.Encoder) *Store {
	if enc == nil {
		enc = eip712.DefaultEncoder()
	}
	return &Store{encoder: enc, keys: make(map[string]*entry)}
}

// Load 根据配置加载私钥。getenv 为空时使用 os.Getenv。
func Load(cfgs []config.KeyConfig, enc *eip712.Encoder, getenv func(string) string) (*Store, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	store := New(enc)
	for _, cfg := range cfgs {
		material := cfg.Hex
		if cfg.Env != "" {
			material = strings.TrimSpace(getenv(cfg.Env))
			if material == "" {
				store.Close()
				return nil, xerrors.New(xerrors.CodeInitializationFailure, fmt.Sprintf("环境变量 %s 未设置私钥 %s", cfg.Env, cfg.Name))
			}
		}
		key, err := eip712.PrivateKeyFromHex(material)
		if err != nil {
			store.Close()
			return nil, xerrors.Wrap(eip712.CodeInvalidKey, err, fmt.Sprintf("解析私钥 %s 失败", cfg.Name))
		}
		err = store.Add(cfg.Name, &key)
		if err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}

// Add 导入私钥并清零调用方的副本。
func (s *Store) Add(name string, key *eip712.PrivateKey) error {
	if key == nil {
		return xerrors.New(eip712.CodeInvalidKey, "private key is nil")
	}
	defer key.Zero()
	if strings.TrimSpace(name) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "私钥名称不能为空")
	}

	address, err := key.Address()
	if err != nil {
		return err
	}
	e := &entry{key: *key, address: address}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		e.key.Zero()
		return xerrors.New(xerrors.CodeInitializationFailure, "私钥仓库已关闭")
	}
	if _, exists := s.keys[name]; exists {
		e.key.Zero()
		return xerrors.New(xerrors.CodeConflict, fmt.Sprintf("私钥 %s 已存在", name))
	}
	s.keys[name] = e
	return nil
}

func (s *Store) lookup(name string) (*entry, error) {
	e, ok := s.keys[name]
	if !ok {
		return nil, xerrors.New(CodeKeyNotFound, fmt.Sprintf("私钥 %q 不存在", name))
	}
	return e, nil
}

// Address 返回私钥对应的地址。
func (s *Store) Address(name string) (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(name)
	if err != nil {
		return common.Address{}, err
	}
	return e.address, nil
}

// Sign 使用指定私钥对 message 签名。
func (s *Store) Sign(name string, ds eip712.DomainSeparator, message eip712.StructType) (eip712.Signature, common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(name)
	if err != nil {
		return eip712.Signature{}, common.Address{}, err
	}
	sig, err := s.encoder.SignTyped(ds, message, &e.key)
	if err != nil {
		return eip712.Signature{}, common.Address{}, err
	}
	return sig, e.address, nil
}

// KeyInfo 是对外展示的私钥信息。
type KeyInfo struct {
	Name    string         `json:"name"`
	Address common.Address `json:"address"`
}

// List 按名称返回全部私钥的地址。
func (s *Store) List() []KeyInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]KeyInfo, 0, len(s.keys))
	for name, e := range s.keys {
		out = append(out, KeyInfo{Name: name, Address: e.address})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close 清零全部私钥。之后的签名请求会返回 KEY_NOT_FOUND。
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, e := range s.keys {
		e.key.Zero()
		delete(s.keys, name)
	}
	s.closed = true
}
