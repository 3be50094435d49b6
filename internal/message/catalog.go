package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	xerrors "TypedSign-Chain/internal/errors"
	"TypedSign-Chain/pkg/eip712"
)

const (
	// CodeUnknownKind 表示未注册的消息类型。
	CodeUnknownKind xerrors.Code = "MESSAGE_KIND_UNKNOWN"
	// CodeInvalidMessage 表示消息载荷无法解析。
	CodeInvalidMessage xerrors.Code = "MESSAGE_INVALID"
)

func init() {
	xerrors.Register(CodeUnknownKind, xerrors.Attributes{Message: "unknown message kind", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeInvalidMessage, xerrors.Attributes{Message: "invalid message payload", Severity: xerrors.SeverityInfo})
}

// Built-in kinds.
const (
	KindMail        = "mail"
	KindTransaction = "transaction"
	KindPermit      = "permit"
)

// Decoder 将 JSON 载荷解析为可哈希的结构体。
type Decoder func(raw json.RawMessage) (eip712.StructType, error)

// Kind 描述一种消息类型。
type Kind struct {
	Name        string `json:"name"`
	PrimaryType string `json:"primary_type"`
	EncodedType string `json:"encoded_type"`
	decode      Decoder
}

// Catalog 维护消息类型到解码器的映射，可并发访问。
type Catalog struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

// NewCatalog 返回注册了内置类型的目录。
func NewCatalog() *Catalog {
	c := &Catalog{kinds: make(map[string]Kind)}
	mustRegister(c, KindMail, Mail{}, decodeAs[Mail])
	mustRegister(c, KindTransaction, Transaction{}, decodeAs[Transaction])
	mustRegister(c, KindPermit, Permit{}, decodeAs[Permit])
	return c
}

func mustRegister(c *Catalog, name string, sample eip712.StructType, dec Decoder) {
	if err := c.Register(name, sample, dec); err != nil {
		panic(err)
	}
}

// Register 新增一种消息类型。sample 用于计算类型字符串，同时校验其结构合法。
func (c *Catalog) Register(name string, sample eip712.StructType, dec Decoder) error {
	name = strings.TrimSpace(name)
	if name == "" || sample == nil || dec == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "消息类型、样例与解码器均不能为空")
	}
	encoded, err := eip712.EncodeType(sample)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.kinds[name]; exists {
		return xerrors.New(xerrors.CodeConflict, fmt.Sprintf("消息类型 %s 已存在", name))
	}
	c.kinds[name] = Kind{
		Name:        name,
		PrimaryType: sample.TypeName(),
		EncodedType: encoded,
		decode:      dec,
	}
	return nil
}

// Lookup 返回指定名称的消息类型。
func (c *Catalog) Lookup(name string) (Kind, error) {
	c.mu.RLock()
	kind, ok := c.kinds[name]
	c.mu.RUnlock()
	if !ok {
		return Kind{}, xerrors.New(CodeUnknownKind, fmt.Sprintf("未知的消息类型 %q", name))
	}
	return kind, nil
}

// Decode 解析指定类型的消息载荷。
func (c *Catalog) Decode(name string, raw json.RawMessage) (eip712.StructType, error) {
	kind, err := c.Lookup(name)
	if err != nil {
		return nil, err
	}
	return kind.decode(raw)
}

// Kinds 按名称排序返回全部消息类型。
func (c *Catalog) Kinds() []Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Kind, 0, len(c.kinds))
	for _, kind := range c.kinds {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func decodeAs[T eip712.StructType](raw json.RawMessage) (eip712.StructType, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, xerrors.New(CodeInvalidMessage, "消息载荷为空")
	}
	var msg T
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return nil, xerrors.Wrap(CodeInvalidMessage, err, "解析消息载荷失败")
	}
	if dec.More() {
		return nil, xerrors.New(CodeInvalidMessage, "消息载荷包含多余内容")
	}
	return msg, nil
}
