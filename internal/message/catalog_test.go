package message

import (
	"encoding/json"
	"testing"

	xerrors "TypedSign-Chain/internal/errors"
	"TypedSign-Chain/pkg/eip712"
)

const mailJSON = `{
	"from": {"name": "Cow", "wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"},
	"to": {"name": "Bob", "wallet": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"},
	"contents": "Hello, Bob!"
}`

func TestDecodeMailMatchesReferenceHash(t *testing.T) {
	t.Parallel()

	msg, err := NewCatalog().Decode(KindMail, json.RawMessage(mailJSON))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	hash, err := eip712.HashStruct(msg)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash.Hex() != "0xc52c0ee5d84264471806290a3f2c4cecfc5490626bf912d01f240d7a274b371e" {
		t.Fatalf("unexpected struct hash %s", hash.Hex())
	}
}

func TestDecodeTransactionAcceptsNumberForms(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog()
	for _, amount := range []string{`1000`, `"1000"`, `"0x3e8"`} {
		raw := `{
			"from": {"wallet": "0x0000000000000000000000000000000000000001", "name": "a"},
			"to": {"wallet": "0x0000000000000000000000000000000000000002", "name": "b"},
			"tx": {"token": "0x0000000000000000000000000000000000000003", "amount": ` + amount + `}
		}`
		msg, err := catalog.Decode(KindTransaction, json.RawMessage(raw))
		if err != nil {
			t.Fatalf("decode amount %s: %v", amount, err)
		}
		tx, ok := msg.(Transaction)
		if !ok {
			t.Fatalf("unexpected message type %T", msg)
		}
		if tx.Tx.Amount.String() != "1000" {
			t.Fatalf("amount %s decoded to %s", amount, tx.Tx.Amount)
		}
	}
}

func TestKindsExposeEncodedTypes(t *testing.T) {
	t.Parallel()

	kinds := NewCatalog().Kinds()
	want := map[string]string{
		KindMail:        "Mail(Person from,Person to,string contents)Person(string name,address wallet)",
		KindPermit:      "Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)",
		KindTransaction: "Transaction(Person from,Person to,Asset tx)Asset(address token,uint256 amount)Person(address wallet,string name)",
	}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected kinds %v", kinds)
	}
	for i, kind := range kinds {
		if i > 0 && kinds[i-1].Name >= kind.Name {
			t.Fatalf("kinds not sorted")
		}
		if want[kind.Name] != kind.EncodedType {
			t.Fatalf("kind %s encoded as %s", kind.Name, kind.EncodedType)
		}
	}
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog()
	if _, err := catalog.Decode("unknown", json.RawMessage(`{}`)); xerrors.CodeOf(err) != CodeUnknownKind {
		t.Fatalf("expected unknown kind, got %v", err)
	}
	cases := map[string]string{
		"empty":         ``,
		"null":          `null`,
		"unknown field": `{"owner": "0x0000000000000000000000000000000000000001", "extra": 1}`,
		"bad address":   `{"owner": "0x1234"}`,
		"negative":      `{"value": "-1"}`,
		"trailing":      `{} {}`,
	}
	for name, raw := range cases {
		if _, err := catalog.Decode(KindPermit, json.RawMessage(raw)); xerrors.CodeOf(err) != CodeInvalidMessage {
			t.Fatalf("%s: expected invalid message, got %v", name, err)
		}
	}
}

func TestRegisterRejectsDuplicatesAndBadSchemas(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog()
	if err := catalog.Register(KindMail, Mail{}, decodeAs[Mail]); xerrors.CodeOf(err) != xerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := catalog.Register("broken", brokenMessage{}, decodeAs[brokenMessage]); xerrors.CodeOf(err) != eip712.CodeSchema {
		t.Fatalf("expected schema error, got %v", err)
	}
	if err := catalog.Register("", Mail{}, decodeAs[Mail]); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

// brokenMessage uses both Person shapes in one graph.
type brokenMessage struct{}

func (brokenMessage) TypeName() string { return "Broken" }

func (brokenMessage) VisitMembers(v eip712.MemberVisitor) {
	v.Visit("a", Person{})
	v.Visit("b", Party{})
}
