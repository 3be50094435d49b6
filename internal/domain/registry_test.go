package domain

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	xerrors "TypedSign-Chain/internal/errors"
	"TypedSign-Chain/pkg/eip712"
)

const catalogYAML = `
domains:
  ether-mail:
    name: Ether Mail
    version: "1"
    chain_id: 1
    verifying_contract: "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"
    description: reference mail domain
  salted:
    name: Salted
    version: "2"
    chain_id: 0x89
    verifying_contract: "0x0000000000000000000000000000000000000001"
    salt: "0x00000000000000000000000000000000000000000000000000000000000000aa"
    rpc_url: http://polygon.invalid
`

func TestLoadBuildsSeparators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.yaml")
	if err := os.WriteFile(path, []byte(catalogYAML), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	reg, err := Load(path, eip712.NewEncoder(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	mail, err := reg.Get("ether-mail")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := mail.Separator.String(); got != "0xf2cee375fa42b42143804025fc449deafd50cc031ca257e0b194a650a912090f" {
		t.Fatalf("unexpected separator %s", got)
	}
	if _, ok := mail.Struct().(eip712.EIP712DomainNoSalt); !ok {
		t.Fatalf("unsalted domain should use the four-field struct")
	}

	salted, err := reg.Get("salted")
	if err != nil {
		t.Fatalf("get salted: %v", err)
	}
	if salted.ChainID.String() != "137" || salted.Salt == nil || salted.Salt[31] != 0xaa {
		t.Fatalf("unexpected salted domain %+v", salted.View())
	}
	if _, ok := salted.Struct().(eip712.EIP712Domain); !ok {
		t.Fatalf("salted domain should use the five-field struct")
	}
	if salted.Separator == mail.Separator {
		t.Fatalf("different domains share a separator")
	}

	list := reg.List()
	if len(list) != 2 || list[0].Key != "ether-mail" || list[1].Key != "salted" {
		t.Fatalf("unexpected list order")
	}

	_, err = reg.Get("missing")
	if xerrors.CodeOf(err) != CodeDomainNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegistryRejectsInvalidDefinitions(t *testing.T) {
	cases := map[string]Definition{
		"no name":      {ChainID: "1", VerifyingContract: "0x0000000000000000000000000000000000000001"},
		"bad chain":    {Name: "x", ChainID: "one", VerifyingContract: "0x0000000000000000000000000000000000000001"},
		"bad contract": {Name: "x", ChainID: "1", VerifyingContract: "0x1234"},
		"short salt":   {Name: "x", ChainID: "1", VerifyingContract: "0x0000000000000000000000000000000000000001", Salt: "0x01"},
		"negative":     {Name: "x", ChainID: "-1", VerifyingContract: "0x0000000000000000000000000000000000000001"},
	}
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(Catalog{Domains: map[string]Definition{"d": def}}, nil)
			if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
				t.Fatalf("expected invalid argument, got %v", err)
			}
		})
	}
}

func TestVerifyChainsOnlyChecksDomainsWithEndpoints(t *testing.T) {
	cat, err := ParseCatalog([]byte(catalogYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reg, err := NewRegistry(cat, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	var calls []string
	err = reg.VerifyChains(context.Background(), func(_ context.Context, url string, want *big.Int) error {
		calls = append(calls, url)
		if want.Int64() != 137 {
			t.Fatalf("unexpected chain id %s", want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(calls) != 1 || calls[0] != "http://polygon.invalid" {
		t.Fatalf("unexpected verifier calls %v", calls)
	}

	boom := errors.New("boom")
	err = reg.VerifyChains(context.Background(), func(context.Context, string, *big.Int) error { return boom })
	if !errors.Is(err, boom) || xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("expected wrapped verifier error, got %v", err)
	}
}

func TestLoadCatalogEmptyPath(t *testing.T) {
	cat, err := LoadCatalog("")
	if err != nil || len(cat.Domains) != 0 {
		t.Fatalf("expected empty catalog, got %v %v", cat, err)
	}
	if _, err := ParseCatalog([]byte("domains:\n  x:\n    chain_id: [1, 2]\n")); xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("expected coded error for sequence chain id, got %v", err)
	}
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("expected coded error for missing file, got %v", err)
	}
}
