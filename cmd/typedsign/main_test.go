package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

const testDomains = `
domains:
  ether-mail:
    name: Ether Mail
    version: "1"
    chain_id: 1
    verifying_contract: "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"
`

const etherMail = `{"from":{"name":"Cow","wallet":"0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"},"to":{"name":"Bob","wallet":"0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"},"contents":"Hello, Bob!"}`

func writeDomains(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "domains.yaml")
	if err := os.WriteFile(path, []byte(testDomains), 0o600); err != nil {
		t.Fatalf("write domains: %v", err)
	}
	return path
}

func runApp(t *testing.T, stdin string, args ...string) (map[string]any, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(strings.NewReader(stdin), &out).Run(append([]string{"typedsign"}, args...))
	if err != nil {
		return nil, err
	}
	var decoded map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	return decoded, nil
}

func TestHashCommand(t *testing.T) {
	domains := writeDomains(t)
	out, err := runApp(t, etherMail, "hash", "--domains", domains, "--domain", "ether-mail", "--kind", "mail", "--message", "-")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if out["digest"] != "0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2" {
		t.Fatalf("unexpected digest %v", out["digest"])
	}
}

func TestSignAndRecoverCommands(t *testing.T) {
	domains := writeDomains(t)
	msgPath := filepath.Join(t.TempDir(), "mail.json")
	if err := os.WriteFile(msgPath, []byte(etherMail), 0o600); err != nil {
		t.Fatalf("write message: %v", err)
	}
	t.Setenv("TYPEDSIGN_TEST_KEY", crypto.Keccak256Hash([]byte("cow")).Hex())

	signed, err := runApp(t, "", "sign", "--key-env", "TYPEDSIGN_TEST_KEY",
		"--domains", domains, "--domain", "ether-mail", "--kind", "mail", "--message", "@"+msgPath)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig, _ := signed["signature"].(string)
	if !strings.HasPrefix(sig, "0x4355c47d") || !strings.HasSuffix(sig, "1c") {
		t.Fatalf("unexpected signature %q", sig)
	}

	recovered, err := runApp(t, "", "recover", "--signature", sig,
		"--domains", domains, "--domain", "ether-mail", "--kind", "mail", "--message", etherMail)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered["signer"] != "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826" {
		t.Fatalf("unexpected signer %v", recovered["signer"])
	}
}

func TestSignRequiresExactlyOneKeySource(t *testing.T) {
	domains := writeDomains(t)
	_, err := runApp(t, "", "sign", "--domains", domains, "--domain", "ether-mail", "--kind", "mail", "--message", etherMail)
	if err == nil || !strings.Contains(err.Error(), "--key-hex") {
		t.Fatalf("expected key source error, got %v", err)
	}
	if _, err := runApp(t, "", "hash", "--domains", domains, "--domain", "ether-mail", "--kind", "mail", "--message", "{"); err == nil {
		t.Fatalf("expected invalid JSON error")
	}
}
