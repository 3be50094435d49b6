package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"TypedSign-Chain/internal/config"
	"TypedSign-Chain/internal/domain"
	"TypedSign-Chain/internal/keystore"
	"TypedSign-Chain/internal/message"
	"TypedSign-Chain/internal/signing"
	"TypedSign-Chain/pkg/eip712"
)

const cliKeyName = "cli"

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		log.Fatalf("typedsign: %v", err)
	}
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.App {
	domainFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "domains",
			Usage:   "path to the YAML domain catalog",
			Value:   "configs/domains.yaml",
			EnvVars: []string{"TYPEDSIGN_DOMAINS"},
		},
		&cli.StringFlag{Name: "domain", Usage: "domain key from the catalog", Required: true},
		&cli.StringFlag{Name: "kind", Usage: "message kind (see the kinds command)", Required: true},
		&cli.StringFlag{Name: "message", Usage: "inline JSON, @file, or - for stdin", Required: true},
	}

	return &cli.App{
		Name:      "typedsign",
		Usage:     "offline EIP-712 typed data hashing, signing and recovery",
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: os.Stderr,
		Commands: []*cli.Command{
			{
				Name:  "hash",
				Usage: "print the encoded type, type hash, struct hash and digest of a message",
				Flags: domainFlags,
				Action: func(c *cli.Context) error {
					sess, err := prepare(c, nil)
					if err != nil {
						return err
					}
					defer sess.close()
					preview, err := sess.exec.Preview(c.String("domain"), c.String("kind"), sess.raw)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, preview)
				},
			},
			{
				Name:  "sign",
				Usage: "sign a message with a private key",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "key-hex", Usage: "hex encoded secp256k1 private key"},
					&cli.StringFlag{Name: "key-env", Usage: "environment variable holding the private key"},
				}, domainFlags...),
				Action: func(c *cli.Context) error {
					keyCfg := config.KeyConfig{Name: cliKeyName, Hex: c.String("key-hex"), Env: c.String("key-env")}
					if (keyCfg.Hex == "") == (keyCfg.Env == "") {
						return errors.New("exactly one of --key-hex or --key-env is required")
					}
					sess, err := prepare(c, &keyCfg)
					if err != nil {
						return err
					}
					defer sess.close()
					result, err := sess.exec.Execute(c.Context, &signing.Job{
						ID:      cliKeyName,
						Domain:  c.String("domain"),
						Kind:    c.String("kind"),
						Key:     cliKeyName,
						Message: sess.raw,
					})
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, result)
				},
			},
			{
				Name:  "recover",
				Usage: "recover the signer address of a signed message",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "signature", Usage: "0x prefixed 65 byte signature", Required: true},
				}, domainFlags...),
				Action: func(c *cli.Context) error {
					sess, err := prepare(c, nil)
					if err != nil {
						return err
					}
					defer sess.close()
					signer, err := sess.exec.Recover(c.String("domain"), c.String("kind"), sess.raw, c.String("signature"))
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, map[string]string{"signer": signer.Hex()})
				},
			},
			{
				Name:  "kinds",
				Usage: "list the supported message kinds",
				Action: func(c *cli.Context) error {
					return printJSON(c.App.Writer, message.NewCatalog().Kinds())
				},
			},
		},
	}
}

type session struct {
	exec *signing.TypedDataExecutor
	raw  json.RawMessage
	keys *keystore.Store
}

func (s *session) close() { s.keys.Close() }

// prepare 加载签名域目录与可选私钥，并读取消息内容。
func prepare(c *cli.Context, key *config.KeyConfig) (*session, error) {
	enc := eip712.NewEncoder(nil)
	domains, err := domain.Load(c.String("domains"), enc)
	if err != nil {
		return nil, err
	}
	var keyCfgs []config.KeyConfig
	if key != nil {
		keyCfgs = append(keyCfgs, *key)
	}
	keys, err := keystore.Load(keyCfgs, enc, os.Getenv)
	if err != nil {
		return nil, err
	}
	raw, err := readMessage(c.String("message"), c.App.Reader)
	if err != nil {
		keys.Close()
		return nil, err
	}
	return &session{
		exec: signing.NewTypedDataExecutor(domains, message.NewCatalog(), keys, enc),
		raw:  raw,
		keys: keys,
	}, nil
}

func readMessage(arg string, stdin io.Reader) (json.RawMessage, error) {
	var data []byte
	var err error
	switch {
	case arg == "-":
		data, err = io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		data, err = os.ReadFile(strings.TrimPrefix(arg, "@"))
	default:
		data = []byte(arg)
	}
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	if !json.Valid(data) {
		return nil, errors.New("message is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

