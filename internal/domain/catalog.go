package domain

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	xerrors "TypedSign-Chain/internal/errors"
)

// Catalog models the structure of configs/domains.yaml.
type Catalog struct {
	Domains map[string]Definition `yaml:"domains"`
}

// Definition describes one signing domain as written in the catalog.
type Definition struct {
	Name              string `yaml:"name"`
	Version           string `yaml:"version"`
	ChainID           Scalar `yaml:"chain_id"`
	VerifyingContract string `yaml:"verifying_contract"`
	Salt              string `yaml:"salt"`
	RPCURL            string `yaml:"rpc_url"`
	Description       string `yaml:"description"`
}

// Scalar keeps the literal text of a YAML scalar so that chain ids can be
// written as 1, "1" or 0x1 alike.
type Scalar string

// UnmarshalYAML accepts any scalar node.
func (s *Scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return xerrors.Newf(xerrors.CodeInvalidArgument, "第 %d 行: 期望标量值", node.Line)
	}
	*s = Scalar(strings.TrimSpace(node.Value))
	return nil
}

// LoadCatalog parses the YAML file containing domain definitions. An empty
// path yields an empty catalog.
func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Catalog{Domains: map[string]Definition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "读取域配置失败")
	}
	return ParseCatalog(content)
}

// ParseCatalog decodes catalog YAML.
func ParseCatalog(content []byte) (Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "解析域配置失败")
	}
	if cat.Domains == nil {
		cat.Domains = map[string]Definition{}
	}
	return cat, nil
}
