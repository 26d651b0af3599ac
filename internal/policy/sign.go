package policy

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rtgl/internal/ir"
)

// SignPack validates data and returns it with a signature block holding
// the content digest. An existing signature is replaced. Comments and key
// order are kept.
func SignPack(data []byte) ([]byte, string, error) {
	p, err := ParsePack(data, LoadOptions{})
	if err != nil {
		return nil, "", err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "", &ir.Error{Kind: ir.KindInputShape, Message: "invalid policy pack YAML", Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, "", ir.NewInputShapeError("", "policy pack must be a YAML mapping")
	}
	root := doc.Content[0]

	sig := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	sig.Content = append(sig.Content,
		scalar("algorithm"), scalar(SignatureAlgorithm),
		scalar("digest"), scalar(p.Digest),
	)

	replaced := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "signature" {
			root.Content[i+1] = sig
			replaced = true
			break
		}
	}
	if !replaced {
		root.Content = append(root.Content, scalar("signature"), sig)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, "", fmt.Errorf("encode policy pack: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, "", fmt.Errorf("encode policy pack: %w", err)
	}
	return buf.Bytes(), p.Digest, nil
}

// SignPackFile signs the pack at path in place and returns the digest.
func SignPackFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read policy pack: %w", err)
	}
	signed, digest, err := SignPack(data)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat policy pack: %w", err)
	}
	if err := os.WriteFile(path, signed, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("failed to write policy pack: %w", err)
	}
	return digest, nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
