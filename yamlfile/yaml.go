// Package yamlfile implements reading and writing of nested YAML
// translation files.
//
// The expected format is a nested YAML mapping with string leaves:
//
//	greeting: Hello
//	nav:
//	  home: Home
//
// Writing is full regeneration only. The original node tree is kept so key
// order, scalar styles, and Unicode survive the round trip; output uses
// block style.
package yamlfile

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/algebras-ai/algebras-cli/resource"
)

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// Read parses a YAML translation file.
func Read(path string) (*resource.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &resource.ParseError{Path: path, Format: "YAML", Err: err}
	}

	m := resource.NewMap()
	if len(doc.Content) > 0 {
		root := doc.Content[0]
		if root.Kind != yaml.MappingNode {
			return nil, &resource.ParseError{Path: path, Format: "YAML", Err: fmt.Errorf("root must be a mapping")}
		}
		collect(root, m)
	}
	return &resource.File{Map: m, Original: &doc}, nil
}

// collect walks a mapping node into an ordered resource.Map.
func collect(node *yaml.Node, m *resource.Map) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]

		switch valNode.Kind {
		case yaml.MappingNode:
			child := resource.NewMap()
			collect(valNode, child)
			m.Set(keyNode.Value, child)
		case yaml.ScalarNode:
			switch valNode.Tag {
			case "!!bool", "!!int", "!!float", "!!null":
				// Non-string leaves pass through on write but are not
				// part of the flat projection.
				m.Set(keyNode.Value, scalar{node: valNode})
			default:
				m.Set(keyNode.Value, valNode.Value)
			}
		default:
			// Sequences and aliases are preserved via the node tree only.
		}
	}
}

// scalar wraps a non-string leaf so full writes re-emit it verbatim.
type scalar struct{ node *yaml.Node }

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// WriteFull regenerates the file. When the original node tree is available
// its structure and scalar styles are kept and values are patched in; new
// keys are appended to the innermost existing mapping.
func WriteFull(path string, f *resource.File) error {
	var out []byte
	var err error

	if doc, ok := f.Original.(*yaml.Node); ok && len(doc.Content) > 0 && doc.Content[0].Kind == yaml.MappingNode {
		apply(doc.Content[0], f.Map)
		out, err = yaml.Marshal(doc)
	} else {
		out, err = yaml.Marshal(buildNode(f.Map))
	}
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	return os.WriteFile(path, out, 0644)
}

// apply patches map values into an existing node tree and appends keys the
// tree does not have yet.
func apply(node *yaml.Node, m *resource.Map) {
	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]
		seen[keyNode.Value] = true

		v, ok := m.Get(keyNode.Value)
		if !ok {
			continue
		}
		switch val := v.(type) {
		case *resource.Map:
			if valNode.Kind == yaml.MappingNode {
				apply(valNode, val)
			}
		case string:
			if valNode.Kind == yaml.ScalarNode {
				valNode.Value = val
				if val == "" {
					valNode.Style = yaml.DoubleQuotedStyle
				}
			}
		}
	}
	for _, k := range m.Keys() {
		if seen[k] {
			continue
		}
		v, _ := m.Get(k)
		valNode := valueNode(v)
		if valNode == nil {
			continue
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			valNode)
	}
}

// buildNode builds a fresh mapping node from a resource.Map.
func buildNode(m *resource.Map) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		valNode := valueNode(v)
		if valNode == nil {
			continue
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			valNode)
	}
	return node
}

func valueNode(v resource.Value) *yaml.Node {
	switch val := v.(type) {
	case *resource.Map:
		return buildNode(val)
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: val}
	case scalar:
		return val.node
	}
	return nil
}
