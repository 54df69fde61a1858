package configstore

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Document edits happen on the yaml.Node tree rather than through
// marshalled structs so user comments, key order and formatting of
// untouched entries survive every write.

// parseDocument decodes raw file content into a mapping-rooted node
// tree. Empty or missing content yields a fresh empty document.
func parseDocument(data []byte) (*yaml.Node, error) {
	var root yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
	}

	if root.Kind == 0 || len(root.Content) == 0 {
		return &yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}, nil
	}
	if root.Kind != yaml.DocumentNode {
		return nil, fmt.Errorf("%w: not a document", ErrInvalidDocument)
	}

	top := root.Content[0]
	if top.Kind == yaml.ScalarNode && top.Tag == "!!null" {
		// A file holding only comments decodes to a null scalar.
		root.Content[0] = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	} else if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalidDocument)
	}
	return &root, nil
}

// findChild returns the value node for a key in a mapping, or nil.
func findChild(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// childKeys returns the set of keys present in a mapping.
func childKeys(mapping *yaml.Node) map[string]bool {
	keys := make(map[string]bool, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keys[mapping.Content[i].Value] = true
	}
	return keys
}

// ensureChild returns the mapping value for key, appending an empty one
// if absent. Existing siblings are left byte-for-byte untouched.
func ensureChild(mapping *yaml.Node, key string) (*yaml.Node, error) {
	if existing := findChild(mapping, key); existing != nil {
		if existing.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: %q is not a mapping", ErrInvalidDocument, key)
		}
		return existing, nil
	}

	value := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	mapping.Content = append(mapping.Content, scalarNode(key), value)
	return value, nil
}

// removeChild deletes a key and its value from a mapping.
func removeChild(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content = append(mapping.Content[:i], mapping.Content[i+2:]...)
			return true
		}
	}
	return false
}

// deviceNode builds the entry mapping for one device: "where" first so
// the address leads every entry, remaining fields alphabetical.
func deviceNode(fields map[string]string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	if where, ok := fields["where"]; ok {
		node.Content = append(node.Content, scalarNode("where"), quotedScalarNode(where))
	}

	rest := make([]string, 0, len(fields))
	for k := range fields {
		if k != "where" {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)

	for _, k := range rest {
		node.Content = append(node.Content, scalarNode(k), scalarNode(fields[k]))
	}
	return node
}

// hasDeviceWithWhere reports whether any entry under a platform mapping
// already claims the address.
func hasDeviceWithWhere(platform *yaml.Node, where string) bool {
	for i := 0; i+1 < len(platform.Content); i += 2 {
		entry := platform.Content[i+1]
		if entry.Kind != yaml.MappingNode {
			continue
		}
		if w := findChild(entry, "where"); w != nil && w.Value == where {
			return true
		}
	}
	return false
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// quotedScalarNode keeps addresses like "15" quoted so YAML never reads
// them back as integers.
func quotedScalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, Style: yaml.DoubleQuotedStyle}
}
