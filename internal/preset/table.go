package preset

import (
	"bytes"
	"fmt"
	"iter"

	"gopkg.in/yaml.v3"
)

// Entry is one key/bundle pair of a [Table].
type Entry[V any] struct {
	Key   string
	Value V
}

// Table is an ordered, read-only mapping from a category key to a parameter
// bundle. The zero value is an empty table. A Table is safe for concurrent
// reads; there is no way to mutate it after construction.
type Table[V any] struct {
	keys  []string
	index map[string]V
}

// NewTable builds a table from entries in order. A duplicate key keeps its
// first position and the last value.
func NewTable[V any](entries ...Entry[V]) Table[V] {
	t := Table[V]{index: make(map[string]V, len(entries))}
	for _, e := range entries {
		if _, dup := t.index[e.Key]; !dup {
			t.keys = append(t.keys, e.Key)
		}
		t.index[e.Key] = e.Value
	}
	return t
}

// Lookup returns the bundle for key and whether it exists.
func (t Table[V]) Lookup(key string) (V, bool) {
	v, ok := t.index[key]
	return v, ok
}

// Has reports whether key exists.
func (t Table[V]) Has(key string) bool {
	_, ok := t.index[key]
	return ok
}

// Keys returns the keys in table order. The returned slice is a copy.
func (t Table[V]) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Len returns the number of entries.
func (t Table[V]) Len() int { return len(t.keys) }

// All iterates entries in table order.
func (t Table[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, k := range t.keys {
			if !yield(k, t.index[k]) {
				return
			}
		}
	}
}

// UnmarshalYAML decodes a YAML mapping, keeping document order. Unknown
// fields inside a bundle are rejected.
func (t *Table[V]) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping, got %s", n.Line, nodeKind(n))
	}
	entries := make([]Entry[V], 0, len(n.Content)/2)
	seen := make(map[string]int, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valNode := n.Content[i], n.Content[i+1]
		if prev, dup := seen[keyNode.Value]; dup {
			return fmt.Errorf("line %d: duplicate key %q (first defined on line %d)", keyNode.Line, keyNode.Value, prev)
		}
		seen[keyNode.Value] = keyNode.Line

		var v V
		if err := decodeStrict(valNode, &v); err != nil {
			return fmt.Errorf("key %q: %w", keyNode.Value, err)
		}
		entries = append(entries, Entry[V]{Key: keyNode.Value, Value: v})
	}
	*t = NewTable(entries...)
	return nil
}

// MarshalYAML encodes the table as an ordered mapping.
func (t Table[V]) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for k, v := range t.All() {
		var val yaml.Node
		if err := val.Encode(v); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, &val)
	}
	return n, nil
}

// decodeStrict decodes n into v rejecting unknown fields. yaml.Node.Decode
// does not honour KnownFields, so the node is round-tripped through a
// strict decoder.
func decodeStrict(n *yaml.Node, v any) error {
	raw, err := yaml.Marshal(n)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(v)
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
