package types

import (
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// RuleKind tags the shape held by a RuleNode.
type RuleKind int

const (
	RuleKindInvalid RuleKind = iota
	RuleKindMapping
	RuleKindSequence
	RuleKindString
	// RuleKindScalar covers every non-string scalar: numbers, booleans and
	// null.  Rule documents never accept them as rule bodies.
	RuleKindScalar
)

func (k RuleKind) String() string {
	switch k {
	case RuleKindMapping:
		return "mapping"
	case RuleKindSequence:
		return "sequence"
	case RuleKindString:
		return "string"
	case RuleKindScalar:
		return "scalar"
	default:
		return "invalid"
	}
}

// RuleNode is one node of a parsed rule document.  Exactly one of Mapping,
// Sequence or Text is meaningful, selected by Kind.  Text holds the string
// value for RuleKindString and the literal for RuleKindScalar.
type RuleNode struct {
	Kind     RuleKind
	Mapping  map[string]RuleNode
	Sequence []RuleNode
	Text     string
}

func MappingNode(entries map[string]RuleNode) RuleNode {
	if entries == nil {
		entries = map[string]RuleNode{}
	}
	return RuleNode{Kind: RuleKindMapping, Mapping: entries}
}

func SequenceNode(items ...RuleNode) RuleNode {
	return RuleNode{Kind: RuleKindSequence, Sequence: items}
}

func StringNode(value string) RuleNode {
	return RuleNode{Kind: RuleKindString, Text: value}
}

func ScalarNode(literal string) RuleNode {
	return RuleNode{Kind: RuleKindScalar, Text: literal}
}

func (n RuleNode) IsMapping() bool  { return n.Kind == RuleKindMapping }
func (n RuleNode) IsSequence() bool { return n.Kind == RuleKindSequence }
func (n RuleNode) IsString() bool   { return n.Kind == RuleKindString }

// Get looks up key in a mapping node.  Non-mapping nodes never contain keys.
func (n RuleNode) Get(key string) (RuleNode, bool) {
	if n.Kind != RuleKindMapping {
		return RuleNode{}, false
	}
	child, ok := n.Mapping[key]
	return child, ok
}

// Keys returns the sorted keys of a mapping node.
func (n RuleNode) Keys() []string {
	keys := make([]string, 0, len(n.Mapping))
	for key := range n.Mapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Interface converts the node back into plain Go values, mainly for
// printing rule data in error reports.
func (n RuleNode) Interface() any {
	switch n.Kind {
	case RuleKindMapping:
		out := make(map[string]any, len(n.Mapping))
		for key, child := range n.Mapping {
			out[key] = child.Interface()
		}
		return out
	case RuleKindSequence:
		out := make([]any, 0, len(n.Sequence))
		for _, child := range n.Sequence {
			out = append(out, child.Interface())
		}
		return out
	case RuleKindString, RuleKindScalar:
		return n.Text
	default:
		return nil
	}
}

// NodeFromValue converts decoded Go values (as produced by yaml or json
// decoders, or written inline in tests) into a RuleNode.
func NodeFromValue(value any) RuleNode {
	switch v := value.(type) {
	case RuleNode:
		return v
	case string:
		return StringNode(v)
	case map[string]any:
		entries := make(map[string]RuleNode, len(v))
		for key, child := range v {
			entries[key] = NodeFromValue(child)
		}
		return MappingNode(entries)
	case map[any]any:
		entries := make(map[string]RuleNode, len(v))
		for key, child := range v {
			entries[fmt.Sprint(key)] = NodeFromValue(child)
		}
		return MappingNode(entries)
	case map[string]string:
		entries := make(map[string]RuleNode, len(v))
		for key, child := range v {
			entries[key] = StringNode(child)
		}
		return MappingNode(entries)
	case []any:
		items := make([]RuleNode, 0, len(v))
		for _, child := range v {
			items = append(items, NodeFromValue(child))
		}
		return SequenceNode(items...)
	case []string:
		items := make([]RuleNode, 0, len(v))
		for _, child := range v {
			items = append(items, StringNode(child))
		}
		return SequenceNode(items...)
	case nil:
		return ScalarNode("null")
	case bool:
		return ScalarNode(strconv.FormatBool(v))
	default:
		return ScalarNode(fmt.Sprint(v))
	}
}

// UnmarshalYAML keeps the distinction between string and non-string
// scalars, which a decode into interface{} would blur for keys but not for
// values.
func (n *RuleNode) UnmarshalYAML(value *yaml.Node) error {
	converted, err := nodeFromYAML(value)
	if err != nil {
		return err
	}
	*n = converted
	return nil
}

func (n RuleNode) MarshalYAML() (any, error) {
	return n.Interface(), nil
}

func nodeFromYAML(value *yaml.Node) (RuleNode, error) {
	switch value.Kind {
	case yaml.DocumentNode:
		if len(value.Content) == 0 {
			return ScalarNode("null"), nil
		}
		return nodeFromYAML(value.Content[0])
	case yaml.AliasNode:
		if value.Alias == nil {
			return RuleNode{}, fmt.Errorf("line %d: dangling alias", value.Line)
		}
		return nodeFromYAML(value.Alias)
	case yaml.MappingNode:
		entries := make(map[string]RuleNode, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			keyNode := value.Content[i]
			if keyNode.Kind != yaml.ScalarNode {
				return RuleNode{}, fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
			}
			child, err := nodeFromYAML(value.Content[i+1])
			if err != nil {
				return RuleNode{}, err
			}
			entries[keyNode.Value] = child
		}
		return MappingNode(entries), nil
	case yaml.SequenceNode:
		items := make([]RuleNode, 0, len(value.Content))
		for _, item := range value.Content {
			child, err := nodeFromYAML(item)
			if err != nil {
				return RuleNode{}, err
			}
			items = append(items, child)
		}
		return SequenceNode(items...), nil
	case yaml.ScalarNode:
		if value.ShortTag() == "!!str" {
			return StringNode(value.Value), nil
		}
		return ScalarNode(value.Value), nil
	default:
		return RuleNode{}, fmt.Errorf("line %d: unsupported yaml node", value.Line)
	}
}
