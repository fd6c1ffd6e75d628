package manifest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/sambeau/tether/pkg/tether/ast"
)

// ParseTOML decodes a TOML manifest:
//
//	[context]
//	name = "Ada"
//
//	[[bindings]]
//	key = "shout"
//	expression = { pipe = "uppercase", input = { member = "name" } }
//
// Tables keep the order their keys appear in the file.
func ParseTOML(data []byte, name string, closures ast.ClosureMap) (*Manifest, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}

	order := make(map[string]int, len(md.Keys()))
	for i, k := range md.Keys() {
		order[strings.Join(k, "\x00")] = i
	}
	c := &tomlConverter{order: order}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{c.node(nil, raw)}}
	if c.err != nil {
		return nil, c.err
	}
	return decode(doc, name, closures)
}

// tomlConverter rebuilds decoded TOML values as YAML nodes so both formats
// share one decoding path.
type tomlConverter struct {
	order map[string]int
	err   error
}

func (c *tomlConverter) node(path []string, v any) *yaml.Node {
	switch x := v.(type) {
	case map[string]any:
		return c.table(path, x)
	case []map[string]any:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, t := range x {
			seq.Content = append(seq.Content, c.table(path, t))
		}
		return seq
	case []any:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range x {
			seq.Content = append(seq.Content, c.node(path, item))
		}
		return seq
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil && c.err == nil {
		c.err = fmt.Errorf("converting %s: %w", strings.Join(path, "."), err)
	}
	return n
}

// table orders keys by their position in the file; keys the metadata does
// not list sort after the rest by name.
func (c *tomlConverter) table(path []string, t map[string]any) *yaml.Node {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	position := func(k string) int {
		if i, ok := c.order[strings.Join(append(slices.Clip(path), k), "\x00")]; ok {
			return i
		}
		return len(c.order)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if pa, pb := position(a), position(b); pa != pb {
			return pa - pb
		}
		return strings.Compare(a, b)
	})

	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range keys {
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			c.node(append(slices.Clip(path), k), t[k]))
	}
	return m
}
