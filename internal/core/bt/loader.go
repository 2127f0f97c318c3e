package bt

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/behaviour/internal/core/observability/log"
)

// Template is the authored, serialisable description of a tree. Nodes refer
// to each other by key; Root names the node placed under the tree's RootNode.
type Template struct {
	Name  string                  `json:"name" yaml:"name"`
	Root  string                  `json:"root" yaml:"root"`
	Nodes map[string]TemplateNode `json:"nodes" yaml:"nodes"`
}

type TemplateNode struct {
	Type     string   `json:"type" yaml:"type"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Child    string   `json:"child,omitempty" yaml:"child,omitempty"`
	Children []string `json:"children,omitempty" yaml:"children,omitempty"`
	Params   Params   `json:"params,omitempty" yaml:"params,omitempty"`
}

// LoadJSON loads a template from a JSON reader.
func LoadJSON(r io.Reader) (*Template, error) {
	var t Template
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode json template: %w", err)
	}
	return &t, nil
}

// LoadYAML loads a template from a YAML reader.
func LoadYAML(r io.Reader) (*Template, error) {
	var t Template
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode yaml template: %w", err)
	}
	return &t, nil
}

// LoadFile picks the decoder from the file extension; anything that is not
// .json is read as YAML.
func LoadFile(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var t *Template
	if strings.EqualFold(filepath.Ext(path), ".json") {
		t, err = LoadJSON(f)
	} else {
		t, err = LoadYAML(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t, nil
}

// Build creates a tree from the template. Every key may be used as a child
// at most once and the result must pass Tree.Validate.
func (tpl *Template) Build(opts ...TreeOption) (*Tree, error) {
	tree := NewTree(tpl.Name, opts...)
	root := tree.EnsureRoot()
	if tpl.Root == "" {
		return tree, nil
	}

	created := make(map[string]*Node, len(tpl.Nodes))
	visiting := make(map[string]bool)

	var build func(key string) (*Node, error)
	build = func(key string) (*Node, error) {
		if visiting[key] {
			return nil, fmt.Errorf("%w: cycle through node %q", ErrStructure, key)
		}
		if _, ok := created[key]; ok {
			return nil, fmt.Errorf("%w: node %q is used more than once", ErrStructure, key)
		}
		entry, ok := tpl.Nodes[key]
		if !ok {
			return nil, fmt.Errorf("unknown node in template: %s", key)
		}

		n, err := tree.CreateNode(entry.Type, entry.Params)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", key, err)
		}
		if entry.Name != "" {
			n.SetName(entry.Name)
		}
		created[key] = n
		visiting[key] = true
		defer delete(visiting, key)

		refs := entry.Children
		if entry.Child != "" {
			refs = append([]string{entry.Child}, refs...)
		}
		for _, ref := range refs {
			ch, err := build(ref)
			if err != nil {
				return nil, err
			}
			if err := tree.AddChild(n, ch); err != nil {
				return nil, fmt.Errorf("node %q: %w", key, err)
			}
		}
		return n, nil
	}

	top, err := build(tpl.Root)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", tpl.Name, err)
	}
	if err := tree.AddChild(root, top); err != nil {
		return nil, fmt.Errorf("template %q: %w", tpl.Name, err)
	}

	if unused := tpl.unused(created); len(unused) > 0 {
		tree.logger.Warn("template has unreferenced nodes",
			log.String("template", tpl.Name),
			log.String("nodes", strings.Join(unused, ",")),
		)
	}
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("template %q: %w", tpl.Name, err)
	}
	return tree, nil
}

func (tpl *Template) unused(created map[string]*Node) []string {
	var out []string
	for key := range tpl.Nodes {
		if _, ok := created[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
