// Package posttype holds the catalog of post types the prompt generator
// understands, with the form schema and instruction text for each.
package posttype

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"studio/internal/domain"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Property is one descriptive key/value of a post type.
type Property struct {
	Key   string
	Value string
}

// Properties keeps the order they were written in.
type Properties []Property

func (p *Properties) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("properties: expected a mapping at line %d", node.Line)
	}
	out := make(Properties, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out = append(out, Property{Key: node.Content[i].Value, Value: node.Content[i+1].Value})
	}
	*p = out
	return nil
}

// PostType is one catalog entry.
type PostType struct {
	Name       string     `yaml:"name"`
	Prompt     string     `yaml:"prompt"`
	Properties Properties `yaml:"properties"`
	Fields     []string   `yaml:"fields"`
	Guidelines string     `yaml:"guidelines"`
}

// Catalog is an immutable set of post types.
type Catalog struct {
	PostTypes     []PostType        `yaml:"post_types"`
	GeneralFields []string          `yaml:"general_fields"`
	FieldPrompts  map[string]string `yaml:"field_prompts"`
	Extension     string            `yaml:"extension"`

	index map[string]int
}

// Parse decodes and checks a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(c.PostTypes) == 0 {
		return nil, errors.New("catalog has no post types")
	}
	c.index = make(map[string]int, len(c.PostTypes))
	for i, pt := range c.PostTypes {
		name := normalize(pt.Name)
		if name == "" {
			return nil, fmt.Errorf("post type %d has no name", i)
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("duplicate post type %q", name)
		}
		c.PostTypes[i].Name = name
		c.index[name] = i
	}
	return &c, nil
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("posttype: embedded catalog: %v", err))
	}
	return c
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Names returns the post types in file order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.PostTypes))
	for i, pt := range c.PostTypes {
		names[i] = pt.Name
	}
	return names
}

// Lookup finds a post type by name, ignoring case and surrounding space.
func (c *Catalog) Lookup(name string) (PostType, bool) {
	i, ok := c.index[normalize(name)]
	if !ok {
		return PostType{}, false
	}
	return c.PostTypes[i], true
}

// Schema describes the form for a post type. The general fields are
// always optional.
func (c *Catalog) Schema(name string) (*domain.FormSchema, error) {
	pt, ok := c.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPostType, name)
	}
	required := append([]string{}, pt.Fields...)
	optional := append([]string{}, c.GeneralFields...)
	example := make(map[string]string, len(required)+len(optional))
	for _, f := range append(required, optional...) {
		example[f] = "example_" + f
	}
	return &domain.FormSchema{
		PostType:       pt.Name,
		RequiredFields: required,
		OptionalFields: optional,
		Example:        example,
	}, nil
}

// BuildInstruction assembles the text sent to the prompt generator from a
// submitted form. Parts are the post type prompt, its properties, the
// required field prompts, the general field prompts, the guidelines and
// the shared extension.
func (c *Catalog) BuildInstruction(req map[string]string) (string, error) {
	pt, ok := c.Lookup(req["post_type"])
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownPostType, req["post_type"])
	}
	parts := []string{}
	if p := strings.TrimSpace(pt.Prompt); p != "" {
		parts = append(parts, p)
	}
	props := make([]string, 0, len(pt.Properties))
	for _, prop := range pt.Properties {
		if strings.TrimSpace(prop.Value) != "" {
			props = append(props, prop.Key+": "+prop.Value)
		}
	}
	if len(props) > 0 {
		parts = append(parts, strings.Join(props, ", ")+".")
	}
	for _, field := range pt.Fields {
		parts = c.appendField(parts, field, req[field])
	}
	for _, field := range c.GeneralFields {
		parts = c.appendField(parts, field, req[field])
	}
	if g := strings.TrimSpace(pt.Guidelines); g != "" {
		parts = append(parts, g)
	}
	if ext := strings.TrimSpace(c.Extension); ext != "" {
		parts = append(parts, ext)
	}
	return strings.Join(parts, " "), nil
}

func (c *Catalog) appendField(parts []string, field, value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return parts
	}
	tmpl, ok := c.FieldPrompts[field]
	if !ok {
		return append(parts, field+": "+value+".")
	}
	return append(parts, strings.ReplaceAll(tmpl, "%s", value))
}
