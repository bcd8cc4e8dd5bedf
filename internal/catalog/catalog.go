// Package catalog holds the static field definitions for each diagnostic test
// form. The catalogue is loaded once at start-up and never mutated.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed fields.yaml
var builtin embed.FS

// FieldSpec describes one numeric input of a test form.
type FieldSpec struct {
	Key     string  `yaml:"key" json:"key"`
	Label   string  `yaml:"label" json:"label"`
	Feature string  `yaml:"feature" json:"feature"`
	Min     float64 `yaml:"min" json:"min"`
	Max     float64 `yaml:"max" json:"max"`
}

// Placeholder is the hint shown in an empty input, e.g. "2.5 - 4.5".
func (f FieldSpec) Placeholder() string {
	return FormatBound(f.Min) + " - " + FormatBound(f.Max)
}

// Guidance lists the advice lines attached to a result of each level.
type Guidance struct {
	High []string `yaml:"high" json:"high"`
	Low  []string `yaml:"low" json:"low"`
}

// Test is one diagnostic form and the remote model endpoint that scores it.
type Test struct {
	ID       string      `yaml:"id" json:"id"`
	Name     string      `yaml:"name" json:"name"`
	Endpoint string      `yaml:"endpoint" json:"endpoint"`
	Fallback bool        `yaml:"fallback" json:"fallback"`
	Guidance Guidance    `yaml:"guidance" json:"guidance"`
	Fields   []FieldSpec `yaml:"fields" json:"fields"`
}

// Field returns the field with key.
func (t *Test) Field(key string) (FieldSpec, bool) {
	for _, f := range t.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Catalog is the set of tests indexed by id.
type Catalog struct {
	order []string
	tests map[string]*Test
}

type document struct {
	Tests []*Test `yaml:"tests"`
}

// Load parses and validates the named YAML file from fsys.
func Load(fsys fs.FS, name string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", name, err)
	}
	return Parse(data)
}

// Parse builds a catalogue from raw YAML.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}

	c := &Catalog{tests: make(map[string]*Test, len(doc.Tests))}
	for _, t := range doc.Tests {
		if err := validateTest(t); err != nil {
			return nil, err
		}
		if _, exists := c.tests[t.ID]; exists {
			return nil, fmt.Errorf("catalog: duplicate test %q", t.ID)
		}
		c.tests[t.ID] = t
		c.order = append(c.order, t.ID)
	}
	return c, nil
}

func validateTest(t *Test) error {
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		return fmt.Errorf("catalog: test with empty id")
	}
	if len(t.Fields) == 0 {
		return fmt.Errorf("catalog: test %q has no fields", t.ID)
	}

	seen := make(map[string]bool, len(t.Fields))
	for i, f := range t.Fields {
		if f.Key == "" {
			return fmt.Errorf("catalog: test %q field %d has empty key", t.ID, i)
		}
		if seen[f.Key] {
			return fmt.Errorf("catalog: test %q duplicate field %q", t.ID, f.Key)
		}
		seen[f.Key] = true
		if f.Min > f.Max {
			return fmt.Errorf("catalog: test %q field %q has min %s > max %s",
				t.ID, f.Key, FormatBound(f.Min), FormatBound(f.Max))
		}
		if f.Feature == "" {
			t.Fields[i].Feature = f.Key
		}
		if f.Label == "" {
			t.Fields[i].Label = f.Key
		}
	}
	return nil
}

// Test returns the test registered under id.
func (c *Catalog) Test(id string) (*Test, bool) {
	t, ok := c.tests[id]
	return t, ok
}

// Tests returns every test in declaration order.
func (c *Catalog) Tests() []*Test {
	out := make([]*Test, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.tests[id])
	}
	return out
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the built-in catalogue. It panics if the embedded file is
// invalid, which is a build defect.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(builtin, "fields.yaml")
		if err != nil {
			panic(err)
		}
		defaultCat = c
	})
	return defaultCat
}

// FormatBound renders a bound the way it appears in user messages: the
// shortest decimal representation, so 2.0 prints as "2".
func FormatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
