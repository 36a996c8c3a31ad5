// Package catalog holds the canonical account concepts that differently worded
// DART line items resolve into.
//
// A Catalog is built once at process start and never modified afterwards, so a
// single instance can be shared by every request.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"iter"
	"os"
	"sync"

	"dart_accounts/pkg/core/normalize"
	"dart_accounts/pkg/models"

	"gopkg.in/yaml.v2"
)

//go:embed catalog.yaml
var defaultYAML []byte

var (
	ErrEmptyCatalog  = errors.New("catalog has no definitions")
	ErrMissingKey    = errors.New("definition key is required")
	ErrDuplicateKey  = errors.New("duplicate definition key")
	ErrNoMatchValues = errors.New("definition needs at least one id or name")
)

// Key identifies a canonical concept, e.g. BS_TOTAL_ASSETS.
type Key string

// Definition is one canonical concept. IDs and Names are already normalized
// and must not be modified by callers.
type Definition struct {
	Key           Key
	StatementType models.StatementType
	Label         string
	IDs           []string
	Names         []string
}

// Entry is the picker view of a definition.
type Entry struct {
	Key   Key    `json:"key"`
	Label string `json:"label"`
}

// Catalog is an ordered, immutable list of definitions.
type Catalog struct {
	defs  []Definition
	index map[Key]int
}

type fileDefinition struct {
	Key           string   `yaml:"key"`
	StatementType string   `yaml:"statement_type"`
	Label         string   `yaml:"label"`
	IDs           []string `yaml:"ids"`
	Names         []string `yaml:"names"`
}

type file struct {
	Definitions []fileDefinition `yaml:"definitions"`
}

var (
	defaultCatalog *Catalog
	defaultOnce    sync.Once
)

// Default returns the built-in catalog. It panics if the embedded file is
// invalid, which can only happen with a broken build.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded definitions are invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// LoadFile reads a catalog from a YAML file with the same layout as the
// embedded one.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML. Registration order is list order.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	defs := make([]Definition, 0, len(f.Definitions))
	for _, fd := range f.Definitions {
		st, err := models.ParseStatementType(fd.StatementType)
		if err != nil {
			return nil, fmt.Errorf("definition %q: %w", fd.Key, err)
		}
		defs = append(defs, Definition{
			Key:           Key(fd.Key),
			StatementType: st,
			Label:         fd.Label,
			IDs:           fd.IDs,
			Names:         fd.Names,
		})
	}
	return New(defs)
}

// New validates the definitions, normalizes their ids and names, and returns
// the catalog. The input slice is not retained.
func New(defs []Definition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		defs:  make([]Definition, 0, len(defs)),
		index: make(map[Key]int, len(defs)),
	}
	for _, d := range defs {
		if d.Key == "" {
			return nil, ErrMissingKey
		}
		if _, dup := c.index[d.Key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, d.Key)
		}

		nd := Definition{
			Key:           d.Key,
			StatementType: d.StatementType,
			Label:         d.Label,
			IDs:           normalizeAll(d.IDs, normalize.ID),
			Names:         normalizeAll(d.Names, normalize.Name),
		}
		if len(nd.IDs) == 0 && len(nd.Names) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoMatchValues, d.Key)
		}
		if nd.Label == "" {
			nd.Label = string(nd.Key)
		}

		c.index[nd.Key] = len(c.defs)
		c.defs = append(c.defs, nd)
	}
	return c, nil
}

// normalizeAll applies fn, dropping empty results and duplicates.
func normalizeAll(values []string, fn func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		n := fn(v)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Definitions yields the definitions of one statement type in registration order.
func (c *Catalog) Definitions(st models.StatementType) iter.Seq[Definition] {
	return func(yield func(Definition) bool) {
		for _, d := range c.defs {
			if d.StatementType != st {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// List returns the picker entries for a statement type.
func (c *Catalog) List(st models.StatementType) []Entry {
	var out []Entry
	for d := range c.Definitions(st) {
		out = append(out, Entry{Key: d.Key, Label: d.Label})
	}
	return out
}

// Lookup returns the definition registered under key.
func (c *Catalog) Lookup(key Key) (Definition, bool) {
	i, ok := c.index[key]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Len is the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}
