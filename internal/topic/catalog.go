// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package topic

import (
	_ "embed"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-journey/pkg/types"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is the fixed list of suggested topics and the goal options of the
// questionnaire.
type Catalog struct {
	Goals  []string      `yaml:"goals"`
	Topics []types.Topic `yaml:"topics"`
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing topic catalog: %w", err)
	}
	seen := map[string]bool{}
	for i, t := range c.Topics {
		if t.ID == "" {
			c.Topics[i].ID = slug(t.Title)
		}
		if seen[c.Topics[i].ID] {
			return nil, fmt.Errorf("duplicate topic id %q", c.Topics[i].ID)
		}
		seen[c.Topics[i].ID] = true
	}
	return &c, nil
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Find returns the topic with the given id.
func (c *Catalog) Find(id string) (types.Topic, bool) {
	for _, t := range c.Topics {
		if t.ID == id {
			return t, true
		}
	}
	return types.Topic{}, false
}

// Categories lists the distinct categories in catalog order.
func (c *Catalog) Categories() []string {
	var out []string
	for _, t := range c.Topics {
		if !slices.Contains(out, t.Category) {
			out = append(out, t.Category)
		}
	}
	return out
}

// Search returns topics whose title, description or keywords contain query
// (case-insensitive), optionally restricted to category, most relevant first.
func (c *Catalog) Search(query, category string) []types.Topic {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []types.Topic{}
	for _, t := range c.Topics {
		if category != "" && !strings.EqualFold(t.Category, category) {
			continue
		}
		if q != "" && !matches(t, q) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})
	return out
}

func matches(t types.Topic, q string) bool {
	if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q) {
		return true
	}
	for _, k := range t.Keywords {
		if strings.Contains(strings.ToLower(k), q) {
			return true
		}
	}
	return false
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
