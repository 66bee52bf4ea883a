package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Competitor is one entry of a competitor list file.
type Competitor struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// UnmarshalYAML accepts either a bare URL string or a {name, url} mapping.
func (c *Competitor) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.URL = strings.TrimSpace(node.Value)
		return nil
	}
	type plain Competitor
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Competitor(p)
	c.URL = strings.TrimSpace(c.URL)
	return nil
}

type competitorFile struct {
	Competitors []Competitor `yaml:"competitors"`
}

// LoadCompetitors reads a competitor list. The file is either a top-level
// sequence or a mapping with a "competitors" key. Entries without a URL are
// rejected; duplicates are dropped keeping the first.
func LoadCompetitors(path string) ([]Competitor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read competitors %s", path)
	}
	return ParseCompetitors(data)
}

// ParseCompetitors parses the LoadCompetitors file format.
func ParseCompetitors(data []byte) ([]Competitor, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, eris.Wrap(err, "config: parse competitors")
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	var list []Competitor
	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&list); err != nil {
			return nil, eris.Wrap(err, "config: decode competitors")
		}
	case yaml.MappingNode:
		var f competitorFile
		if err := doc.Decode(&f); err != nil {
			return nil, eris.Wrap(err, "config: decode competitors")
		}
		list = f.Competitors
	default:
		return nil, eris.New("config: competitors file must be a list or have a competitors key")
	}

	seen := make(map[string]bool, len(list))
	out := list[:0]
	for i, c := range list {
		if c.URL == "" {
			return nil, eris.Errorf("config: competitor %d has no url", i+1)
		}
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		out = append(out, c)
	}
	return out, nil
}

// URLs returns the URL of each competitor in order.
func URLs(list []Competitor) []string {
	urls := make([]string, len(list))
	for i, c := range list {
		urls[i] = c.URL
	}
	return urls
}
