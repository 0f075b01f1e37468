// Package messages resolves symbolic message keys into localized text.
package messages

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var defaultCatalog []byte

// Catalog maps locale to key to text.
type Catalog struct {
	defaultLocale string
	texts         map[string]map[string]string
}

// Load parses the built-in catalog.
func Load(defaultLocale string) (*Catalog, error) {
	return Parse(defaultCatalog, defaultLocale)
}

func Parse(data []byte, defaultLocale string) (*Catalog, error) {
	texts := map[string]map[string]string{}
	if err := yaml.Unmarshal(data, &texts); err != nil {
		return nil, fmt.Errorf("failed to parse message catalog: %w", err)
	}
	if _, ok := texts[defaultLocale]; !ok {
		return nil, fmt.Errorf("message catalog has no %q locale", defaultLocale)
	}
	return &Catalog{defaultLocale: defaultLocale, texts: texts}, nil
}

// Message returns the text for key in locale, then in the default locale,
// and finally the key itself.
func (c *Catalog) Message(locale, key string) string {
	if text, ok := c.texts[locale][key]; ok {
		return text
	}
	if text, ok := c.texts[c.defaultLocale][key]; ok {
		return text
	}
	return key
}

// Locales lists the locales present in the catalog.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.texts))
	for l := range c.texts {
		out = append(out, l)
	}
	return out
}
