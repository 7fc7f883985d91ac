// Package i18n resolves static UI strings against embedded translation
// catalogs. Lookup is by stable uppercase key; data-derived labels never pass
// through here.
package i18n

import (
	"embed"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed catalog/*.yaml
var catalogFS embed.FS

// DefaultLanguage is used when the configured language has no catalog.
const DefaultLanguage = "en"

type Translator interface {
	Translate(key string) string
	Language() string
}

type catalogTranslator struct {
	language string
	entries  map[string]string
}

// NewTranslator loads the embedded catalog for the given language.
func NewTranslator(language string) Translator {
	entries, err := loadCatalog(language)
	if err != nil {
		log.Warnf("No translation catalog for %q, falling back to %s: %v", language, DefaultLanguage, err)
		language = DefaultLanguage
		entries, err = loadCatalog(language)
		if err != nil {
			log.Errorf("Failed to load default translation catalog: %v", err)
			entries = map[string]string{}
		}
	}
	return &catalogTranslator{language: language, entries: entries}
}

func loadCatalog(language string) (map[string]string, error) {
	raw, err := catalogFS.ReadFile(fmt.Sprintf("catalog/%s.yaml", language))
	if err != nil {
		return nil, err
	}
	var entries map[string]string
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", language, err)
	}
	return entries, nil
}

// Translate returns the UI string for key, or the key itself when the
// catalog has no entry.
func (t *catalogTranslator) Translate(key string) string {
	if s, ok := t.entries[key]; ok {
		return s
	}
	return key
}

func (t *catalogTranslator) Language() string {
	return t.language
}
