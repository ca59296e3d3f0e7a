// Package catalog provides card metadata lookup. The duel core consumes
// it as a black box to validate and annotate action payloads; search and
// ranking live elsewhere.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrCardNotFound is returned when the catalog has no card with the
// requested id.
var ErrCardNotFound = errors.New("card not found")

// Card is the metadata for one card.
type Card struct {
	ID          int64  `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Attack      int    `yaml:"attack" json:"attack"`
	Defense     int    `yaml:"defense" json:"defense"`
	Level       int    `yaml:"level" json:"level"`
	Description string `yaml:"description" json:"description"`
}

// Catalog looks up card metadata by id.
type Catalog interface {
	// Lookup returns the card, or ErrCardNotFound.
	Lookup(cardID int64) (Card, error)
}

// yamlCatalogFile is the top-level YAML structure for catalog files.
type yamlCatalogFile struct {
	Cards []Card `yaml:"cards"`
}

// FileCatalog is an in-memory Catalog loaded from a YAML file.
type FileCatalog struct {
	cards map[int64]Card
}

// LoadFile reads a catalog YAML file into a FileCatalog.
//
// Precondition: path must name a readable YAML file.
// Postcondition: Returns a catalog containing every card in the file, or
// a non-nil error. Duplicate ids are an error.
func LoadFile(path string) (*FileCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var file yamlCatalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog file %s: %w", path, err)
	}

	cards := make(map[int64]Card, len(file.Cards))
	for _, c := range file.Cards {
		if c.ID == 0 {
			return nil, fmt.Errorf("catalog file %s: card %q has no id", path, c.Name)
		}
		if _, dup := cards[c.ID]; dup {
			return nil, fmt.Errorf("catalog file %s: duplicate card id %d", path, c.ID)
		}
		cards[c.ID] = c
	}
	return &FileCatalog{cards: cards}, nil
}

// NewStatic builds a FileCatalog directly from cards, for tests and
// embedded defaults.
func NewStatic(cards ...Card) *FileCatalog {
	m := make(map[int64]Card, len(cards))
	for _, c := range cards {
		m[c.ID] = c
	}
	return &FileCatalog{cards: m}
}

// Lookup returns the card with the given id, or ErrCardNotFound.
func (c *FileCatalog) Lookup(cardID int64) (Card, error) {
	card, ok := c.cards[cardID]
	if !ok {
		return Card{}, ErrCardNotFound
	}
	return card, nil
}

// Len returns the number of cards in the catalog.
func (c *FileCatalog) Len() int { return len(c.cards) }
