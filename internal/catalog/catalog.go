package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"vdt/internal/models"

	"gopkg.in/yaml.v3"
)

// UnknownDescription is returned for codes missing from the catalog.
const UnknownDescription = "Unknown error code"

//go:embed catalog.yaml
var defaultCatalog []byte

// Bundle is the on-disk layout of a catalog file.
type Bundle struct {
	Version string  `yaml:"version"`
	Codes   []Entry `yaml:"codes"`
}

// Entry is a single code definition in a catalog file.
type Entry struct {
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
}

// Catalog maps trouble codes to descriptions. It is read-only once built.
type Catalog struct {
	descriptions map[models.TroubleCode]string
}

// New builds a catalog from an in-memory table.
func New(descriptions map[models.TroubleCode]string) *Catalog {
	c := &Catalog{descriptions: make(map[models.TroubleCode]string, len(descriptions))}
	for code, desc := range descriptions {
		c.descriptions[normalize(string(code))] = desc
	}
	return c
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a YAML catalog file. An empty path returns the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog.
func Parse(raw []byte) (*Catalog, error) {
	var b Bundle
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := validate(b); err != nil {
		return nil, err
	}

	descriptions := make(map[models.TroubleCode]string, len(b.Codes))
	for _, e := range b.Codes {
		descriptions[normalize(e.Code)] = strings.TrimSpace(e.Description)
	}
	return &Catalog{descriptions: descriptions}, nil
}

func validate(b Bundle) error {
	if len(b.Codes) == 0 {
		return errors.New("catalog: codes is empty")
	}
	seen := make(map[models.TroubleCode]struct{}, len(b.Codes))
	for i, e := range b.Codes {
		code := normalize(e.Code)
		if code == "" {
			return fmt.Errorf("catalog: entry %d has no code", i)
		}
		if _, ok := seen[code]; ok {
			return fmt.Errorf("catalog: duplicate code: %s", code)
		}
		seen[code] = struct{}{}
		if strings.TrimSpace(e.Description) == "" {
			return fmt.Errorf("catalog: description is required: %s", code)
		}
	}
	return nil
}

func normalize(code string) models.TroubleCode {
	return models.TroubleCode(strings.ToUpper(strings.TrimSpace(code)))
}

// Describe returns the description of code, or UnknownDescription. Lookups
// ignore case and surrounding space.
func (c *Catalog) Describe(code models.TroubleCode) string {
	if desc, ok := c.descriptions[normalize(string(code))]; ok {
		return desc
	}
	return UnknownDescription
}

// DescribeAll pairs every code, in canonical form, with its description,
// keeping order and duplicates.
func (c *Catalog) DescribeAll(codes []models.TroubleCode) []models.DTCEntry {
	entries := make([]models.DTCEntry, 0, len(codes))
	for _, code := range codes {
		entries = append(entries, models.DTCEntry{Code: normalize(string(code)), Description: c.Describe(code)})
	}
	return entries
}

// Len returns the number of known codes.
func (c *Catalog) Len() int {
	return len(c.descriptions)
}
