package templates

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultSeed []byte

type seedFile struct {
	Templates []seedTemplate `yaml:"templates"`
}

type seedTemplate struct {
	Type    string `yaml:"type"`
	Version int    `yaml:"version"`
	Content string `yaml:"content"`
}

// LoadSeed parses a YAML seed document into active templates.
func LoadSeed(r io.Reader) ([]Template, error) {
	var doc seedFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("templates: decode seed: %w", err)
	}
	out := make([]Template, 0, len(doc.Templates))
	for i, st := range doc.Templates {
		typ, err := ParseType(st.Type)
		if err != nil {
			return nil, fmt.Errorf("templates: seed entry %d: %w", i, err)
		}
		if st.Content == "" {
			return nil, fmt.Errorf("templates: seed entry %d (%s) has no content", i, typ)
		}
		version := st.Version
		if version == 0 {
			version = 1
		}
		out = append(out, Template{Type: typ, Content: st.Content, Version: version, Active: true})
	}
	return out, nil
}

// DefaultSeed returns the built-in Korean templates.
func DefaultSeed() []Template {
	seed, err := LoadSeed(bytes.NewReader(defaultSeed))
	if err != nil {
		panic(err)
	}
	return seed
}

// LoadSeedFile reads a seed from path, or the built-in seed when path is empty.
func LoadSeedFile(path string) ([]Template, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("templates: open seed: %w", err)
	}
	defer f.Close()
	return LoadSeed(f)
}

// SeedStore is a store that can both resolve and persist templates.
type SeedStore interface {
	Store
	Saver
}

// Seed saves each seed template whose type has no active template yet.
// It returns the number of templates inserted.
func Seed(ctx context.Context, store SeedStore, seed []Template) (int, error) {
	inserted := 0
	for _, t := range seed {
		existing, err := store.FindActive(ctx, t.Type)
		if err != nil {
			return inserted, err
		}
		if existing != nil {
			continue
		}
		t := t
		if err := store.Save(ctx, &t); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
