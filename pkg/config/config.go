// Package config loads assemblage configuration documents from TOML or YAML
// files with an environment variable overlay.
//
// Precedence: environment variables > file values > caller defaults. The
// loaded document is the free-form key/value dictionary threaded to an
// assemblage entry as its configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Document is one loaded configuration dictionary.
type Document map[string]any

// Load reads the file at path into a Document. The format is chosen by
// extension: .toml, .yaml, or .yml.
func Load(path string) (Document, error) {
	doc := make(Document)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, &doc); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: unsupported file extension %q", ext)
	}

	return doc, nil
}

// LoadWithEnv loads the file and layers environment variables on top.
// A variable PREFIX_SOME_KEY overrides the document key "some_key".
// Environment values always win.
func LoadWithEnv(path, prefix string) (Document, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	ApplyEnv(doc, prefix)
	return doc, nil
}

// ApplyEnv overlays environment variables with the given prefix onto the
// document. Keys are lowercased with the prefix stripped.
func ApplyEnv(doc Document, prefix string) {
	if prefix == "" {
		return
	}
	prefix = strings.ToUpper(prefix) + "_"

	for _, env := range os.Environ() {
		name, value, found := strings.Cut(env, "=")
		if !found || !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, prefix))
		if key == "" {
			continue
		}
		doc[key] = value
	}
}

// Merge layers override on top of base into a fresh document. Either side
// may be nil.
func Merge(base, override Document) Document {
	merged := make(Document, len(base)+len(override))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range override {
		merged[key] = value
	}
	return merged
}
