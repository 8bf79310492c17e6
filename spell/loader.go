package spell

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hrygo/orchestra/internal/version"
)

// File is the on-disk shape of a spell table override.
type File struct {
	// MinVersion is the oldest orchestra release able to load this table.
	MinVersion string  `yaml:"min_version,omitempty"`
	Spells     []Spell `yaml:"spells"`
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal spell table")
	}
	ok, err := version.Satisfies(f.MinVersion)
	if err != nil {
		return nil, errors.Wrap(err, "invalid min_version")
	}
	if !ok {
		return nil, errors.Errorf("spell table requires orchestra %s or newer, running %s", f.MinVersion, version.Version)
	}
	if len(f.Spells) == 0 {
		return nil, errors.New("spell table is empty")
	}
	c, err := NewCatalog(f.Spells)
	if err != nil {
		return nil, errors.Wrap(err, "invalid spell table")
	}
	return c, nil
}

// LoadFile reads a YAML spell table. An empty path yields the built-in table.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read spell table %s", path)
	}
	return Parse(data)
}
