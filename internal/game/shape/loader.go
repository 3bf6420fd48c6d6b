package shape

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// yamlShapeFile mirrors the on-disk YAML structure of a shape definition.
// Cells are [dx, dy] pairs relative to the anchor.
type yamlShapeFile struct {
	ID        string  `yaml:"id"`
	Rotations int     `yaml:"rotations"`
	Cells     [][]int `yaml:"cells"`
}

// toDefinition converts the raw YAML form into a validated Definition.
func (y *yamlShapeFile) toDefinition() (*Definition, error) {
	cells := make([]Offset, 0, len(y.Cells))
	for i, pair := range y.Cells {
		if len(pair) != 2 {
			return nil, fmt.Errorf("shape %q: cell %d must be a [dx, dy] pair; got %v", y.ID, i, pair)
		}
		cells = append(cells, Offset{DX: pair[0], DY: pair[1]})
	}
	return NewDefinition(y.ID, y.Rotations, cells)
}

// LoadShapes reads all *.yaml and *.yml files from dir, parses each as a
// shape definition, validates it, and returns the collected slice.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid Definitions or the first encountered error.
func LoadShapes(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadShapes: cannot read directory %q: %w", dir, err)
	}

	var defs []*Definition
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadShapes: cannot read file %q: %w", path, err)
		}
		var y yamlShapeFile
		if err := yaml.Unmarshal(data, &y); err != nil {
			return nil, fmt.Errorf("LoadShapes: cannot parse file %q: %w", path, err)
		}
		d, err := y.toDefinition()
		if err != nil {
			return nil, fmt.Errorf("LoadShapes: invalid shape in %q: %w", path, err)
		}
		defs = append(defs, d)
	}
	return defs, nil
}

// LoadRegistry loads every shape under dir into a fresh Registry.
//
// Postcondition: the returned registry holds one Definition per file; duplicate
// IDs across files are an error.
func LoadRegistry(dir string) (*Registry, error) {
	defs, err := LoadShapes(dir)
	if err != nil {
		return nil, err
	}
	r := NewRegistry()
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}
