// Package archetype holds the static item definitions the inventory builds
// instances from. An archetype names its grid shape and, when equippable,
// the equipment layers it may occupy.
package archetype

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Category constants for Archetype.Category.
const (
	CategoryClothing   = "clothing"
	CategoryWeapon     = "weapon"
	CategoryTool       = "tool"
	CategoryConsumable = "consumable"
	CategoryMaterial   = "material"
)

// validCategories is the set of valid Archetype categories.
var validCategories = map[string]bool{
	CategoryClothing:   true,
	CategoryWeapon:     true,
	CategoryTool:       true,
	CategoryConsumable: true,
	CategoryMaterial:   true,
}

// Archetype defines the static properties of an inventory item loaded from
// YAML. Layers lists the equipment layers the item may be worn or held in;
// an empty list means the item is never equippable.
type Archetype struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
	ShapeID     string   `yaml:"shape"`
	Layers      []string `yaml:"layers"`
	Armor       int      `yaml:"armor"`
	Warmth      int      `yaml:"warmth"`
	Weight      float64  `yaml:"weight"`
	Value       int      `yaml:"value"`
}

// Validate checks that the Archetype satisfies its invariants.
//
// Precondition: a is non-nil.
// Postcondition: returns nil iff all fields are valid.
func (a *Archetype) Validate() error {
	var errs []error
	if a.ID == "" {
		errs = append(errs, errors.New("ID must not be empty"))
	}
	if a.Name == "" {
		errs = append(errs, errors.New("Name must not be empty"))
	}
	if !validCategories[a.Category] {
		errs = append(errs, fmt.Errorf("Category must be one of clothing, weapon, tool, consumable, material; got %q", a.Category))
	}
	if a.ShapeID == "" {
		errs = append(errs, errors.New("ShapeID must not be empty"))
	}
	seen := make(map[string]bool, len(a.Layers))
	for _, layer := range a.Layers {
		if layer == "" {
			errs = append(errs, errors.New("Layers must not contain empty entries"))
			continue
		}
		if seen[layer] {
			errs = append(errs, fmt.Errorf("Layers must be distinct; layer %q repeats", layer))
		}
		seen[layer] = true
	}
	if a.Armor < 0 {
		errs = append(errs, errors.New("Armor must be >= 0"))
	}
	if a.Warmth < 0 {
		errs = append(errs, errors.New("Warmth must be >= 0"))
	}
	if a.Weight < 0 {
		errs = append(errs, errors.New("Weight must be >= 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("archetype validation failed: %v", errs)
	}
	return nil
}

// Equippable reports whether the archetype may occupy any equipment layer.
func (a *Archetype) Equippable() bool {
	return len(a.Layers) > 0
}

// CompatibleWith reports whether the archetype may occupy the given layer.
//
// Postcondition: returns true iff layer appears in Layers.
func (a *Archetype) CompatibleWith(layer string) bool {
	for _, l := range a.Layers {
		if l == layer {
			return true
		}
	}
	return false
}

// LoadArchetypes reads all *.yaml and *.yml files from dir, parses each as an
// Archetype, validates it, and returns the collected slice.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid Archetypes or the first encountered error.
func LoadArchetypes(dir string) ([]*Archetype, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadArchetypes: cannot read directory %q: %w", dir, err)
	}

	var archetypes []*Archetype
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadArchetypes: cannot read file %q: %w", path, err)
		}
		var a Archetype
		if err := yaml.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("LoadArchetypes: cannot parse file %q: %w", path, err)
		}
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("LoadArchetypes: invalid archetype in %q: %w", path, err)
		}
		archetypes = append(archetypes, &a)
	}
	return archetypes, nil
}
