// Package main provides a CLI tool that validates content directories
// without booting the server.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/duskhollow/packrat/internal/game/archetype"
	"github.com/duskhollow/packrat/internal/game/equipment"
	"github.com/duskhollow/packrat/internal/game/shape"
)

func main() {
	shapesDir := flag.String("shapes", "content/shapes", "path to shape definition directory")
	archetypesDir := flag.String("archetypes", "content/archetypes", "path to archetype definition directory")
	verbose := flag.Bool("v", false, "print every definition, not just the summary")
	flag.Parse()

	start := time.Now()

	shapes, err := shape.LoadRegistry(*shapesDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	catalog, err := archetype.LoadCatalog(*archetypesDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	knownLayers := make(map[string]bool)
	for _, layer := range equipment.DefaultLayers() {
		knownLayers[string(layer)] = true
	}

	archetypes := catalog.All()
	sort.Slice(archetypes, func(i, j int) bool { return archetypes[i].ID < archetypes[j].ID })

	problems := 0
	for _, a := range archetypes {
		if _, ok := shapes.Definition(a.ShapeID); !ok {
			fmt.Fprintf(os.Stderr, "archetype %s references unknown shape %q\n", a.ID, a.ShapeID)
			problems++
		}
		for _, layer := range a.Layers {
			if !knownLayers[layer] {
				fmt.Fprintf(os.Stderr, "archetype %s references unknown layer %q\n", a.ID, layer)
				problems++
			}
		}
		if *verbose {
			fmt.Printf("archetype %s (%s) shape=%s layers=%v\n", a.ID, a.Category, a.ShapeID, a.Layers)
		}
	}

	if *verbose {
		defs := shapes.All()
		sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
		for _, d := range defs {
			fmt.Printf("shape %s rotations=%d cells=%d\n", d.ID, d.Rotations, d.Size())
		}
	}

	if problems > 0 {
		fmt.Fprintf(os.Stderr, "%d problems found\n", problems)
		os.Exit(1)
	}
	fmt.Printf("%d shapes, %d archetypes ok in %s\n",
		len(shapes.All()), len(archetypes), time.Since(start).Round(time.Millisecond))
}
