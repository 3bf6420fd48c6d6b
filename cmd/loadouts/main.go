// Package main provides a CLI tool for inspecting and deleting stored loadouts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/duskhollow/packrat/internal/config"
	"github.com/duskhollow/packrat/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	list := flag.Bool("list", false, "list all stored loadout UIDs")
	show := flag.String("show", "", "print the loadout stored under the given UID")
	remove := flag.String("delete", "", "delete the loadout stored under the given UID")
	flag.Parse()

	actions := 0
	if *list {
		actions++
	}
	if *show != "" {
		actions++
	}
	if *remove != "" {
		actions++
	}
	if actions != 1 {
		fmt.Fprintln(os.Stderr, "usage: loadouts [-config <path>] -list | -show <uid> | -delete <uid>")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewLoadoutRepository(pool.DB())

	switch {
	case *list:
		uids, err := repo.List(ctx)
		if err != nil {
			log.Fatalf("listing loadouts: %v", err)
		}
		for _, uid := range uids {
			fmt.Fprintln(os.Stdout, uid)
		}
		fmt.Fprintf(os.Stdout, "%d loadouts [%s]\n", len(uids), time.Since(start))

	case *show != "":
		snap, err := repo.Load(ctx, *show)
		if errors.Is(err, postgres.ErrLoadoutNotFound) {
			log.Fatalf("no loadout stored under %q", *show)
		}
		if err != nil {
			log.Fatalf("loading loadout %q: %v", *show, err)
		}
		fmt.Fprintf(os.Stdout, "%s %q grid %dx%d\n", snap.UID, snap.Name, snap.Width, snap.Height)
		for _, it := range snap.Items {
			fmt.Fprintf(os.Stdout, "  item %s %s at (%d,%d) rotation %d\n",
				it.ID, it.ArchetypeID, it.Col, it.Row, it.Rotation)
		}
		for _, st := range snap.Slots {
			fmt.Fprintf(os.Stdout, "  slot %s: %s %s\n", st.Layer, st.ItemID, st.ArchetypeID)
		}

	case *remove != "":
		err := repo.Delete(ctx, *remove)
		if errors.Is(err, postgres.ErrLoadoutNotFound) {
			log.Fatalf("no loadout stored under %q", *remove)
		}
		if err != nil {
			log.Fatalf("deleting loadout %q: %v", *remove, err)
		}
		fmt.Fprintf(os.Stdout, "deleted %s [%s]\n", *remove, time.Since(start))
	}
}
