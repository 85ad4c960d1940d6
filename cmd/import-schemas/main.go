// Package main provides a bulk loader that seeds the schema store from a
// YAML manifest, for bootstrapping a fresh broker deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cory-johannsen/tabletop-net/internal/config"
	"github.com/cory-johannsen/tabletop-net/internal/schemaseed"
	"github.com/cory-johannsen/tabletop-net/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	manifestPath := flag.String("manifest", "", "path to schema manifest YAML")
	flag.Parse()

	if *manifestPath == "" {
		fmt.Fprintln(os.Stderr, "usage: import-schemas -manifest <file> [-config <file>]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	start := time.Now()
	schemas := postgres.NewSchemaRepository(pool.DB())
	keyValues := postgres.NewKeyValueRepository(pool.DB())

	summary, err := schemaseed.Run(ctx, *manifestPath, schemas, keyValues)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("imported %d schema set(s)", summary.SchemaSets)
	if summary.SecretSet {
		fmt.Printf(", network secret set")
	}
	fmt.Printf(" in %s\n", time.Since(start).Round(time.Millisecond))
}
