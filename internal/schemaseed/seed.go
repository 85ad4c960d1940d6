// Package schemaseed loads schema sets described by a YAML manifest into
// the schema store. It backs the import-schemas command.
package schemaseed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/tabletop-net/internal/validation"
)

// Manifest describes the schema sets to import and, optionally, an initial
// network secret. Schema paths are resolved relative to the manifest file.
type Manifest struct {
	Schemas []Entry `yaml:"schemas"`
	// Secret, when non-empty, is stored as the handshake network secret.
	Secret string `yaml:"secret"`
}

// Entry names one game type and its three schema documents.
type Entry struct {
	GameType string `yaml:"game_type"`
	Init     string `yaml:"init"`
	Action   string `yaml:"action"`
	End      string `yaml:"end"`
}

// SchemaStore is the subset of the schema repository the seeder needs.
type SchemaStore interface {
	Save(ctx context.Context, gameType string, set validation.SchemaSet) error
}

// SecretStore is the subset of the key-value repository the seeder needs.
type SecretStore interface {
	SetNetworkSecret(ctx context.Context, secret string) error
}

// Summary reports what an import accomplished.
type Summary struct {
	SchemaSets int
	SecretSet  bool
}

// Run parses the manifest, compiles every schema set, and saves them.
// Nothing is written if any set fails to load or compile.
//
// Precondition: manifestPath must point to a readable YAML manifest.
// Postcondition: Returns a Summary of the import, or a non-nil error.
func Run(ctx context.Context, manifestPath string, schemas SchemaStore, secrets SecretStore) (Summary, error) {
	manifest, err := load(manifestPath)
	if err != nil {
		return Summary{}, err
	}
	if len(manifest.Schemas) == 0 && manifest.Secret == "" {
		return Summary{}, fmt.Errorf("manifest %s names no schemas and no secret", manifestPath)
	}

	baseDir := filepath.Dir(manifestPath)

	sets := make(map[string]validation.SchemaSet, len(manifest.Schemas))
	for _, entry := range manifest.Schemas {
		if entry.GameType == "" {
			return Summary{}, fmt.Errorf("manifest entry with empty game_type")
		}
		set, err := readSet(baseDir, entry)
		if err != nil {
			return Summary{}, fmt.Errorf("game type %q: %w", entry.GameType, err)
		}
		if err := set.Compile(); err != nil {
			return Summary{}, fmt.Errorf("game type %q: %w", entry.GameType, err)
		}
		sets[entry.GameType] = set
	}

	var summary Summary
	for gameType, set := range sets {
		if err := schemas.Save(ctx, gameType, set); err != nil {
			return summary, fmt.Errorf("saving game type %q: %w", gameType, err)
		}
		summary.SchemaSets++
	}

	if manifest.Secret != "" {
		if err := secrets.SetNetworkSecret(ctx, manifest.Secret); err != nil {
			return summary, fmt.Errorf("setting network secret: %w", err)
		}
		summary.SecretSet = true
	}

	return summary, nil
}

func load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	return manifest, nil
}

func readSet(baseDir string, entry Entry) (validation.SchemaSet, error) {
	var set validation.SchemaSet
	for _, doc := range []struct {
		phase string
		path  string
		dest  *string
	}{
		{"init", entry.Init, &set.Init},
		{"action", entry.Action, &set.Action},
		{"end", entry.End, &set.End},
	} {
		if doc.path == "" {
			return validation.SchemaSet{}, fmt.Errorf("missing %s schema path", doc.phase)
		}
		data, err := os.ReadFile(filepath.Join(baseDir, doc.path))
		if err != nil {
			return validation.SchemaSet{}, fmt.Errorf("reading %s schema: %w", doc.phase, err)
		}
		*doc.dest = string(data)
	}
	return set, nil
}
