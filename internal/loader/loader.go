// Package loader reads workflow and intent definitions from YAML files.
//
// The file format is a single document with optional top-level `workflows`
// and `intents` lists. Decoding is two-phase: yaml.v3 produces generic
// values, mapstructure maps them onto the domain structs so that durations
// written as "5m" and loosely typed scalars decode cleanly.
package loader

import (
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/awoulbe/chatflow/pkg/domain"
)

// Catalog is the decoded content of one definition file.
type Catalog struct {
	Workflows []*domain.WorkflowDefinition
	Intents   []domain.IntentDefinition
}

type rawCatalog struct {
	Workflows []map[string]any `yaml:"workflows"`
	Intents   []map[string]any `yaml:"intents"`
}

// LoadFile reads a YAML definition file from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	cat, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cat, nil
}

// Load decodes a YAML definition document from the reader.
func Load(r io.Reader) (*Catalog, error) {
	var raw rawCatalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return &Catalog{}, nil
		}
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	cat := &Catalog{}
	for i, doc := range raw.Workflows {
		def := &domain.WorkflowDefinition{}
		if err := decode(doc, def); err != nil {
			return nil, fmt.Errorf("workflow #%d: %w", i, err)
		}
		if def.ID == "" {
			return nil, fmt.Errorf("workflow #%d: missing id", i)
		}
		cat.Workflows = append(cat.Workflows, def)
	}
	for i, doc := range raw.Intents {
		var def domain.IntentDefinition
		if err := decode(doc, &def); err != nil {
			return nil, fmt.Errorf("intent #%d: %w", i, err)
		}
		if def.Name == "" {
			return nil, fmt.Errorf("intent #%d: missing name", i)
		}
		cat.Intents = append(cat.Intents, def)
	}
	return cat, nil
}

func decode(src map[string]any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		Result:           dst,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(src); err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	return nil
}
