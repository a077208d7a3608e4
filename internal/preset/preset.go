// Package preset ships the built-in run templates, one per SSL method.
//
// A preset is the YAML equivalent of the original per-experiment launch
// scripts: a base flag template plus per-dataset overrides. Flag order in
// the file is preserved so that assembly stays deterministic.
package preset

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lavoiems/solo-learn/internal/runconfig"
)

//go:embed presets/*.yaml
var presetFiles embed.FS

// Preset is a named run template.
type Preset struct {
	// Method is the trainer method the preset configures.
	Method string

	base     *runconfig.RunConfig
	datasets map[string]*runconfig.RunConfig
}

// Names returns the names of all built-in presets, sorted.
func Names() []string {
	entries, err := presetFiles.ReadDir("presets")
	if err != nil {
		// The embedded directory always exists.
		panic(err)
	}

	var names []string
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Load reads a built-in preset by name.
func Load(name string) (*Preset, error) {
	data, err := presetFiles.ReadFile("presets/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf(
			"unknown preset %q (available: %s)",
			name, strings.Join(Names(), ", "),
		)
	}
	return parse(data)
}

// LoadFile reads a user-supplied preset file.
func LoadFile(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}
	return parse(data)
}

// Datasets returns the dataset names the preset has overrides for, sorted.
func (p *Preset) Datasets() []string {
	var names []string
	for name := range p.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve builds the run configuration for a dataset: the dataset selector,
// then the base template, then the dataset's overrides.
func (p *Preset) Resolve(dataset string) (*runconfig.RunConfig, error) {
	rc := runconfig.New()
	rc.Set("dataset", dataset)
	rc.Merge(p.base)

	if overrides, ok := p.datasets[dataset]; ok {
		rc.Merge(overrides)
	}

	if p.Method != "" {
		rc.Set("method", p.Method)
	}
	return rc, nil
}

type presetFile struct {
	Method   string               `yaml:"method"`
	Base     yaml.Node            `yaml:"base"`
	Datasets map[string]yaml.Node `yaml:"datasets"`
}

func parse(data []byte) (*Preset, error) {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse preset: %w", err)
	}

	base, err := decodeFlags(&file.Base)
	if err != nil {
		return nil, fmt.Errorf("preset base: %w", err)
	}

	datasets := make(map[string]*runconfig.RunConfig, len(file.Datasets))
	for name, node := range file.Datasets {
		node := node
		rc, err := decodeFlags(&node)
		if err != nil {
			return nil, fmt.Errorf("preset dataset %s: %w", name, err)
		}
		datasets[name] = rc
	}

	return &Preset{
		Method:   file.Method,
		base:     base,
		datasets: datasets,
	}, nil
}

// decodeFlags walks a YAML mapping in document order and turns it into a
// flag list. A scalar becomes a single value, a sequence becomes a
// multi-value flag (one value per augmentation view), boolean true becomes
// a presence-only flag, and boolean false removes the flag.
func decodeFlags(node *yaml.Node) (*runconfig.RunConfig, error) {
	rc := runconfig.New()
	if node.Kind == 0 || node.IsZero() {
		return rc, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping of flags, got %s", kindName(node.Kind))
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]

		switch value.Kind {
		case yaml.ScalarNode:
			if value.Tag == "!!bool" {
				var on bool
				if err := value.Decode(&on); err != nil {
					return nil, fmt.Errorf("flag %s: %w", key.Value, err)
				}
				rc.SetBool(key.Value, on)
				continue
			}
			rc.Set(key.Value, value.Value)
		case yaml.SequenceNode:
			values := make([]string, 0, len(value.Content))
			for _, item := range value.Content {
				if item.Kind != yaml.ScalarNode {
					return nil, fmt.Errorf("flag %s: nested values are not allowed", key.Value)
				}
				values = append(values, item.Value)
			}
			rc.Set(key.Value, values...)
		default:
			return nil, fmt.Errorf("flag %s: unsupported value kind %s", key.Value, kindName(value.Kind))
		}
	}
	return rc, nil
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
