// Package jobspec reads and writes YAML render-job descriptions — the file
// format the CLI and surrounding services hand to the job runner.
package jobspec

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Spec is a complete render job on disk.
type Spec struct {
	Version  string  `yaml:"version"`
	Document string  `yaml:"document"` // path or URL of the animation document
	Output   string  `yaml:"output"`
	Scenes   []Scene `yaml:"scenes"`
	// Photos and Texts are keyed by slot asset id.
	Photos map[string]string `yaml:"photos,omitempty"`
	Texts  map[string]string `yaml:"texts,omitempty"`
	Audio  string            `yaml:"audio,omitempty"`
	Card   *Card             `yaml:"card,omitempty"`
	// Keywords override the scene-name matching locale list.
	Keywords []string `yaml:"keywords,omitempty"`
}

// Scene names one scene and an optional target resolution.
type Scene struct {
	ID     string `yaml:"id"`
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
}

// Card mirrors the optional trailing card.
type Card struct {
	Title   string  `yaml:"title,omitempty"`
	URL     string  `yaml:"url,omitempty"`
	Seconds float64 `yaml:"seconds,omitempty"`
}

// Read loads and validates a spec file.
func Read(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if spec.Document == "" {
		return nil, fmt.Errorf("jobspec %s: document is required", path)
	}
	for i, sc := range spec.Scenes {
		if sc.ID == "" {
			return nil, fmt.Errorf("jobspec %s: scene %d has no id", path, i)
		}
	}
	return &spec, nil
}

// Write stores a spec as YAML.
func Write(spec *Spec, path string) error {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
