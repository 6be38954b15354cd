package scene

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is the on-disk form of an authored sequence.
type Preset struct {
	Version string `yaml:"version"`
	Scenes  List   `yaml:"scenes"`
}

// WritePreset saves a scene list to a YAML file.
func WritePreset(l List, path string) error {
	data, err := yaml.Marshal(&Preset{Version: "1.0", Scenes: l})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadPreset loads and validates a scene list from a YAML file.
func ReadPreset(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if err := p.Scenes.Validate(); err != nil {
		return nil, fmt.Errorf("preset %s: %w", path, err)
	}
	return p.Scenes, nil
}
