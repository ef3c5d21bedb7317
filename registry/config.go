package registry

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed chatbots.yaml
var defaultConfig []byte

// fileConfig is the on-disk shape of a registry document.
type fileConfig struct {
	DefaultChatbot string         `yaml:"default_chatbot"`
	Chatbots       []Descriptor   `yaml:"chatbots"`
	WatchPage      WatchSelectors `yaml:"watch_page"`
}

// Load parses a registry document from raw YAML.
func Load(data []byte) (*Registry, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("registry: parse: %w", err)
	}

	r := &Registry{
		descriptors: fc.Chatbots,
		byKey:       make(map[string]Descriptor, len(fc.Chatbots)),
		defaultKey:  fc.DefaultChatbot,
		watch:       fc.WatchPage,
	}
	for i := range r.descriptors {
		if r.descriptors[i].FillStrategy == "" {
			r.descriptors[i].FillStrategy = FillStandard
		}
		r.byKey[r.descriptors[i].Key] = r.descriptors[i]
	}
	if r.defaultKey == "" && len(r.descriptors) > 0 {
		r.defaultKey = r.descriptors[0].Key
	}

	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadFile reads a registry document from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return Load(data)
}

// LoadDefault loads the embedded descriptor document.
func LoadDefault() (*Registry, error) {
	return Load(defaultConfig)
}
