package instances

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	instancesFileName       = "instances.yaml"
	legacyServiceConfigFile = "service_configs.yaml" // pre-unification name, read-only fallback
	wiringFileName          = "wiring.yaml"
)

type instancesDocument struct {
	Instances []Instance `yaml:"instances"`
}

type wiringDocument struct {
	Defaults map[string]string `yaml:"defaults,omitempty"`
	Wiring   []Wiring          `yaml:"wiring,omitempty"`
}

// loadInstances reads instances.yaml, falling back to the legacy
// service_configs.yaml name if the canonical file is absent (SPEC_FULL.md
// §4.2, resolving the InstanceManager/ServiceConfigManager Open Question).
func loadInstances(fs afero.Fs, dir string) ([]Instance, error) {
	path := dir + "/" + instancesFileName
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		legacy := dir + "/" + legacyServiceConfigFile
		legacyExists, err := afero.Exists(fs, legacy)
		if err != nil {
			return nil, err
		}
		if !legacyExists {
			return nil, nil
		}
		path = legacy
	}

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc instancesDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc.Instances, nil
}

// saveInstances always writes the canonical instances.yaml file name.
func saveInstances(fs afero.Fs, dir string, list []Instance) error {
	doc := instancesDocument{Instances: list}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode instances: %w", err)
	}
	path := dir + "/" + instancesFileName
	if err := afero.WriteFile(fs, path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func loadWiring(fs afero.Fs, dir string) (wiringDocument, error) {
	path := dir + "/" + wiringFileName
	exists, err := afero.Exists(fs, path)
	if err != nil || !exists {
		return wiringDocument{Defaults: map[string]string{}}, nil
	}
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return wiringDocument{}, fmt.Errorf("read %s: %w", path, err)
	}
	var doc wiringDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return wiringDocument{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Defaults == nil {
		doc.Defaults = map[string]string{}
	}
	return doc, nil
}

func saveWiring(fs afero.Fs, dir string, doc wiringDocument) error {
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode wiring: %w", err)
	}
	path := dir + "/" + wiringFileName
	if err := afero.WriteFile(fs, path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
