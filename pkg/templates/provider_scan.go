package templates

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// scanProviders walks dir for provider manifests (spec.md §4.1).
func scanProviders(fs afero.Fs, dir string) ([]Template, error) {
	var out []Template

	exists, err := afero.DirExists(fs, dir)
	if err != nil || !exists {
		return out, nil
	}

	files, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read providers dir %s: %w", dir, err)
	}

	for _, f := range files {
		if f.IsDir() || !isComposeFile(f.Name()) {
			continue
		}
		path := dir + "/" + f.Name()
		raw, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("read provider manifest %s: %w", path, err)
		}

		var doc providerManifest
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse provider manifest %s: %w", path, err)
		}

		id := doc.ID
		if id == "" {
			id = strings.TrimSuffix(f.Name(), ".yaml")
			id = strings.TrimSuffix(id, ".yml")
		}

		out = append(out, Template{
			ID:          id,
			Source:      SourceProvider,
			DisplayName: displayOrID(doc.DisplayName, id),
			Provides:    doc.Capability,
			Mode:        Mode(doc.Mode),
			EnvMaps:     doc.EnvMaps,
			Location:    SourceLocation{ProviderFile: path},
			Installed:   true,
		})
	}
	return out, nil
}

func displayOrID(display, id string) string {
	if display != "" {
		return display
	}
	return id
}

// providerManifest is the on-disk shape of a providers/*.yaml file.
type providerManifest struct {
	ID          string   `yaml:"id"`
	DisplayName string   `yaml:"display_name"`
	Capability  string   `yaml:"capability"`
	Mode        string   `yaml:"mode"`
	EnvMaps     []EnvMap `yaml:"env_maps"`
}
