package templates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// scanCompose walks dir for compose files and turns every declared service
// into a candidate template, per spec.md §4.1.
func scanCompose(fs afero.Fs, dir string) ([]Template, error) {
	var out []Template

	exists, err := afero.DirExists(fs, dir)
	if err != nil || !exists {
		return out, nil
	}

	files, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read compose dir %s: %w", dir, err)
	}

	for _, f := range files {
		if f.IsDir() || !isComposeFile(f.Name()) {
			continue
		}
		path := dir + "/" + f.Name()
		raw, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("read compose file %s: %w", path, err)
		}

		var doc composeDocument
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse compose file %s: %w", path, err)
		}

		names := make([]string, 0, len(doc.Services))
		for name := range doc.Services {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			svc := doc.Services[name]
			tmpl := Template{
				ID:          fmt.Sprintf("%s:%s", baseName(f.Name()), name),
				Source:      SourceCompose,
				DisplayName: name,
				Image:       svc.Image,
				Ports:       svc.Ports,
				Volumes:     svc.Volumes,
				Requires:    svc.Requires(),
				Location: SourceLocation{
					ComposeFile:    path,
					ComposeService: name,
				},
				Installed: true,
			}
			out = append(out, tmpl)
		}
	}
	return out, nil
}

func isComposeFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func baseName(name string) string {
	name = strings.TrimSuffix(name, ".yaml")
	name = strings.TrimSuffix(name, ".yml")
	return name
}

// composeDocument is the minimal subset of a compose file this registry
// reads: service image/ports/volumes plus an x-ushadow requires hint. The
// full substitution/override semantics are deliberately not reimplemented
// here (spec.md §4.4.1 delegates that to the compose CLI at deploy time);
// this is discovery only.
type composeDocument struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Image       string            `yaml:"image"`
	Ports       []string          `yaml:"ports"`
	Volumes     []string          `yaml:"volumes"`
	Environment map[string]string `yaml:"environment"`
	XUshadow    struct {
		Requires []string `yaml:"requires"`
	} `yaml:"x-ushadow"`
}

// Requires returns the x-ushadow.requires hint, the discovery-time
// approximation of a template's capability requirements.
func (s composeService) Requires() []string {
	return s.XUshadow.Requires
}
