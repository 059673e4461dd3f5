package fleet

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const nodesFileName = "unodes.yaml"

type nodesDocument struct {
	Nodes  []Node      `yaml:"nodes"`
	Tokens []JoinToken `yaml:"tokens,omitempty"`
}

func loadNodes(fs afero.Fs, dir string) (nodesDocument, error) {
	path := dir + "/" + nodesFileName
	exists, err := afero.Exists(fs, path)
	if err != nil || !exists {
		return nodesDocument{}, nil
	}
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nodesDocument{}, fmt.Errorf("read %s: %w", path, err)
	}
	var doc nodesDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nodesDocument{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func saveNodes(fs afero.Fs, dir string, doc nodesDocument) error {
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode unodes: %w", err)
	}
	path := dir + "/" + nodesFileName
	if err := afero.WriteFile(fs, path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
