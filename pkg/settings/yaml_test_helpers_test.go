package settings

import (
	"testing"

	"gopkg.in/yaml.v3"
)

// yamlUnmarshalScalar decodes a single YAML scalar document into v, used to
// exercise Value's custom UnmarshalYAML without round-tripping a whole file.
func yamlUnmarshalScalar(t *testing.T, scalar string, v *Value) error {
	t.Helper()
	return yaml.Unmarshal([]byte(scalar), v)
}
