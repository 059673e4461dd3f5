// Package templates discovers and caches service templates from compose
// files and provider manifests (spec.md §4.1).
package templates

// Source identifies where a template was discovered.
type Source string

const (
	SourceCompose  Source = "compose"
	SourceProvider Source = "provider"
)

// Mode tags a template for the capability resolver's ambient-singleton
// selection (spec.md §4.3 step 1d): cloud-hosted vs locally-run providers.
type Mode string

const (
	ModeCloud Mode = "cloud"
	ModeLocal Mode = "local"
)

// FieldType enumerates the config schema's field types.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldSecret  FieldType = "secret"
	FieldInteger FieldType = "integer"
	FieldBoolean FieldType = "boolean"
	FieldURL     FieldType = "url"
	FieldEnum    FieldType = "enum"
	FieldNumber  FieldType = "number"
)

// ConfigField describes one entry in a template's config schema.
type ConfigField struct {
	Key           string    `yaml:"key"`
	Type          FieldType `yaml:"type"`
	Label         string    `yaml:"label,omitempty"`
	Help          string    `yaml:"help,omitempty"`
	Default       string    `yaml:"default,omitempty"`
	SettingsPath  string    `yaml:"settings_path,omitempty"`
	Validator     string    `yaml:"validator,omitempty"`
	EnumOptions   []string  `yaml:"enum_options,omitempty"`
	Optional      bool      `yaml:"optional,omitempty"`
	GenerateIfMissing string `yaml:"generate_if_missing,omitempty"` // generator name, empty = off
}

// EnvMap binds a provider's canonical logical key to an environment
// variable, a settings-store fallback path, and an optional default
// (spec.md §4.1, provider manifests).
type EnvMap struct {
	LogicalKey   string `yaml:"key"`
	EnvVar       string `yaml:"env_var,omitempty"` // defaults to strings.ToUpper(LogicalKey)
	SettingsPath string `yaml:"settings_path,omitempty"`
	Default      string `yaml:"default,omitempty"`
	Required     bool   `yaml:"required,omitempty"`
}

// SourceLocation records where a template's definition lives on disk.
type SourceLocation struct {
	ComposeFile    string `yaml:"compose_file,omitempty"`
	ComposeService string `yaml:"compose_service,omitempty"`
	ProviderFile   string `yaml:"provider_file,omitempty"`
}

// Template is the read-only shape of something that can be instantiated.
type Template struct {
	ID          string `yaml:"id"`
	Source      Source `yaml:"source"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description,omitempty"`

	Requires []string `yaml:"requires,omitempty"`
	Optional []string `yaml:"optional,omitempty"`
	Provides string   `yaml:"provides,omitempty"` // at most one

	ConfigSchema []ConfigField `yaml:"config_schema,omitempty"`

	// Provider-only fields.
	Capability string   `yaml:"capability,omitempty"`
	EnvMaps    []EnvMap `yaml:"env_maps,omitempty"`

	// Consumer-only field: renames a wired provider's exported env vars to
	// the names this service's image expects (spec.md §4.3 step 3).
	EnvMapping map[string]string `yaml:"env_mapping,omitempty"`

	Location SourceLocation `yaml:"location"`
	Mode     Mode            `yaml:"mode,omitempty"`

	Icon string   `yaml:"icon,omitempty"`
	Tags []string `yaml:"tags,omitempty"`

	// Compose-derived runtime hints, used by the deployment manager when
	// resolving this template for deployment.
	Image   string   `yaml:"image,omitempty"`
	Ports   []string `yaml:"ports,omitempty"`
	Volumes []string `yaml:"volumes,omitempty"`

	Configured bool `yaml:"-"`
	Available  bool `yaml:"-"`
	Installed  bool `yaml:"-"`
}

// EnvVarName returns the environment variable name this env_map exports,
// defaulting to the upper-cased logical key (spec.md §4.3 step 3).
func (e EnvMap) EnvVarName() string {
	if e.EnvVar != "" {
		return e.EnvVar
	}
	return upper(e.LogicalKey)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}
