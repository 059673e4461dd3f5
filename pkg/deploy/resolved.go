// Package deploy centralizes resolution of an instance to its fully
// substituted runtime form and dispatches it to a backend (spec.md §4.4).
package deploy

// ResolvedServiceDefinition is the portable currency every backend consumes:
// a compose service after environment substitution, field normalization,
// and capability resolution, with no further knowledge of compose syntax
// (spec.md §4.4.1 step 5).
type ResolvedServiceDefinition struct {
	ServiceID  string
	Image      string
	Ports      []string // "host:container" or "container" form
	Env        map[string]string
	Volumes    []string // "src:dst[:ro]" form
	Command    string
	Restart    string
	Network    string
	ComposeFile string
	Namespace  string
	Requires   []string

	HealthCheckPath string
	HealthCheckPort string
}
