package settings

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

var interpPattern = regexp.MustCompile(`^\$\{([A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)*)\}$`)

// Kind distinguishes a literal configuration value from an unresolved
// interpolation expression, per the design note on interpolation
// preservation: the YAML layer must carry this distinction at the leaf
// instead of eagerly resolving it.
type Kind int

const (
	// KindLiteral holds a concrete value, stored as-is.
	KindLiteral Kind = iota
	// KindInterp holds an unresolved "${a.b.c}" expression.
	KindInterp
)

// Value is a single configuration leaf that is either a literal or an
// interpolation expression referencing the settings store. It round-trips
// through YAML without ever collapsing an interpolation into its resolved
// literal value — that collapse only happens in Resolve.
type Value struct {
	Kind    Kind
	Literal any    // valid when Kind == KindLiteral
	Path    string // valid when Kind == KindInterp; the dotted path, without "${}"
}

// NewLiteral wraps a concrete value.
func NewLiteral(v any) Value { return Value{Kind: KindLiteral, Literal: v} }

// NewInterp wraps an interpolation expression's dotted path.
func NewInterp(path string) Value { return Value{Kind: KindInterp, Path: path} }

// IsInterp reports whether this value is an unresolved interpolation.
func (v Value) IsInterp() bool { return v.Kind == KindInterp }

// Raw renders the value the way it should be persisted: literals pass
// through unchanged, interpolations are re-rendered as "${path}". This is
// the AsRaw() accessor from the design notes — the persistence layer always
// writes this form.
func (v Value) Raw() any {
	if v.Kind == KindInterp {
		return "${" + v.Path + "}"
	}
	return v.Literal
}

// Getter is the subset of *Store that Resolve needs; it exists so callers
// can pass a narrower interface in tests.
type Getter interface {
	GetString(path, def string) string
	Get(path string) (any, bool)
}

// Resolve returns the concrete value: literals are returned unchanged,
// interpolations are looked up in store. An interpolation with no matching
// settings entry resolves to "".
func (v Value) Resolve(store Getter) any {
	if v.Kind == KindLiteral {
		return v.Literal
	}
	if val, ok := store.Get(v.Path); ok {
		return val
	}
	return ""
}

// ResolveString is Resolve rendered as a string, the common case for
// environment-variable substitution.
func (v Value) ResolveString(store Getter) string {
	resolved := v.Resolve(store)
	if resolved == nil {
		return ""
	}
	if s, ok := resolved.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", resolved)
}

// UnmarshalYAML detects "${a.b.c}" scalars and stores them as interpolations;
// everything else (including maps, lists, numbers, and plain strings) is
// kept as a literal via a decoded-once copy of the node.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if m := interpPattern.FindStringSubmatch(node.Value); m != nil {
			*v = NewInterp(m[1])
			return nil
		}
	}
	var literal any
	if err := node.Decode(&literal); err != nil {
		return fmt.Errorf("decode settings value: %w", err)
	}
	*v = NewLiteral(literal)
	return nil
}

// MarshalYAML writes Raw() so interpolations survive the round trip.
func (v Value) MarshalYAML() (any, error) {
	return v.Raw(), nil
}
