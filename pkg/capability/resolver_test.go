package capability

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/ushadow-io/ushadow/pkg/instances"
	"github.com/ushadow-io/ushadow/pkg/lifecycle"
	"github.com/ushadow-io/ushadow/pkg/settings"
	"github.com/ushadow-io/ushadow/pkg/templates"
)

type fakeTemplates struct {
	byID map[string]templates.Template
}

func (f fakeTemplates) Get(id string) (templates.Template, bool) {
	t, ok := f.byID[id]
	return t, ok
}

func (f fakeTemplates) List() []templates.Template {
	out := make([]templates.Template, 0, len(f.byID))
	for _, t := range f.byID {
		out = append(out, t)
	}
	return out
}

func newMemSettings(t *testing.T) *settings.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := settings.Open(dir + "/settings.db")
	if err != nil {
		t.Fatalf("open settings: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestResolveForInstanceWiredProvider reproduces spec.md's worked example:
// chron-1 (requires llm) wired to openai-prod (provides llm, api_key ->
// OPENAI_API_KEY via settings path api_keys.openai).
func TestResolveForInstanceWiredProvider(t *testing.T) {
	st := newMemSettings(t)
	if err := st.Set("api_keys.openai", "sk-xyz"); err != nil {
		t.Fatalf("set: %v", err)
	}

	tpl := fakeTemplates{byID: map[string]templates.Template{
		"chronicle": {ID: "chronicle", Requires: []string{"llm"}},
		"openai-prod": {
			ID:       "openai-prod",
			Provides: "llm",
			EnvMaps: []templates.EnvMap{
				{LogicalKey: "api_key", EnvVar: "OPENAI_API_KEY", SettingsPath: "api_keys.openai", Required: true},
			},
		},
	}}

	fs := afero.NewMemMapFs()
	instStore, err := instances.Open(fs, "/data")
	if err != nil {
		t.Fatalf("open instance store: %v", err)
	}
	if _, err := instStore.Create(instances.Instance{ID: "openai-prod-inst", TemplateID: "openai-prod"}); err != nil {
		t.Fatalf("create provider instance: %v", err)
	}
	if _, err := instStore.Create(instances.Instance{ID: "chron-1", TemplateID: "chronicle"}); err != nil {
		t.Fatalf("create consumer instance: %v", err)
	}
	if _, err := instStore.CreateWiring(instances.Wiring{
		SourceInstanceID: "openai-prod-inst",
		SourceCapability: "llm",
		TargetInstanceID: "chron-1",
		TargetCapability: "llm",
	}); err != nil {
		t.Fatalf("create wiring: %v", err)
	}

	r := New(tpl, instStore, st, templates.ModeLocal)
	resolved, err := r.ResolveForInstance("chron-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got, ok := resolved["OPENAI_API_KEY"]
	if !ok {
		t.Fatalf("expected OPENAI_API_KEY to be resolved, got %+v", resolved)
	}
	if got.Value != "sk-xyz" || got.Source != lifecycle.SourceSettings || got.SourcePath != "api_keys.openai" {
		t.Fatalf("unexpected resolved var: %+v", got)
	}
}

func TestResolveForInstanceReportsAllMissingRequiredInputs(t *testing.T) {
	st := newMemSettings(t)

	tpl := fakeTemplates{byID: map[string]templates.Template{
		"consumer": {ID: "consumer", Requires: []string{"llm", "memory"}},
	}}
	fs := afero.NewMemMapFs()
	instStore, err := instances.Open(fs, "/data")
	if err != nil {
		t.Fatalf("open instance store: %v", err)
	}
	if _, err := instStore.Create(instances.Instance{ID: "consumer-1", TemplateID: "consumer"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	r := New(tpl, instStore, st, templates.ModeLocal)
	_, err = r.ResolveForInstance("consumer-1")
	if err == nil {
		t.Fatalf("expected resolution error")
	}
	resErr, ok := err.(*ResolutionError)
	if !ok {
		t.Fatalf("expected *ResolutionError, got %T", err)
	}
	if len(resErr.Missing()) != 2 {
		t.Fatalf("expected both unresolved capabilities reported, got %+v", resErr.Missing())
	}
}

func TestResolveForInstanceEnvMapping(t *testing.T) {
	st := newMemSettings(t)

	tpl := fakeTemplates{byID: map[string]templates.Template{
		"consumer": {
			ID:         "consumer",
			Requires:   []string{"llm"},
			EnvMapping: map[string]string{"API_KEY": "SERVICE_LLM_KEY"},
		},
		"provider": {
			ID:       "provider",
			Provides: "llm",
			EnvMaps: []templates.EnvMap{
				{LogicalKey: "api_key", EnvVar: "API_KEY", Default: "fallback-value"},
			},
		},
	}}
	fs := afero.NewMemMapFs()
	instStore, err := instances.Open(fs, "/data")
	if err != nil {
		t.Fatalf("open instance store: %v", err)
	}
	if _, err := instStore.Create(instances.Instance{ID: "provider-1", TemplateID: "provider"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := instStore.Create(instances.Instance{ID: "consumer-1", TemplateID: "consumer"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := instStore.SetDefault("llm", "provider-1"); err != nil {
		t.Fatalf("set default: %v", err)
	}

	r := New(tpl, instStore, st, templates.ModeLocal)
	resolved, err := r.ResolveForInstance("consumer-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, ok := resolved["SERVICE_LLM_KEY"]
	if !ok {
		t.Fatalf("expected env_mapping rename to SERVICE_LLM_KEY, got %+v", resolved)
	}
	if got.Value != "fallback-value" || got.Source != lifecycle.SourceDefault {
		t.Fatalf("unexpected resolved var: %+v", got)
	}
}
