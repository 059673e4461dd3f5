package templates

import (
	"testing"

	"github.com/spf13/afero"
)

const sampleCompose = `
services:
  mem0-ui:
    image: mem0/ui:latest
    ports:
      - "3000:3000"
    environment:
      URL: "${API_BASE:-http://localhost:8080}"
    x-ushadow:
      requires: ["llm"]
`

const sampleProvider = `
id: openai-prod
display_name: OpenAI
capability: llm
mode: cloud
env_maps:
  - key: api_key
    env_var: OPENAI_API_KEY
    settings_path: api_keys.openai
    required: true
`

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/compose", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := fs.MkdirAll("/providers", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/compose/openmemory-compose.yaml", []byte(sampleCompose), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/providers/openai.yaml", []byte(sampleProvider), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New(fs, "/compose", "/providers")
	if err := r.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return r
}

func TestRegistryDiscoversComposeAndProviderTemplates(t *testing.T) {
	r := newTestRegistry(t)

	tmpl, ok := r.Get("openmemory-compose:mem0-ui")
	if !ok {
		t.Fatalf("expected compose template to be discovered")
	}
	if tmpl.Image != "mem0/ui:latest" {
		t.Fatalf("got image %q", tmpl.Image)
	}
	if len(tmpl.Requires) != 1 || tmpl.Requires[0] != "llm" {
		t.Fatalf("got requires %v", tmpl.Requires)
	}

	provider, ok := r.Get("openai-prod")
	if !ok {
		t.Fatalf("expected provider template to be discovered")
	}
	if provider.Provides != "llm" {
		t.Fatalf("got provides %q", provider.Provides)
	}
	if len(provider.EnvMaps) != 1 || provider.EnvMaps[0].EnvVarName() != "OPENAI_API_KEY" {
		t.Fatalf("got env maps %+v", provider.EnvMaps)
	}
}

func TestRegistryIDsStableAcrossReload(t *testing.T) {
	r := newTestRegistry(t)
	before := r.List()

	if err := r.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	after := r.List()

	if len(before) != len(after) {
		t.Fatalf("template count changed across reload: %d != %d", len(before), len(after))
	}
	for _, t1 := range before {
		if _, ok := r.Get(t1.ID); !ok {
			t.Fatalf("id %s missing after reload", t1.ID)
		}
	}
}
