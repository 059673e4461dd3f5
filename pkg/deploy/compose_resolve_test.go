package deploy

import (
	"context"
	"testing"
)

type fakeComposeRunner struct {
	yaml []byte
}

func (f fakeComposeRunner) RenderConfig(ctx context.Context, composeFile string, env map[string]string) ([]byte, error) {
	return f.yaml, nil
}

// TestResolveSubstitutesEnvironment reproduces spec.md's worked example:
// openmemory-compose:mem0-ui with URL=${API_BASE:-http://localhost:8080}
// and API_BASE=http://example.test resolves to the substituted URL. The
// substitution itself is delegated to the compose tool; here we simulate
// its rendered output directly.
func TestResolveSubstitutesEnvironment(t *testing.T) {
	rendered := []byte(`
services:
  mem0-ui:
    image: mem0/ui:latest
    ports:
      - "3000:3000"
    environment:
      URL: "http://example.test"
    restart: unless-stopped
`)
	runner := fakeComposeRunner{yaml: rendered}

	resolved, err := Resolve(context.Background(), runner, "openmemory-compose.yaml", "mem0-ui", map[string]string{"API_BASE": "http://example.test"}, []string{"llm"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Env["URL"] != "http://example.test" {
		t.Fatalf("expected URL to be substituted, got %q", resolved.Env["URL"])
	}
	if len(resolved.Ports) != 1 || resolved.Ports[0] != "3000:3000" {
		t.Fatalf("unexpected ports: %v", resolved.Ports)
	}
}

func TestResolveMissingServiceErrors(t *testing.T) {
	runner := fakeComposeRunner{yaml: []byte("services:\n  other:\n    image: foo\n")}
	_, err := Resolve(context.Background(), runner, "f.yaml", "mem0-ui", nil, nil)
	if err == nil {
		t.Fatalf("expected error for missing service")
	}
}

func TestResolvePortFormsBothParse(t *testing.T) {
	rendered := []byte(`
services:
  svc:
    image: foo
    ports:
      - "3000"
      - "3002:3000"
`)
	runner := fakeComposeRunner{yaml: rendered}
	resolved, err := Resolve(context.Background(), runner, "f.yaml", "svc", nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved.Ports) != 2 {
		t.Fatalf("expected both port specs to parse, got %v", resolved.Ports)
	}
}
