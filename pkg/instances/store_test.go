package instances

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/ushadow-io/ushadow/pkg/lifecycle"
	"github.com/ushadow-io/ushadow/pkg/settings"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := Open(fs, "/data")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create(Instance{ID: "mem0"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(Instance{ID: "mem0"}); err == nil {
		t.Fatalf("expected error creating duplicate id")
	}
}

func TestCreateDerivesInitialStatusFromDeploymentTarget(t *testing.T) {
	s := newTestStore(t)

	local, err := s.Create(Instance{ID: "local-svc"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if local.Status != lifecycle.StatusPending {
		t.Fatalf("expected pending status for local instance, got %s", local.Status)
	}

	cloud, err := s.Create(Instance{ID: "cloud-svc", DeploymentTarget: CloudTarget})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if cloud.Status != lifecycle.StatusNotApplicable {
		t.Fatalf("expected not_applicable status for cloud instance, got %s", cloud.Status)
	}
}

func TestDeleteInstanceCascadesWiring(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create(Instance{ID: "llm-provider"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(Instance{ID: "consumer"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(Instance{ID: "bystander"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.CreateWiring(Wiring{
		SourceInstanceID: "llm-provider",
		SourceCapability: "llm",
		TargetInstanceID: "consumer",
		TargetCapability: "llm",
	}); err != nil {
		t.Fatalf("create wiring: %v", err)
	}
	if _, err := s.CreateWiring(Wiring{
		SourceInstanceID: "bystander",
		SourceCapability: "cache",
		TargetInstanceID: "consumer",
		TargetCapability: "cache",
	}); err != nil {
		t.Fatalf("create wiring: %v", err)
	}

	if err := s.Delete("llm-provider"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for _, w := range s.ListWiring() {
		if w.SourceInstanceID == "llm-provider" || w.TargetInstanceID == "llm-provider" {
			t.Fatalf("dangling wiring row survived delete: %+v", w)
		}
	}
	if len(s.ListWiring()) != 1 {
		t.Fatalf("expected exactly the bystander wiring row to remain, got %d rows", len(s.ListWiring()))
	}
}

func TestCreateWiringUpsertsOnTargetAndCapability(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create(Instance{ID: "provider-a"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(Instance{ID: "provider-b"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(Instance{ID: "consumer"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := s.CreateWiring(Wiring{
		SourceInstanceID: "provider-a",
		SourceCapability: "llm",
		TargetInstanceID: "consumer",
		TargetCapability: "llm",
	})
	if err != nil {
		t.Fatalf("create wiring: %v", err)
	}

	second, err := s.CreateWiring(Wiring{
		SourceInstanceID: "provider-b",
		SourceCapability: "llm",
		TargetInstanceID: "consumer",
		TargetCapability: "llm",
	})
	if err != nil {
		t.Fatalf("create wiring: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected upsert to reuse wiring id %q, got %q", first.ID, second.ID)
	}
	if len(s.ListWiring()) != 1 {
		t.Fatalf("expected exactly one wiring row after upsert, got %d", len(s.ListWiring()))
	}

	provider, ok := s.GetProvider("consumer", "llm")
	if !ok || provider.SourceInstanceID != "provider-b" {
		t.Fatalf("expected provider-b to be the current llm provider, got %+v ok=%v", provider, ok)
	}
}

func TestGetOverridesFiltersOutInterpolations(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(Instance{
		ID: "svc",
		Config: map[string]settings.Value{
			"timeout":  settings.NewLiteral(30),
			"api_base": settings.NewInterp("api_keys.openai"),
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	overrides, err := s.GetOverrides("svc")
	if err != nil {
		t.Fatalf("get overrides: %v", err)
	}
	if _, ok := overrides["api_base"]; ok {
		t.Fatalf("expected interpolated field to be excluded from overrides: %+v", overrides)
	}
	if overrides["timeout"] != 30 {
		t.Fatalf("expected literal override to survive, got %+v", overrides)
	}
}

func TestSetDefaultPersists(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := Open(fs, "/data")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.SetDefault("llm", "openai-prod"); err != nil {
		t.Fatalf("set default: %v", err)
	}

	reopened, err := Open(fs, "/data")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.GetDefaults()["llm"]; got != "openai-prod" {
		t.Fatalf("expected default to persist across reopen, got %q", got)
	}
}
