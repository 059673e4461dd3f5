package clusters

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/ushadow-io/ushadow/pkg/cryptutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	box, err := cryptutil.NewBox("test-app-secret")
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	s, err := Open(afero.NewMemMapFs(), "/data/kubernetes", box)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestRegisterThenGetRoundTripsKubeconfig(t *testing.T) {
	s := newTestStore(t)
	kubeconfig := []byte("apiVersion: v1\nkind: Config\n")

	cluster, err := s.Register("prod", kubeconfig, "https://k8s.example.com", "ushadow")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if cluster.ID == "" {
		t.Fatal("expected non-empty cluster id")
	}

	got, ok := s.Get(cluster.ID)
	if !ok {
		t.Fatal("expected cluster to be found")
	}
	if got.Name != "prod" || got.DefaultNamespace != "ushadow" {
		t.Fatalf("unexpected cluster record: %+v", got)
	}

	raw, err := s.Kubeconfig(cluster.ID)
	if err != nil {
		t.Fatalf("kubeconfig: %v", err)
	}
	if string(raw) != string(kubeconfig) {
		t.Fatalf("kubeconfig round trip mismatch: got %q", raw)
	}
}

func TestIsClusterIDReflectsStore(t *testing.T) {
	s := newTestStore(t)
	cluster, err := s.Register("staging", []byte("kubeconfig"), "", "default")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !s.IsClusterID(cluster.ID) {
		t.Fatal("expected registered cluster id to be recognized")
	}
	if s.IsClusterID("does-not-exist") {
		t.Fatal("expected unknown id to be rejected")
	}
}

func TestDeleteRemovesMetadataAndKubeconfig(t *testing.T) {
	s := newTestStore(t)
	cluster, err := s.Register("temp", []byte("kubeconfig"), "", "default")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	removed, err := s.Delete(cluster.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !removed {
		t.Fatal("expected delete to report removal")
	}
	if _, ok := s.Get(cluster.ID); ok {
		t.Fatal("expected cluster to be gone after delete")
	}
	if _, err := s.Kubeconfig(cluster.ID); err == nil {
		t.Fatal("expected kubeconfig read to fail after delete")
	}
}

func TestRegisterTwoClustersKeepsBoth(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Register("a", []byte("kubeconfig-a"), "", "default"); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if _, err := s.Register("b", []byte("kubeconfig-b"), "", "default"); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if len(s.List()) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(s.List()))
	}
}
