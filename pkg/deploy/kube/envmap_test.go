package kube

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestEnsureEnvmapIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/compose/app.yaml", []byte("services: {}"), 0o644)
	_ = afero.WriteFile(fs, "/config/settings.yaml", []byte("a: 1"), 0o644)

	clientset := fake.NewSimpleClientset()
	ctx := context.Background()

	if err := EnsureEnvmap(ctx, clientset, "default", fs, "/compose", "/config"); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	first, err := clientset.CoreV1().ConfigMaps("default").Get(ctx, wellKnownVolumes["compose"], metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get compose-files: %v", err)
	}
	if first.Data["app.yaml"] != "services: {}" {
		t.Fatalf("unexpected compose-files data: %v", first.Data)
	}

	if err := EnsureEnvmap(ctx, clientset, "default", fs, "/compose", "/config"); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	second, err := clientset.CoreV1().ConfigMaps("default").Get(ctx, wellKnownVolumes["compose"], metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get compose-files after re-run: %v", err)
	}
	if second.Data["app.yaml"] != first.Data["app.yaml"] {
		t.Fatalf("ensure_envmap re-run changed compose-files contents")
	}

	configCM, err := clientset.CoreV1().ConfigMaps("default").Get(ctx, wellKnownVolumes["config"], metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get config-files: %v", err)
	}
	if configCM.Data["settings.yaml"] != "a: 1" {
		t.Fatalf("unexpected config-files data: %v", configCM.Data)
	}
}

func TestEnsureEnvmapMissingDirIsEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	clientset := fake.NewSimpleClientset()

	if err := EnsureEnvmap(context.Background(), clientset, "default", fs, "/nope-compose", "/nope-config"); err != nil {
		t.Fatalf("ensure with missing dirs: %v", err)
	}
	cm, err := clientset.CoreV1().ConfigMaps("default").Get(context.Background(), wellKnownVolumes["compose"], metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get compose-files: %v", err)
	}
	if len(cm.Data) != 0 {
		t.Fatalf("expected empty compose-files data, got %v", cm.Data)
	}
}
