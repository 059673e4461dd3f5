package kube

import (
	"encoding/base64"
	"testing"

	"github.com/ushadow-io/ushadow/pkg/deploy"
)

func TestCompileSensitivityPartitionIsComplete(t *testing.T) {
	resolved := deploy.ResolvedServiceDefinition{
		ServiceID: "chron",
		Image:     "chronicle:latest",
		Env: map[string]string{
			"OPENAI_API_KEY": "sk-xyz",
			"DB_PASSWORD":    "hunter2",
			"LOG_LEVEL":      "info",
			"PORT":           "8080",
		},
	}

	manifests, err := Compile(resolved, CompileOptions{Namespace: "default"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	total := len(manifests.ConfigMap.Data) + len(manifests.Secret.Data)
	if total != len(resolved.Env) {
		t.Fatalf("expected every env key partitioned exactly once, got %d configmap + %d secret vs %d env", len(manifests.ConfigMap.Data), len(manifests.Secret.Data), len(resolved.Env))
	}
	for k := range manifests.ConfigMap.Data {
		if sensitivePattern.MatchString(k) {
			t.Fatalf("sensitive key %q leaked into ConfigMap", k)
		}
	}
	for k := range manifests.Secret.Data {
		if !sensitivePattern.MatchString(k) {
			t.Fatalf("non-sensitive key %q ended up in Secret", k)
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(string(manifests.Secret.Data["OPENAI_API_KEY"]))
	if err != nil {
		t.Fatalf("decode secret value: %v", err)
	}
	if string(decoded) != "sk-xyz" {
		t.Fatalf("expected secret value to round-trip through base64, got %q", decoded)
	}
}

func TestCompileZeroPortsStillProducesDefaultServicePort(t *testing.T) {
	resolved := deploy.ResolvedServiceDefinition{ServiceID: "svc", Image: "foo"}
	manifests, err := Compile(resolved, CompileOptions{Namespace: "default"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(manifests.Service.Spec.Ports) != 1 {
		t.Fatalf("expected exactly one default port entry, got %d", len(manifests.Service.Spec.Ports))
	}
}

func TestCompileVolumeClassification(t *testing.T) {
	resolved := deploy.ResolvedServiceDefinition{
		ServiceID: "svc",
		Image:     "foo",
		Volumes: []string{
			"config:/app/config",
			"./settings.yaml:/app/settings.yaml",
			"/tmp/scratch:/scratch",
			"data:/var/lib/data",
		},
	}
	manifests, err := Compile(resolved, CompileOptions{Namespace: "default"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(manifests.PVCs) != 1 {
		t.Fatalf("expected exactly one PVC for the genuinely named volume, got %d", len(manifests.PVCs))
	}
	if manifests.PVCs[0].Name != "svc-data" {
		t.Fatalf("unexpected pvc name %q", manifests.PVCs[0].Name)
	}
}
