package kube

import (
	"context"
	"fmt"
	"sort"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/spf13/afero"
)

// EnsureEnvmap (re)builds the two shared ConfigMaps that volumes named
// "config" and "compose" mount (spec.md §4.4.4 volume handling: "the
// manager auto-generates these by scanning the on-disk config and compose
// directories and creating/updating ConfigMaps in the target namespace on
// every deploy of the backend service"). It is idempotent: re-running it
// against an unchanged source tree produces byte-identical ConfigMap data
// (spec.md §8 "Re-running ensure_envmap with the same input produces the
// same ConfigMap/Secret contents").
func EnsureEnvmap(ctx context.Context, clientset kubernetes.Interface, namespace string, fs afero.Fs, composeDir, configDir string) error {
	composeData, err := scanFlatDir(fs, composeDir)
	if err != nil {
		return fmt.Errorf("scan compose dir %s: %w", composeDir, err)
	}
	configData, err := scanFlatDir(fs, configDir)
	if err != nil {
		return fmt.Errorf("scan config dir %s: %w", configDir, err)
	}

	composeCM := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: wellKnownVolumes["compose"], Namespace: namespace},
		Data:       composeData,
	}
	configCM := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: wellKnownVolumes["config"], Namespace: namespace},
		Data:       configData,
	}

	if err := applyConfigMap(ctx, clientset, namespace, composeCM); err != nil {
		return err
	}
	return applyConfigMap(ctx, clientset, namespace, configCM)
}

// scanFlatDir reads every regular file directly under dir (non-recursive,
// ConfigMap keys can't contain path separators) keyed by its base name.
func scanFlatDir(fs afero.Fs, dir string) (map[string]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return map[string]string{}, nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	data := make(map[string]string, len(names))
	for _, name := range names {
		raw, err := afero.ReadFile(fs, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", dir, name, err)
		}
		data[name] = string(raw)
	}
	return data, nil
}
