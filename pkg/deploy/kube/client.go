// Package kube implements the Kubernetes deployment backend: a pure
// manifest compiler (Deployment/Service/ConfigMap/Secret/PVC/Ingress) plus
// an apply step against client-go (spec.md §4.4.4).
package kube

import (
	"fmt"
	"os"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// NewClientset builds a typed clientset from a kubeconfig payload (as
// decrypted by pkg/cryptutil from on-disk storage), falling back to
// in-cluster config when kubeconfig is empty (spec.md §3 "Kubernetes
// cluster").
func NewClientset(kubeconfig []byte) (*kubernetes.Clientset, error) {
	cfg, err := restConfig(kubeconfig)
	if err != nil {
		return nil, err
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build kubernetes clientset: %w", err)
	}
	return cs, nil
}

func restConfig(kubeconfig []byte) (*rest.Config, error) {
	if len(kubeconfig) == 0 {
		if cfg, err := rest.InClusterConfig(); err == nil {
			return cfg, nil
		}
		home, _ := os.UserHomeDir()
		return clientcmd.BuildConfigFromFlags("", home+"/.kube/config")
	}
	cfg, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("parse kubeconfig: %w", err)
	}
	return cfg, nil
}
