package kube

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestListPodsFiltersByService(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		&corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "chron-1", Namespace: "default", Labels: map[string]string{"app.kubernetes.io/name": "chronicle"}}},
		&corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "mem-1", Namespace: "default", Labels: map[string]string{"app.kubernetes.io/name": "mem0"}}},
	)

	pods, err := ListPods(context.Background(), clientset, "default", "chronicle")
	if err != nil {
		t.Fatalf("list pods: %v", err)
	}
	if len(pods) != 1 || pods[0].Name != "chron-1" {
		t.Fatalf("expected only chron-1, got %v", pods)
	}

	all, err := ListPods(context.Background(), clientset, "default", "")
	if err != nil {
		t.Fatalf("list all pods: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 pods unfiltered, got %d", len(all))
	}
}

func TestListNodesReturnsClusterNodes(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		&corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "worker-1"}},
	)
	nodes, err := ListNodes(context.Background(), clientset)
	if err != nil {
		t.Fatalf("list nodes: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Name != "worker-1" {
		t.Fatalf("expected worker-1, got %v", nodes)
	}
}
