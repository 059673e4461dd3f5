package kube

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ListNodes returns the cluster's nodes, for the "cluster inspection"
// surface of spec.md §6 (GET /api/kubernetes/{id}/nodes).
func ListNodes(ctx context.Context, clientset kubernetes.Interface) ([]corev1.Node, error) {
	nodes, err := clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return nodes.Items, nil
}

// ListPods returns every pod in namespace, optionally filtered to those
// belonging to a single deployed service (GET .../pods[?service=]).
func ListPods(ctx context.Context, clientset kubernetes.Interface, namespace, serviceID string) ([]corev1.Pod, error) {
	opts := metav1.ListOptions{}
	if serviceID != "" {
		opts.LabelSelector = "app.kubernetes.io/name=" + serviceID
	}
	pods, err := clientset.CoreV1().Pods(namespace).List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list pods in %s: %w", namespace, err)
	}
	return pods.Items, nil
}

// PodLogs returns the tail of a single pod's logs
// (GET .../pods/{name}/logs).
func PodLogs(ctx context.Context, clientset kubernetes.Interface, namespace, podName string, tail int64) (string, error) {
	req := clientset.CoreV1().Pods(namespace).GetLogs(podName, &corev1.PodLogOptions{TailLines: &tail})
	raw, err := req.DoRaw(ctx)
	if err != nil {
		return "", fmt.Errorf("read logs for pod %s: %w", podName, err)
	}
	return string(raw), nil
}

// PodEvents returns the Kubernetes events involving a single pod
// (GET .../pods/{name}/events).
func PodEvents(ctx context.Context, clientset kubernetes.Interface, namespace, podName string) ([]corev1.Event, error) {
	selector := fmt.Sprintf("involvedObject.name=%s,involvedObject.kind=Pod", podName)
	events, err := clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{FieldSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("list events for pod %s: %w", podName, err)
	}
	return events.Items, nil
}
