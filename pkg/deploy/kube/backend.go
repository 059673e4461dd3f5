package kube

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/ushadow-io/ushadow/pkg/deploy"
	"github.com/ushadow-io/ushadow/pkg/lifecycle"
)

// Backend implements deploy.Backend against a single Kubernetes cluster's
// clientset (spec.md §4.4.4). "target" for this backend is always the
// cluster's own id; the manager is responsible for routing there.
type Backend struct {
	Clientset   kubernetes.Interface
	Namespace   string
	ServiceType corev1.ServiceType
}

func (b *Backend) Deploy(ctx context.Context, target string, resolved deploy.ResolvedServiceDefinition, deploymentID, namespace string) (deploy.Deployment, error) {
	ns := namespace
	if ns == "" {
		ns = b.Namespace
	}
	manifests, err := Compile(resolved, CompileOptions{Namespace: ns, AppName: resolved.ServiceID, ServiceType: b.ServiceType})
	if err != nil {
		return deploy.Deployment{}, fmt.Errorf("compile manifests: %w", err)
	}
	if err := Apply(ctx, b.Clientset, ns, manifests); err != nil {
		return deploy.Deployment{}, err
	}

	status := statusFromDeployment(manifests.Deployment)
	return deploy.Deployment{
		ID:            deploymentID,
		ServiceID:     resolved.ServiceID,
		Target:        target,
		Status:        status,
		ContainerName: manifests.Deployment.Name,
		Config:        resolved,
		BackendType:   "kubernetes",
		BackendMeta:   map[string]string{"namespace": ns},
	}, nil
}

func (b *Backend) Stop(ctx context.Context, target string, d deploy.Deployment) (bool, error) {
	ns := b.namespaceFor(d)
	zero := int32(0)
	api := b.Clientset.AppsV1().Deployments(ns)
	dep, err := api.Get(ctx, d.ContainerName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	dep.Spec.Replicas = &zero
	if _, err := api.Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return false, fmt.Errorf("scale down deployment %s: %w", d.ContainerName, err)
	}
	return true, nil
}

func (b *Backend) Restart(ctx context.Context, target string, d deploy.Deployment) (bool, error) {
	ns := b.namespaceFor(d)
	one := int32(1)
	api := b.Clientset.AppsV1().Deployments(ns)
	dep, err := api.Get(ctx, d.ContainerName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	dep.Spec.Replicas = &one
	if _, err := api.Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return false, fmt.Errorf("scale up deployment %s: %w", d.ContainerName, err)
	}
	return true, nil
}

func (b *Backend) Remove(ctx context.Context, target string, d deploy.Deployment) (bool, error) {
	ns := b.namespaceFor(d)
	propagation := metav1.DeletePropagationForeground
	err := b.Clientset.AppsV1().Deployments(ns).Delete(ctx, d.ContainerName, metav1.DeleteOptions{PropagationPolicy: &propagation})
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete deployment %s: %w", d.ContainerName, err)
	}
	_ = b.Clientset.CoreV1().Services(ns).Delete(ctx, d.ContainerName, metav1.DeleteOptions{})
	_ = b.Clientset.CoreV1().ConfigMaps(ns).Delete(ctx, d.ContainerName+"-config", metav1.DeleteOptions{})
	_ = b.Clientset.CoreV1().Secrets(ns).Delete(ctx, d.ContainerName+"-secrets", metav1.DeleteOptions{})
	return true, nil
}

func (b *Backend) GetStatus(ctx context.Context, target string, d deploy.Deployment) (lifecycle.Status, error) {
	ns := b.namespaceFor(d)
	dep, err := b.Clientset.AppsV1().Deployments(ns).Get(ctx, d.ContainerName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return lifecycle.StatusStopped, nil
		}
		return "", err
	}
	return statusFromDeployment(dep), nil
}

func (b *Backend) GetLogs(ctx context.Context, target string, d deploy.Deployment, tail int) ([]string, error) {
	ns := b.namespaceFor(d)
	pods, err := b.Clientset.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{
		LabelSelector: "app.kubernetes.io/name=" + d.ServiceID,
	})
	if err != nil {
		return nil, fmt.Errorf("list pods for %s: %w", d.ServiceID, err)
	}
	if len(pods.Items) == 0 {
		return nil, nil
	}
	tailLines := int64(tail)
	req := b.Clientset.CoreV1().Pods(ns).GetLogs(pods.Items[0].Name, &corev1.PodLogOptions{TailLines: &tailLines})
	raw, err := req.DoRaw(ctx)
	if err != nil {
		return nil, fmt.Errorf("read logs for pod %s: %w", pods.Items[0].Name, err)
	}
	return splitLines(string(raw)), nil
}

func (b *Backend) ListDeployments(ctx context.Context, target, serviceID string) ([]deploy.Deployment, error) {
	selector := ""
	if serviceID != "" {
		selector = "app.kubernetes.io/name=" + serviceID
	}
	deployments, err := b.Clientset.AppsV1().Deployments(b.Namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	out := make([]deploy.Deployment, 0, len(deployments.Items))
	for i := range deployments.Items {
		dep := &deployments.Items[i]
		out = append(out, deploy.Deployment{
			ServiceID:     dep.Labels["app.kubernetes.io/name"],
			Target:        target,
			Status:        statusFromDeployment(dep),
			ContainerName: dep.Name,
			BackendType:   "kubernetes",
			BackendMeta:   map[string]string{"namespace": dep.Namespace},
		})
	}
	return out, nil
}

func (b *Backend) namespaceFor(d deploy.Deployment) string {
	if ns := d.BackendMeta["namespace"]; ns != "" {
		return ns
	}
	return b.Namespace
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
