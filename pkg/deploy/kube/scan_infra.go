package kube

import (
	"context"
	"fmt"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// infraNamePatterns are the well-known infrastructure service name
// fragments the scan matches against (spec.md §4.4.4 infrastructure scan).
var infraNamePatterns = []string{"mongo", "redis", "postgres", "qdrant", "neo4j"}

// candidateNamespaces is the search order: target namespace first, then the
// cluster-wide well-known namespaces.
func candidateNamespaces(target string) []string {
	return []string{target, "default", "kube-system", "infra", "infrastructure"}
}

// InfraEndpoint is one discovered infrastructure connection point, named
// using the cluster's own DNS (kubernetes_dns_manager.py's in-cluster
// service naming scheme) rather than an external address.
type InfraEndpoint struct {
	ServiceName string
	Namespace   string
	Port        int32
	Endpoint    string // "<svc>.<ns>.svc.cluster.local:<port>"
}

// ScanClusterForInfra enumerates services matching known infrastructure
// name patterns across the candidate namespace list, in namespace order,
// deduplicating by namespace so results can be cached per-namespace on the
// cluster record (spec.md §3 "cached per-namespace infrastructure scan
// results").
func ScanClusterForInfra(ctx context.Context, clientset kubernetes.Interface, targetNamespace string) (map[string][]InfraEndpoint, error) {
	results := map[string][]InfraEndpoint{}
	seen := map[string]bool{}

	for _, ns := range candidateNamespaces(targetNamespace) {
		if ns == "" || seen[ns] {
			continue
		}
		seen[ns] = true

		services, err := clientset.CoreV1().Services(ns).List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("list services in %s: %w", ns, err)
		}

		var found []InfraEndpoint
		for _, svc := range services.Items {
			if !matchesInfraPattern(svc.Name) {
				continue
			}
			for _, port := range svc.Spec.Ports {
				found = append(found, InfraEndpoint{
					ServiceName: svc.Name,
					Namespace:   ns,
					Port:        port.Port,
					Endpoint:    fmt.Sprintf("%s.%s.svc.cluster.local:%d", svc.Name, ns, port.Port),
				})
			}
		}
		if len(found) > 0 {
			results[ns] = found
		}
	}
	return results, nil
}

func matchesInfraPattern(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range infraNamePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
