package exec

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ContainerInfo is the gateway's view of one container in a pod.
type ContainerInfo struct {
	Name  string `json:"name" yaml:"name"`
	Image string `json:"image" yaml:"image"`
	Ready bool   `json:"ready" yaml:"ready"`
}

// ResolveContainer validates the target pod and picks the container to exec
// into. An empty container name resolves to the pod's first container; a named
// container must exist in the pod spec.
func ResolveContainer(ctx context.Context, client kubernetes.Interface, namespace, pod, container string) (string, error) {
	p, err := client.CoreV1().Pods(namespace).Get(ctx, pod, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get pod %s/%s: %w", namespace, pod, err)
	}

	if len(p.Spec.Containers) == 0 {
		return "", fmt.Errorf("pod %s/%s has no containers", namespace, pod)
	}

	if container == "" {
		return p.Spec.Containers[0].Name, nil
	}

	for _, c := range p.Spec.Containers {
		if c.Name == container {
			return container, nil
		}
	}
	return "", fmt.Errorf("container %q not found in pod %s/%s", container, namespace, pod)
}

// ListContainers returns the containers of a pod with their readiness, for
// container selection in clients.
func ListContainers(ctx context.Context, client kubernetes.Interface, namespace, pod string) ([]ContainerInfo, error) {
	p, err := client.CoreV1().Pods(namespace).Get(ctx, pod, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get pod %s/%s: %w", namespace, pod, err)
	}

	ready := make(map[string]bool, len(p.Status.ContainerStatuses))
	for _, cs := range p.Status.ContainerStatuses {
		ready[cs.Name] = cs.Ready
	}

	infos := make([]ContainerInfo, 0, len(p.Spec.Containers))
	for _, c := range p.Spec.Containers {
		infos = append(infos, ContainerInfo{
			Name:  c.Name,
			Image: c.Image,
			Ready: ready[c.Name],
		})
	}
	return infos, nil
}
