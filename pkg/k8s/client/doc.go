// Package client provides Kubernetes client creation with automatic
// configuration discovery (kubeconfig file, KUBECONFIG, in-cluster).
package client
