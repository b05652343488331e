package client

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildKubeClientMissingConfig(t *testing.T) {
	// Point discovery at an empty home so it falls through to in-cluster
	// config, which is unavailable in tests.
	t.Setenv("KUBECONFIG", "")
	t.Setenv("HOME", t.TempDir())

	_, _, err := BuildKubeClient("")
	if err == nil {
		t.Skip("running inside a cluster; in-cluster config resolved")
	}
}

func TestBuildKubeClientFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kubeconfig")

	kubeconfig := `apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://127.0.0.1:6443
  name: test
contexts:
- context:
    cluster: test
    user: test
  name: test
current-context: test
users:
- name: test
  user:
    token: test-token
`
	if err := os.WriteFile(path, []byte(kubeconfig), 0o600); err != nil {
		t.Fatal(err)
	}

	client, config, err := BuildKubeClient(path)
	if err != nil {
		t.Fatalf("BuildKubeClient() error = %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if config.Host != "https://127.0.0.1:6443" {
		t.Errorf("expected host from kubeconfig, got %s", config.Host)
	}
}

func TestBuildKubeClientInvalidPath(t *testing.T) {
	_, _, err := BuildKubeClient(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error for missing kubeconfig file")
	}
}
