package gateway

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kubeterm/kubeterm/pkg/defaults"
	"github.com/kubeterm/kubeterm/pkg/k8s/exec"
	"github.com/kubeterm/kubeterm/pkg/serializers"
)

// handleListContainers handles GET /v1/namespaces/{namespace}/pods/{pod}/containers
func (s *Server) handleListContainers(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	pod := chi.URLParam(r, "pod")

	ctx, cancel := context.WithTimeout(r.Context(), defaults.K8sRequestTimeout)
	defer cancel()

	infos, err := exec.ListContainers(ctx, s.kube, namespace, pod)
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), false, nil)
		return
	}

	serializers.RespondJSON(w, http.StatusOK, infos)
}
