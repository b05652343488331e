package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/kubeterm/kubeterm/pkg/k8s/exec"
	"github.com/kubeterm/kubeterm/pkg/ticket"
)

// fakeExecutor echoes stdin back to stdout and records options and resizes.
type fakeExecutor struct {
	mu    sync.Mutex
	opts  exec.Options
	sizes []remotecommand.TerminalSize
	err   error
}

func (f *fakeExecutor) Stream(ctx context.Context, opts exec.Options, streams exec.Streams, sizes remotecommand.TerminalSizeQueue) error {
	f.mu.Lock()
	f.opts = opts
	err := f.err
	f.mu.Unlock()

	if err != nil {
		return err
	}

	if sizes != nil {
		go func() {
			for {
				size := sizes.Next()
				if size == nil {
					return
				}
				f.mu.Lock()
				f.sizes = append(f.sizes, *size)
				f.mu.Unlock()
			}
		}()
	}

	buf := make([]byte, 1024)
	for {
		n, err := streams.Stdin.Read(buf)
		if n > 0 {
			if _, werr := streams.Stdout.Write(buf[:n]); werr != nil {
				return nil
			}
		}
		if err != nil {
			return nil
		}
	}
}

func (f *fakeExecutor) recordedSizes() []remotecommand.TerminalSize {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remotecommand.TerminalSize, len(f.sizes))
	copy(out, f.sizes)
	return out
}

func testPod() *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "web-0", Namespace: "default"},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{Name: "app", Image: "nginx:1.27"},
				{Name: "sidecar", Image: "envoy:v1.30"},
			},
		},
		Status: corev1.PodStatus{
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "app", Ready: true},
			},
		},
	}
}

// newTestServer returns a gateway wired to a fake clientset and executor,
// plus a running httptest server in front of it.
func newTestServer(t *testing.T) (*Server, *fakeExecutor, *httptest.Server) {
	t.Helper()

	cfg := NewConfig()
	kube := fake.NewSimpleClientset(testPod())

	s := New(cfg, kube, nil, nil)
	executor := &fakeExecutor{}
	s.executor = executor
	s.SetReady(true)

	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(srv.Close)

	return s, executor, srv
}

func TestHealthEndpoints(t *testing.T) {
	s, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s.SetReady(false)
	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestVersionEndpoint(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/version")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["version"])
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, srv := newTestServer(t)

	// at least one instrumented request so the counter vec has a child
	warm, err := http.Get(srv.URL + "/v1/version")
	require.NoError(t, err)
	warm.Body.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "kubeterm_http_requests_total")
}

func TestIssueTicketEndpoint(t *testing.T) {
	s, _, srv := newTestServer(t)

	body := `{"action":"exec","namespace":"default","pod":"web-0","container":"app"}`
	resp, err := http.Post(srv.URL+"/v1/ws/tickets", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tr TicketResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	assert.Len(t, tr.Ticket, 64)
	assert.False(t, tr.ExpiresAt.IsZero())
	assert.Equal(t, 1, s.tickets.Len())
}

func TestIssueTicketRejectsBadRequests(t *testing.T) {
	_, _, srv := newTestServer(t)

	for _, body := range []string{
		`not json`,
		`{"action":"shell","namespace":"default","pod":"web-0"}`,
		`{"action":"exec","namespace":"","pod":""}`,
	} {
		resp, err := http.Post(srv.URL+"/v1/ws/tickets", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body: %s", body)
	}
}

func TestListContainersEndpoint(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/namespaces/default/pods/web-0/containers")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var infos []exec.ContainerInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "app", infos[0].Name)
	assert.True(t, infos[0].Ready)
	assert.False(t, infos[1].Ready)
}

func TestListContainersUnknownPod(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/namespaces/default/pods/ghost/containers")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, ErrCodeNotFound, errResp.Code)
	assert.NotEmpty(t, errResp.RequestID)
}

func issueTestTicket(t *testing.T, s *Server, action ticket.Action, container string) string {
	t.Helper()
	tkt, err := s.tickets.Issue(ticket.Request{
		Action:    action,
		Namespace: "default",
		Pod:       "web-0",
		Container: container,
	})
	require.NoError(t, err)
	return tkt.Value
}
