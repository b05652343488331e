package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeterm/kubeterm/pkg/ticket"
)

func authRequest(target string, origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.Host = "gateway.local:8443"
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	return errResp
}

func TestAuthorizeSocketHappyPath(t *testing.T) {
	s, _, _ := newTestServer(t)
	value := issueTestTicket(t, s, ticket.ActionExec, "app")

	w := httptest.NewRecorder()
	r := authRequest("/v1/namespaces/default/pods/web-0/exec?container=app&ticket="+value, "")

	tkt, ok := s.authorizeSocket(w, r, ticket.ActionExec, "default", "web-0", "app")
	require.True(t, ok)
	assert.Equal(t, ticket.ActionExec, tkt.Action)
}

func TestAuthorizeSocketRejectsBearerParams(t *testing.T) {
	s, _, _ := newTestServer(t)
	value := issueTestTicket(t, s, ticket.ActionExec, "app")

	for _, param := range []string{"token", "access_token", "id_token", "authorization", "bearer"} {
		w := httptest.NewRecorder()
		r := authRequest("/v1/namespaces/default/pods/web-0/exec?container=app&ticket="+value+"&"+param+"=secret", "")

		_, ok := s.authorizeSocket(w, r, ticket.ActionExec, "default", "web-0", "app")
		require.False(t, ok, "param %s should be rejected", param)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrCodeInvalidRequest, decodeError(t, w).Code)
	}

	// the rejections must not have consumed the ticket
	_, err := s.tickets.Consume(value)
	assert.NoError(t, err)
}

func TestAuthorizeSocketSingleUse(t *testing.T) {
	s, _, _ := newTestServer(t)
	value := issueTestTicket(t, s, ticket.ActionExec, "app")
	target := "/v1/namespaces/default/pods/web-0/exec?container=app&ticket=" + value

	w := httptest.NewRecorder()
	_, ok := s.authorizeSocket(w, authRequest(target, ""), ticket.ActionExec, "default", "web-0", "app")
	require.True(t, ok)

	w = httptest.NewRecorder()
	_, ok = s.authorizeSocket(w, authRequest(target, ""), ticket.ActionExec, "default", "web-0", "app")
	require.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrCodeTicketRejected, decodeError(t, w).Code)
}

func TestAuthorizeSocketMissingTicket(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	_, ok := s.authorizeSocket(w, authRequest("/v1/namespaces/default/pods/web-0/exec?container=app", ""),
		ticket.ActionExec, "default", "web-0", "app")

	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthorizeSocketScopeMismatch(t *testing.T) {
	s, _, _ := newTestServer(t)

	// logs ticket cannot open an exec socket
	value := issueTestTicket(t, s, ticket.ActionLogs, "app")
	w := httptest.NewRecorder()
	_, ok := s.authorizeSocket(w,
		authRequest("/v1/namespaces/default/pods/web-0/exec?container=app&ticket="+value, ""),
		ticket.ActionExec, "default", "web-0", "app")
	require.False(t, ok)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// exec ticket scoped to one container cannot reach another
	value = issueTestTicket(t, s, ticket.ActionExec, "app")
	w = httptest.NewRecorder()
	_, ok = s.authorizeSocket(w,
		authRequest("/v1/namespaces/default/pods/web-0/exec?container=sidecar&ticket="+value, ""),
		ticket.ActionExec, "default", "web-0", "sidecar")
	require.False(t, ok)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCheckOrigin(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.setOrigins([]string{"https://dashboard.example.com"})

	// non-browser clients send no Origin
	assert.True(t, s.checkOrigin(authRequest("/", "")))

	// same host is always fine
	assert.True(t, s.checkOrigin(authRequest("/", "https://gateway.local:8443")))

	// allowlisted origin
	assert.True(t, s.checkOrigin(authRequest("/", "https://dashboard.example.com")))

	// anything else is rejected
	assert.False(t, s.checkOrigin(authRequest("/", "https://evil.example.com")))
	assert.False(t, s.checkOrigin(authRequest("/", "::bad::")))
}

func TestCheckOriginFollowsReload(t *testing.T) {
	s, _, _ := newTestServer(t)

	r := authRequest("/", "https://new.example.com")
	assert.False(t, s.checkOrigin(r))

	s.setOrigins([]string{"https://new.example.com"})
	assert.True(t, s.checkOrigin(r))
}
