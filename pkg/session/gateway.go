package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kubeterm/kubeterm/pkg/defaults"
	"github.com/kubeterm/kubeterm/pkg/k8s/exec"
	"github.com/kubeterm/kubeterm/pkg/ticket"
)

// Gateway talks to a kubetermd instance: it issues tickets over HTTP and
// dials the websocket exec endpoint. It implements both TicketIssuer and
// Dialer for Controllers.
type Gateway struct {
	base    *url.URL
	http    *http.Client
	ws      *websocket.Dialer
	command string
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithCommand overrides the remote shell command requested for exec sessions.
func WithCommand(command string) GatewayOption {
	return func(g *Gateway) { g.command = command }
}

// WithHTTPClient overrides the HTTP client used for ticket requests.
func WithHTTPClient(hc *http.Client) GatewayOption {
	return func(g *Gateway) { g.http = hc }
}

// NewGateway parses the gateway base URL (http or https scheme).
func NewGateway(rawURL string, opts ...GatewayOption) (*Gateway, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL %q: %w", rawURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gateway URL must use http or https scheme, got %q", base.Scheme)
	}

	g := &Gateway{
		base: base,
		http: &http.Client{Timeout: defaults.TicketRequestTimeout},
		ws: &websocket.Dialer{
			HandshakeTimeout: defaults.HTTPClientTimeout,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type ticketResponse struct {
	Ticket    string    `json:"ticket"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issue requests a one-time exec ticket for the target. This is the only
// request that carries ambient credentials; the ticket that comes back is
// all the websocket dial will ever see.
func (g *Gateway) Issue(ctx context.Context, target Target) (string, error) {
	body, err := json.Marshal(ticket.Request{
		Action:    ticket.ActionExec,
		Namespace: target.Namespace,
		Pod:       target.Pod,
		Container: target.Container,
	})
	if err != nil {
		return "", err
	}

	endpoint := g.base.JoinPath("/v1/ws/tickets")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ticket request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ticket request rejected: %s: %s", resp.Status, payload)
	}

	var tr ticketResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("invalid ticket response: %w", err)
	}
	if tr.Ticket == "" {
		return "", fmt.Errorf("ticket response carried no ticket")
	}
	return tr.Ticket, nil
}

// Dial opens the websocket exec transport, authorized by the ticket alone.
func (g *Gateway) Dial(ctx context.Context, target Target, ticketValue string) (Transport, error) {
	conn, resp, err := g.ws.DialContext(ctx, g.ExecSocketURL(target, ticketValue), nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return newWSTransport(conn), nil
}

// ExecSocketURL builds the ws(s) URL for a target. The query string carries
// the container, the optional command, and the ticket; no other credential is
// permitted in the URI.
func (g *Gateway) ExecSocketURL(target Target, ticketValue string) string {
	u := g.base.JoinPath(
		"/v1/namespaces", target.Namespace,
		"pods", target.Pod,
		"exec",
	)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	q := url.Values{}
	q.Set("container", target.Container)
	if g.command != "" {
		q.Set("command", g.command)
	}
	q.Set("ticket", ticketValue)
	u.RawQuery = q.Encode()

	return u.String()
}

// ListContainers fetches the pod's containers from the gateway, used for
// interactive container selection.
func (g *Gateway) ListContainers(ctx context.Context, namespace, pod string) ([]exec.ContainerInfo, error) {
	endpoint := g.base.JoinPath("/v1/namespaces", namespace, "pods", pod, "containers")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("container listing failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("container listing rejected: %s", resp.Status)
	}

	var infos []exec.ContainerInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return nil, fmt.Errorf("invalid container listing: %w", err)
	}
	return infos, nil
}

// StreamLogs issues a logs ticket, dials the log socket, and copies text
// frames to out until the stream ends or ctx is canceled.
func (g *Gateway) StreamLogs(ctx context.Context, namespace, pod, container string, follow bool, tailLines int64, out io.Writer) error {
	body, err := json.Marshal(ticket.Request{
		Action:    ticket.ActionLogs,
		Namespace: namespace,
		Pod:       pod,
		Container: container,
	})
	if err != nil {
		return err
	}

	endpoint := g.base.JoinPath("/v1/ws/tickets")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("ticket request failed: %w", err)
	}
	var tr ticketResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&tr)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ticket request rejected: %s", resp.Status)
	}
	if decodeErr != nil {
		return fmt.Errorf("invalid ticket response: %w", decodeErr)
	}

	u := g.base.JoinPath("/v1/namespaces", namespace, "pods", pod, "logs")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := url.Values{}
	q.Set("container", container)
	q.Set("follow", fmt.Sprintf("%t", follow))
	if tailLines > 0 {
		q.Set("tailLines", fmt.Sprintf("%d", tailLines))
	}
	q.Set("ticket", tr.Ticket)
	u.RawQuery = q.Encode()

	conn, dialResp, err := g.ws.DialContext(ctx, u.String(), nil)
	if dialResp != nil && dialResp.Body != nil {
		defer dialResp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
	}
}
