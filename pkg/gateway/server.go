// Copyright (c) 2025, Kubeterm Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/kubeterm/kubeterm/pkg/audit"
	"github.com/kubeterm/kubeterm/pkg/k8s/exec"
	"github.com/kubeterm/kubeterm/pkg/ticket"
	"github.com/kubeterm/kubeterm/pkg/version"
)

// Server is the kubetermd gateway: ticket issuing plus websocket bridging to
// the Kubernetes exec and log APIs.
type Server struct {
	config      *Config
	httpServer  *http.Server
	rateLimiter *rate.Limiter

	kube     kubernetes.Interface
	executor exec.Executor
	tickets  *ticket.Store
	audit    *audit.Recorder

	mu      sync.RWMutex
	ready   bool
	origins map[string]struct{}
}

// New creates a gateway server. The audit recorder may be nil, in which case
// the audit trail is disabled.
func New(config *Config, kube kubernetes.Interface, restConfig *rest.Config, recorder *audit.Recorder) *Server {
	if config == nil {
		config = NewConfig()
	}

	s := &Server{
		config:      config,
		rateLimiter: rate.NewLimiter(config.RateLimit, config.RateLimitBurst),
		kube:        kube,
		executor:    exec.NewSPDYExecutor(kube, restConfig),
		tickets:     ticket.NewStore(ticket.WithTTL(config.TicketTTL)),
		audit:       recorder,
	}
	s.setOrigins(config.AllowedOrigins)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Address, config.Port),
		Handler:           s.routes(),
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadTimeout,
		IdleTimeout:       config.IdleTimeout,
		// no WriteTimeout: websocket sessions are long-lived by nature
	}

	return s
}

// SetReady marks the server as ready to serve traffic.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *Server) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// setOrigins replaces the websocket origin allowlist.
func (s *Server) setOrigins(origins []string) {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		set[o] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.origins = set
}

func (s *Server) originAllowed(origin string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.origins[origin]
	return ok
}

// Start runs the HTTP listener until ctx is canceled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	s.SetReady(true)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down gateway")
	return s.httpServer.Shutdown(shutdownCtx)
}

// watchConfig reloads the origin allowlist when the config file changes.
// Editors replace files rather than writing in place, so the watch is on the
// directory and filtered to the config path.
func (s *Server) watchConfig(ctx context.Context) error {
	if s.config.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.config.path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	target := filepath.Clean(s.config.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			origins, err := s.config.reloadOrigins()
			if err != nil {
				slog.Warn("config reload failed, keeping previous origins",
					"path", s.config.path,
					"error", err)
				continue
			}
			s.setOrigins(origins)
			slog.Info("reloaded websocket origin allowlist",
				"path", s.config.path,
				"origins", len(origins))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

// RunWithConfig starts the gateway with the given configuration and blocks
// until SIGINT or SIGTERM.
func RunWithConfig(config *Config, kube kubernetes.Interface, restConfig *rest.Config) error {
	info := version.Get()
	slog.Info("starting gateway",
		slog.String("version", info.Version),
		slog.String("commit", info.Commit),
		slog.String("date", info.Date))

	var recorder *audit.Recorder
	if config.AuditDBPath != "" {
		var err error
		recorder, err = audit.Open(context.Background(), config.AuditDBPath)
		if err != nil {
			return fmt.Errorf("open audit trail: %w", err)
		}
		defer recorder.Close()
	}

	server := New(config, kube, restConfig, recorder)

	slog.Info("gateway config",
		slog.String("address", server.httpServer.Addr),
		slog.Any("rateLimit", config.RateLimit),
		slog.Int("rateLimitBurst", config.RateLimitBurst),
		slog.Duration("ticketTTL", config.TicketTTL),
		slog.Int("allowedOrigins", len(config.AllowedOrigins)),
		slog.Bool("auditEnabled", recorder != nil),
		slog.Duration("readTimeout", config.ReadTimeout),
		slog.Duration("idleTimeout", config.IdleTimeout),
		slog.Duration("shutdownTimeout", config.ShutdownTimeout),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		return server.watchConfig(gctx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("gateway error: %w", err)
	}

	slog.Info("gateway stopped gracefully")
	return nil
}
