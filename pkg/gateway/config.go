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
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/kubeterm/kubeterm/pkg/defaults"
	"github.com/kubeterm/kubeterm/pkg/k8s/exec"
)

// Config holds gateway configuration.
type Config struct {
	// Server configuration
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`

	// Rate limiting configuration
	RateLimit      rate.Limit `yaml:"rateLimit"`      // requests per second
	RateLimitBurst int        `yaml:"rateLimitBurst"` // burst size

	// AllowedOrigins lists websocket Origin values accepted in addition to
	// same-host requests. Reloaded live when the config file changes.
	AllowedOrigins []string `yaml:"allowedOrigins"`

	// TicketTTL bounds how long an issued ticket stays redeemable.
	TicketTTL time.Duration `yaml:"ticketTTL"`

	// DefaultCommand is the shell started when an exec request names none.
	DefaultCommand string `yaml:"defaultCommand"`

	// AuditDBPath enables the sqlite audit trail when non-empty.
	AuditDBPath string `yaml:"auditDBPath"`

	// Timeouts
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// path the config was loaded from, retained for live reload
	path string
}

// NewConfig returns a new Config with sensible defaults.
// Use this when you want to customize config programmatically.
func NewConfig() *Config {
	return parseConfig()
}

// parseConfig returns sensible defaults with env overrides applied
func parseConfig() *Config {
	cfg := &Config{
		Address:         "",
		Port:            8080,
		RateLimit:       100, // 100 req/s
		RateLimitBurst:  200, // burst of 200
		TicketTTL:       defaults.TicketTTL,
		DefaultCommand:  exec.DefaultCommand,
		ReadTimeout:     defaults.ServerReadTimeout,
		WriteTimeout:    defaults.ServerWriteTimeout,
		IdleTimeout:     defaults.ServerIdleTimeout,
		ShutdownTimeout: defaults.ServerShutdownTimeout,
	}

	// Override with environment variables if set
	if portStr := os.Getenv("PORT"); portStr != "" {
		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err == nil {
			cfg.Port = port
		}
	}

	// Allow customization of shutdown timeout to match K8s eviction grace period
	if shutdownStr := os.Getenv("SHUTDOWN_TIMEOUT_SECONDS"); shutdownStr != "" {
		var seconds int
		if _, err := fmt.Sscanf(shutdownStr, "%d", &seconds); err == nil && seconds > 0 {
			cfg.ShutdownTimeout = time.Duration(seconds) * time.Second
		}
	}

	if origins := os.Getenv("KUBETERM_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitOrigins(origins)
	}

	if auditPath := os.Getenv("KUBETERM_AUDIT_DB"); auditPath != "" {
		cfg.AuditDBPath = auditPath
	}

	return cfg
}

// LoadConfig reads a yaml config file and applies env overrides on top.
// An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return parseConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := parseConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.path = path

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %s", cfg.Port, path)
	}
	if cfg.TicketTTL <= 0 {
		cfg.TicketTTL = defaults.TicketTTL
	}

	return cfg, nil
}

// reloadOrigins re-reads only the origin allowlist from the config file.
// Everything else requires a restart.
func (c *Config) reloadOrigins() ([]string, error) {
	if c.path == "" {
		return nil, fmt.Errorf("config was not loaded from a file")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", c.path, err)
	}

	var partial struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	}
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", c.path, err)
	}
	return partial.AllowedOrigins, nil
}

func splitOrigins(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
