/*
Copyright © 2025 Kubeterm Authors
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/kubeterm/kubeterm/pkg/logging"
	ver "github.com/kubeterm/kubeterm/pkg/version"
)

const name = "kubeterm"

var (
	gatewayFlag = &cli.StringFlag{
		Name:    "gateway",
		Usage:   "kubetermd base URL",
		Sources: cli.EnvVars("KUBETERM_GATEWAY"),
		Value:   "http://localhost:8080",
	}

	namespaceFlag = &cli.StringFlag{
		Name:    "namespace",
		Aliases: []string{"n"},
		Usage:   "Kubernetes namespace of the pod",
		Sources: cli.EnvVars("KUBETERM_NAMESPACE"),
		Value:   "default",
	}

	containerFlag = &cli.StringFlag{
		Name:    "container",
		Aliases: []string{"c"},
		Usage:   "container name (interactive picker when omitted and ambiguous)",
	}

	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "output file path (default: stdout)",
	}

	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "output format (json, yaml, table)",
		Value: "json",
	}

	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "log level (debug, info, warn, error)",
		Sources: cli.EnvVars("LOG_LEVEL"),
		Value:   "warn",
	}
)

// RootCommand assembles the kubeterm CLI.
func RootCommand() *cli.Command {
	info := ver.Get()
	return &cli.Command{
		Name:                  name,
		Usage:                 "interactive pod terminals through a kubetermd gateway",
		Version:               info.Version,
		EnableShellCompletion: true,
		Flags:                 []cli.Flag{logLevelFlag},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logging.SetDefaultStructuredLoggerWithLevel(name, info.Version, cmd.String("log-level"))
			slog.Debug("starting",
				"name", name,
				"version", info.Version,
				"commit", info.Commit,
				"date", info.Date)
			return ctx, nil
		},
		Commands: []*cli.Command{
			attachCmd(),
			logsCmd(),
			versionCmd(),
		},
	}
}

// Run executes the CLI with the given arguments.
func Run(ctx context.Context, args []string) error {
	return RootCommand().Run(ctx, args)
}
