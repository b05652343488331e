package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kubeterm/kubeterm/pkg/gateway"
	"github.com/kubeterm/kubeterm/pkg/k8s/client"
	"github.com/kubeterm/kubeterm/pkg/logging"
	ver "github.com/kubeterm/kubeterm/pkg/version"
)

const name = "kubetermd"

func main() {
	cmd := &cli.Command{
		Name:    name,
		Usage:   "kubeterm gateway daemon",
		Version: ver.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "config file path",
				Sources: cli.EnvVars("KUBETERM_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "kubeconfig",
				Usage:   "kubeconfig file path (default: in-cluster or ~/.kube/config)",
				Sources: cli.EnvVars("KUBECONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
				Value:   "info",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logging.SetDefaultStructuredLoggerWithLevel(name, ver.Version, cmd.String("log-level"))

			cfg, err := gateway.LoadConfig(cmd.String("config"))
			if err != nil {
				return err
			}

			kube, restConfig, err := client.BuildKubeClient(cmd.String("kubeconfig"))
			if err != nil {
				return err
			}

			return gateway.RunWithConfig(cfg, kube, restConfig)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
