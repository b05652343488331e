/*
Copyright © 2025 Kubeterm Authors
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kubeterm/kubeterm/pkg/session"
)

func logsCmd() *cli.Command {
	return &cli.Command{
		Name:      "logs",
		Usage:     "Stream container logs through the gateway",
		ArgsUsage: "POD",
		Description: `Stream logs from a pod container to stdout. Like attach, the stream is
authorized by a one-time ticket; an empty --container resolves to the pod's
first container on the gateway side.

# Examples

Tail the last 100 lines and follow:
  kubeterm logs web-0 --follow

Dump recent lines from a named container:
  kubeterm logs web-0 -c sidecar --tail 500`,
		Flags: []cli.Flag{
			gatewayFlag,
			namespaceFlag,
			containerFlag,
			&cli.BoolFlag{
				Name:    "follow",
				Aliases: []string{"f"},
				Usage:   "keep the stream open and follow new lines",
			},
			&cli.Int64Flag{
				Name:  "tail",
				Usage: "number of recent lines to include (0 for all)",
				Value: 100,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			pod := cmd.Args().First()
			if pod == "" {
				return fmt.Errorf("pod name is required")
			}

			gw, err := session.NewGateway(cmd.String("gateway"))
			if err != nil {
				return err
			}

			err = gw.StreamLogs(ctx,
				cmd.String("namespace"), pod, cmd.String("container"),
				cmd.Bool("follow"), cmd.Int64("tail"), os.Stdout)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
