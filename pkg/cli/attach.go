/*
Copyright © 2025 Kubeterm Authors
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kubeterm/kubeterm/pkg/picker"
	"github.com/kubeterm/kubeterm/pkg/session"
	"github.com/kubeterm/kubeterm/pkg/term"
)

// detachByte is ctrl+], the telnet-style escape that ends an attach.
const detachByte = 0x1d

func attachCmd() *cli.Command {
	return &cli.Command{
		Name:      "attach",
		Aliases:   []string{"exec"},
		Usage:     "Open an interactive shell in a pod container",
		ArgsUsage: "POD",
		Description: `Open an interactive terminal session in a pod container through the
kubetermd gateway.

The session is authorized with a one-time ticket requested from the gateway;
no long-lived credential ever appears in the websocket URL.

Inside a session:
  ctrl+]  detach and exit
  enter   reconnect (after a connection failure)

When the pod has more than one container and --container is not given, an
interactive picker is shown.

# Examples

Attach to the only container of a pod:
  kubeterm attach web-0

Attach to a named container with a specific shell:
  kubeterm attach web-0 -n prod -c sidecar --command /bin/bash`,
		Flags: []cli.Flag{
			gatewayFlag,
			namespaceFlag,
			containerFlag,
			&cli.StringFlag{
				Name:  "command",
				Usage: "remote command to run instead of the default shell",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			pod := cmd.Args().First()
			if pod == "" {
				return fmt.Errorf("pod name is required")
			}
			namespace := cmd.String("namespace")

			var opts []session.GatewayOption
			if command := cmd.String("command"); command != "" {
				opts = append(opts, session.WithCommand(command))
			}
			gw, err := session.NewGateway(cmd.String("gateway"), opts...)
			if err != nil {
				return err
			}

			container := cmd.String("container")
			if container == "" {
				infos, err := gw.ListContainers(ctx, namespace, pod)
				if err != nil {
					return fmt.Errorf("failed to list containers: %w", err)
				}
				container, err = picker.Choose(pod, infos)
				if errors.Is(err, picker.ErrAborted) {
					return nil
				}
				if err != nil {
					return err
				}
			}

			return runAttach(ctx, gw, session.Target{
				Namespace: namespace,
				Pod:       pod,
				Container: container,
			})
		},
	}
}

// runAttach mounts a session panel on the controlling terminal and pumps
// stdin into it until the user detaches or the context ends.
func runAttach(ctx context.Context, gw *session.Gateway, target session.Target) error {
	var current *term.TTY

	factory := func() (term.Surface, error) {
		tty, err := term.NewTTY(os.Stdin, os.Stdout)
		if err != nil {
			return nil, err
		}
		current = tty
		return tty, nil
	}

	resize := func(apply func(rows, cols int)) func() {
		watcher := term.WatchResize(func() (int, int, bool) {
			if current == nil {
				return 0, 0, false
			}
			rows, cols := current.RefreshSize()
			return rows, cols, true
		}, apply)
		return watcher.Stop
	}

	panel, err := session.NewPanel(target, gw, gw, factory, resize)
	if err != nil {
		return err
	}
	defer panel.Dispose()

	if err := panel.Start(ctx); err != nil && panel.Controller() == nil {
		// Construction failed before a controller existed; connect failures
		// are already rendered as banners and handled interactively.
		return err
	}

	pumpDone := make(chan error, 1)
	go func() { pumpDone <- pumpInput(ctx, panel) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-pumpDone:
		return err
	}
}

// pumpInput forwards stdin to the session. ctrl+] detaches; after a failure,
// enter triggers a reconnect instead of being sent to the dead transport.
func pumpInput(ctx context.Context, panel *session.Panel) error {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil
		}
		data := buf[:n]

		if bytes.IndexByte(data, detachByte) >= 0 {
			return nil
		}

		ctrl := panel.Controller()
		if ctrl == nil {
			continue
		}

		if ctrl.State() == session.StateErrored {
			if bytes.ContainsAny(data, "\r\n") {
				_ = ctrl.Reconnect(ctx)
			}
			continue
		}

		ctrl.SendInput(data)
	}
}
