// Package cli implements the kubeterm command-line client.
//
// # Overview
//
// kubeterm attaches interactive terminals to pod containers through a
// kubetermd gateway. The gateway holds the cluster credentials; the client
// only ever handles one-time connection tickets.
//
// # Commands
//
// attach - Open an interactive shell in a pod container:
//
//	kubeterm attach POD [--namespace NS] [--container NAME] [--command /bin/bash]
//
// When the pod has several containers and none is named, an interactive
// picker is shown. Inside a session, ctrl+] detaches; after a connection
// failure, enter reconnects.
//
// logs - Stream container logs:
//
//	kubeterm logs POD [--namespace NS] [--container NAME] [--follow] [--tail N]
//
// version - Print client version information:
//
//	kubeterm version [--format json|yaml|table]
//
// # Global Flags
//
//	--gateway     kubetermd base URL (env: KUBETERM_GATEWAY)
//	--log-level   logging verbosity (debug, info, warn, error)
//
// # Exit Codes
//
//	0  Success (including user-initiated detach)
//	1  General error (invalid arguments, gateway unreachable)
package cli
