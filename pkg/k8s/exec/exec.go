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

package exec

import (
	"context"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
)

// DefaultCommand is the shell started when the client does not name one.
const DefaultCommand = "/bin/sh"

// Options describes one exec target.
type Options struct {
	Namespace string
	Pod       string
	Container string
	Command   []string
	TTY       bool
}

// Streams carries the stdio endpoints for an exec session. Stderr may be nil
// when TTY is set, since the kubelet merges stderr into stdout for TTY execs.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Executor runs remote commands in pod containers. The interface exists so
// the gateway handler can be tested without an API server.
type Executor interface {
	Stream(ctx context.Context, opts Options, streams Streams, sizes remotecommand.TerminalSizeQueue) error
}

// SPDYExecutor implements Executor over the Kubernetes exec subresource.
type SPDYExecutor struct {
	client kubernetes.Interface
	config *rest.Config
}

// NewSPDYExecutor returns an Executor bound to the given client and config.
func NewSPDYExecutor(client kubernetes.Interface, config *rest.Config) *SPDYExecutor {
	return &SPDYExecutor{client: client, config: config}
}

// Stream opens the exec stream and pipes it until the remote process exits,
// the context is canceled, or a stream side fails.
func (e *SPDYExecutor) Stream(ctx context.Context, opts Options, streams Streams, sizes remotecommand.TerminalSizeQueue) error {
	command := opts.Command
	if len(command) == 0 {
		command = []string{DefaultCommand}
	}

	req := e.client.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(opts.Pod).
		Namespace(opts.Namespace).
		SubResource("exec")

	req.VersionedParams(&corev1.PodExecOptions{
		Container: opts.Container,
		Command:   command,
		Stdin:     streams.Stdin != nil,
		Stdout:    streams.Stdout != nil,
		Stderr:    streams.Stderr != nil && !opts.TTY,
		TTY:       opts.TTY,
	}, scheme.ParameterCodec)

	exec, err := remotecommand.NewSPDYExecutor(e.config, "POST", req.URL())
	if err != nil {
		return fmt.Errorf("failed to create SPDY executor: %w", err)
	}

	streamOpts := remotecommand.StreamOptions{
		Stdin:             streams.Stdin,
		Stdout:            streams.Stdout,
		Tty:               opts.TTY,
		TerminalSizeQueue: sizes,
	}
	if !opts.TTY {
		streamOpts.Stderr = streams.Stderr
	}

	if err := exec.StreamWithContext(ctx, streamOpts); err != nil {
		return fmt.Errorf("exec stream failed: %w", err)
	}
	return nil
}
