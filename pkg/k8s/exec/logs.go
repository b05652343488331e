package exec

import (
	"context"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"
)

// LogOptions controls a pod log stream.
type LogOptions struct {
	Namespace  string
	Pod        string
	Container  string
	Follow     bool
	Timestamps bool
	TailLines  int64
}

// LogStream opens a log stream for the given pod container. The caller owns
// the returned reader and must close it.
func LogStream(ctx context.Context, client kubernetes.Interface, opts LogOptions) (io.ReadCloser, error) {
	podLogOptions := &corev1.PodLogOptions{
		Container:  opts.Container,
		Follow:     opts.Follow,
		Timestamps: opts.Timestamps,
	}
	if opts.TailLines > 0 {
		podLogOptions.TailLines = ptr.To(opts.TailLines)
	}

	req := client.CoreV1().Pods(opts.Namespace).GetLogs(opts.Pod, podLogOptions)
	stream, err := req.Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open log stream for %s/%s: %w", opts.Namespace, opts.Pod, err)
	}
	return stream, nil
}
