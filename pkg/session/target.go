package session

import (
	"fmt"
	"strings"
)

// Target identifies one remote shell destination. All three coordinates are
// required: a controller never guesses a container, resolution to a default
// container happens before a session is constructed.
type Target struct {
	Namespace string
	Pod       string
	Container string
}

// Validate checks that every coordinate is a non-empty string.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Namespace) == "" {
		return fmt.Errorf("target namespace is required")
	}
	if strings.TrimSpace(t.Pod) == "" {
		return fmt.Errorf("target pod is required")
	}
	if strings.TrimSpace(t.Container) == "" {
		return fmt.Errorf("target container is required")
	}
	return nil
}

// String renders the target as namespace/pod/container.
func (t Target) String() string {
	return fmt.Sprintf("%s/%s/%s", t.Namespace, t.Pod, t.Container)
}
