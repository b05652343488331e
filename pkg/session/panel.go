package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kubeterm/kubeterm/pkg/term"
)

// SurfaceFactory builds a fresh terminal surface for one container session.
// A new surface per container keeps scroll-back and cursor state from
// leaking between targets.
type SurfaceFactory func() (term.Surface, error)

// ResizeSource attaches geometry-change notifications for the lifetime of a
// panel. apply is called with the new grid; the returned stop function
// detaches the listener. A nil ResizeSource disables resize handling.
type ResizeSource func(apply func(rows, cols int)) (stop func())

// Panel binds exactly one Controller to exactly one Surface and owns their
// shared lifecycle: creation on Start, full teardown and re-creation on
// container switch, deterministic ordered release on Dispose.
type Panel struct {
	tickets    TicketIssuer
	dialer     Dialer
	newSurface SurfaceFactory
	resize     ResizeSource

	mu         sync.Mutex
	target     Target
	surface    term.Surface
	ctrl       *Controller
	stopResize func()
	started    bool
	disposed   bool
}

// NewPanel configures a panel for the given target. Nothing is allocated
// until Start.
func NewPanel(target Target, tickets TicketIssuer, dialer Dialer, newSurface SurfaceFactory, resize ResizeSource) (*Panel, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if newSurface == nil {
		return nil, fmt.Errorf("surface factory is required")
	}
	return &Panel{
		target:     target,
		tickets:    tickets,
		dialer:     dialer,
		newSurface: newSurface,
		resize:     resize,
	}, nil
}

// Start creates the surface and controller, attaches the resize listener,
// and connects. Connect failures are rendered on the surface and returned.
func (p *Panel) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return fmt.Errorf("panel disposed")
	}
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("panel already started")
	}

	surface, err := p.newSurface()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("failed to create terminal surface: %w", err)
	}

	ctrl, err := NewController(p.target, surface, p.tickets, p.dialer)
	if err != nil {
		_ = surface.Dispose()
		p.mu.Unlock()
		return err
	}

	p.surface = surface
	p.ctrl = ctrl
	p.started = true

	if p.resize != nil {
		p.stopResize = p.resize(func(rows, cols int) {
			p.mu.Lock()
			s := p.surface
			p.mu.Unlock()
			if s != nil {
				s.Fit(rows, cols)
			}
		})
	}
	p.mu.Unlock()

	return ctrl.Connect(ctx)
}

// Controller returns the active session controller, or nil before Start.
func (p *Panel) Controller() *Controller {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctrl
}

// Target returns the panel's current target.
func (p *Panel) Target() Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// SwitchContainer tears the current session fully down, then builds a fresh
// surface and controller for the new container and connects. The old
// session's disconnect strictly precedes any connect for the new one.
func (p *Panel) SwitchContainer(ctx context.Context, container string) error {
	p.mu.Lock()
	if !p.started || p.disposed {
		p.mu.Unlock()
		return fmt.Errorf("panel is not running")
	}
	if container == p.target.Container {
		p.mu.Unlock()
		return nil
	}

	oldCtrl := p.ctrl
	oldSurface := p.surface
	p.ctrl = nil
	p.surface = nil
	p.mu.Unlock()

	// Old session first: disconnect, then dispose its surface. Only then is
	// anything constructed for the new container.
	oldCtrl.Dispose()
	disposeErr := oldSurface.Dispose()

	newTarget := Target{Namespace: p.target.Namespace, Pod: p.target.Pod, Container: container}
	if err := newTarget.Validate(); err != nil {
		return errors.Join(err, disposeErr)
	}

	surface, err := p.newSurface()
	if err != nil {
		return errors.Join(fmt.Errorf("failed to create terminal surface: %w", err), disposeErr)
	}

	ctrl, err := NewController(newTarget, surface, p.tickets, p.dialer)
	if err != nil {
		_ = surface.Dispose()
		return errors.Join(err, disposeErr)
	}

	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		ctrl.Dispose()
		_ = surface.Dispose()
		return fmt.Errorf("panel disposed during container switch")
	}
	p.target = newTarget
	p.surface = surface
	p.ctrl = ctrl
	p.mu.Unlock()

	connectErr := ctrl.Connect(ctx)
	return errors.Join(connectErr, disposeErr)
}

// Dispose releases everything the panel owns in a fixed order: resize
// listener, transport, surface. Every step runs even when an earlier one
// fails; the failures are joined into the returned error.
func (p *Panel) Dispose() error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil
	}
	p.disposed = true
	stopResize := p.stopResize
	ctrl := p.ctrl
	surface := p.surface
	p.stopResize = nil
	p.ctrl = nil
	p.surface = nil
	p.mu.Unlock()

	var errs []error

	if stopResize != nil {
		stopResize()
	}
	if ctrl != nil {
		ctrl.Dispose()
	}
	if surface != nil {
		if err := surface.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("surface dispose: %w", err))
		}
	}

	return errors.Join(errs...)
}
