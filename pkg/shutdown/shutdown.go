package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

func WithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Hooks collects cleanup functions and runs them in reverse registration
// order, so resources opened last are released first.
type Hooks struct {
	mu    sync.Mutex
	names []string
	fns   []func(context.Context) error
}

func (h *Hooks) Add(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.names = append(h.names, name)
	h.fns = append(h.fns, fn)
}

// AddCloser registers a plain Close method such as (*sql.DB).Close.
func (h *Hooks) AddCloser(name string, closeFn func() error) {
	h.Add(name, func(context.Context) error { return closeFn() })
}

// Run executes every hook even if earlier ones fail and joins the errors.
// Hooks registered after Run starts are ignored.
func (h *Hooks) Run(ctx context.Context) error {
	h.mu.Lock()
	names := append([]string(nil), h.names...)
	fns := append([]func(context.Context) error(nil), h.fns...)
	h.names, h.fns = nil, nil
	h.mu.Unlock()

	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", names[i], err))
		}
	}
	return errors.Join(errs...)
}
