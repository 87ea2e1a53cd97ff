package proxy

import (
	"errors"
	"fmt"

	"github.com/danmaku-cache/danmaku-cache/internal/provider"
)

// ModeRegistration captures a provider mode and the handler serving it.
type ModeRegistration struct {
	Mode    provider.Mode
	Handler SourceHandler
}

// ErrModeHandlerExists indicates a handler has already been registered for the mode.
var ErrModeHandlerExists = errors.New("mode handler already registered")

// Validate ensures both mode and handler are present before registration.
func (r ModeRegistration) Validate() error {
	if r.Mode == "" {
		return errors.New("provider mode required")
	}
	if r.Handler == nil {
		return errors.New("mode handler required")
	}
	return nil
}

// Register binds a validated handler to its provider mode.
func (f *Forwarder) Register(reg ModeRegistration) error {
	if err := reg.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.handlers[reg.Mode]; exists {
		return fmt.Errorf("%w: %s", ErrModeHandlerExists, reg.Mode)
	}
	f.handlers[reg.Mode] = reg.Handler
	return nil
}

// MustRegister panics when registration fails; suitable for startup wiring.
func (f *Forwarder) MustRegister(reg ModeRegistration) {
	if err := f.Register(reg); err != nil {
		panic(err)
	}
}
