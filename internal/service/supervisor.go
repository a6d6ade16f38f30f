package service

import (
	"context"
	"sync"
)

// buildSupervisor enforces latest-request-wins for region builds: each
// begin cancels the context handed out by the previous one, so at most
// one build per dataset makes progress.
type buildSupervisor struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// begin derives a cancellable context from parent and cancels the
// previous in-flight build. The returned done func releases this
// build's slot; it is a no-op if a newer build already took over.
func (s *buildSupervisor) begin(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	done := func() {
		s.mu.Lock()
		if s.cancel != nil {
			// Only clear our own slot; a newer build may own it now.
			select {
			case <-ctx.Done():
			default:
				s.cancel = nil
			}
		}
		s.mu.Unlock()
		cancel()
	}
	return ctx, done
}
