package capture

import (
	"context"
	"sync"
	"time"
)

// Source delivers capture payloads. Fetch returns (nil, nil) while no capture
// is available yet.
type Source interface {
	Fetch(ctx context.Context) (*Payload, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (*Payload, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) (*Payload, error) { return f(ctx) }

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultPollTimeout  = 30 * time.Second
)

// Poller repeatedly asks a Source for a capture payload until one arrives,
// the absolute timeout elapses, or the poll is cancelled. Cancellation is
// idempotent and leaves no dangling timer.
type Poller struct {
	source   Source
	interval time.Duration
	timeout  time.Duration

	cancelOnce sync.Once
	cancelled  chan struct{}
}

// NewPoller creates a poller. Zero interval or timeout selects the defaults.
func NewPoller(source Source, interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	return &Poller{
		source:    source,
		interval:  interval,
		timeout:   timeout,
		cancelled: make(chan struct{}),
	}
}

// Cancel stops an in-flight Wait. Calling Cancel more than once is a no-op.
func (p *Poller) Cancel() {
	p.cancelOnce.Do(func() { close(p.cancelled) })
}

// Wait polls the source until a payload arrives. It returns ErrTimeout after
// the absolute timeout, ErrCancelled after Cancel, or the context's error if
// the context ends first.
func (p *Poller) Wait(ctx context.Context) (*Payload, error) {
	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.cancelled:
			return nil, ErrCancelled
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrTimeout
		case <-ticker.C:
		}

		payload, err := p.source.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			return payload, nil
		}
	}
}
