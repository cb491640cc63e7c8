// Package worker runs the background loops of the cmd binaries.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrAlreadyRunning = errors.New("worker is already running")

// Task is one pass of a periodic job.
type Task func(ctx context.Context, now time.Time) error

// Periodic runs a task immediately on Start and then every interval.
type Periodic struct {
	name     string
	interval time.Duration
	task     Task

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewPeriodic(name string, interval time.Duration, task Task) *Periodic {
	return &Periodic{name: name, interval: interval, task: task}
}

func (p *Periodic) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyRunning
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.runLoop(ctx, p.stopCh, p.doneCh)

	slog.InfoContext(ctx, "Worker started", "worker", p.name, "interval", p.interval)
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (p *Periodic) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Worker stopped", "worker", p.name)
	case <-ctx.Done():
		slog.WarnContext(ctx, "Worker stop timed out", "worker", p.name)
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *Periodic) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Periodic) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runOnce(ctx, time.Now())

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.runOnce(ctx, now)
		}
	}
}

func (p *Periodic) runOnce(ctx context.Context, now time.Time) {
	start := time.Now()
	if err := p.task(ctx, now); err != nil {
		slog.ErrorContext(ctx, "Worker pass failed", "worker", p.name, "error", err)
		return
	}
	slog.DebugContext(ctx, "Worker pass complete", "worker", p.name, "duration", time.Since(start))
}
