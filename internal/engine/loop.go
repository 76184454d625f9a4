package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"solsniper/internal/metrics"
)

// loop runs tick on a fixed interval until stopped. Ticks never overlap.
type loop struct {
	name     string
	interval time.Duration
	tick     func(context.Context) error
	logger   *zap.Logger
	metrics  *metrics.Registry

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun time.Time
	lastErr string
	ticks   uint64
}

// LoopStatus is the externally visible state of one loop.
type LoopStatus struct {
	Name     string    `json:"name"`
	Running  bool      `json:"running"`
	Interval string    `json:"interval"`
	Ticks    uint64    `json:"ticks"`
	LastRun  time.Time `json:"last_run,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
}

func (l *loop) start(parent context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
	return true
}

// stop cancels the loop and waits for the in-flight tick to return.
func (l *loop) stop() bool {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (l *loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	interval := l.interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	if l.logger != nil {
		l.logger.Info("loop started", zap.String("loop", l.name), zap.Duration("interval", interval))
	}
	for {
		l.runOnce(ctx)
		select {
		case <-ctx.Done():
			if l.logger != nil {
				l.logger.Info("loop stopped", zap.String("loop", l.name))
			}
			return
		case <-ticker.C:
		}
	}
}

func (l *loop) runOnce(ctx context.Context) {
	start := time.Now()
	err := l.safeTick(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	l.metrics.LoopTick(l.name, time.Since(start).Seconds(), err)
	l.mu.Lock()
	l.ticks++
	l.lastRun = start.UTC()
	l.lastErr = ""
	if err != nil {
		l.lastErr = err.Error()
	}
	l.mu.Unlock()
	if err != nil && l.logger != nil {
		l.logger.Warn("loop tick failed", zap.String("loop", l.name), zap.Error(err))
	}
}

// safeTick turns a panicking tick into an error so the loop keeps running.
func (l *loop) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loop %s panic: %v", l.name, r)
			if l.logger != nil {
				l.logger.Error("loop tick panicked", zap.String("loop", l.name), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			}
		}
	}()
	return l.tick(ctx)
}

func (l *loop) status() LoopStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LoopStatus{
		Name:     l.name,
		Running:  l.cancel != nil,
		Interval: l.interval.String(),
		Ticks:    l.ticks,
		LastRun:  l.lastRun,
		LastErr:  l.lastErr,
	}
}
