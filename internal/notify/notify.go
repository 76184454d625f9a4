package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Kind string

const (
	KindTargetAdmitted Kind = "target_admitted"
	KindPositionOpened Kind = "position_opened"
	KindPositionFailed Kind = "position_failed"
	KindPositionClosed Kind = "position_closed"
	KindSellFailed     Kind = "sell_failed"
	KindBatchSummary   Kind = "batch_summary"
	KindVolumeTrade    Kind = "volume_trade"
)

// Event is one operator-facing notification.
type Event struct {
	Kind    Kind              `json:"kind"`
	Subject string            `json:"subject,omitempty"`
	Symbol  string            `json:"symbol,omitempty"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	At      time.Time         `json:"at"`
}

// Level maps the event to a log level name.
func (e Event) Level() string {
	switch e.Kind {
	case KindPositionFailed, KindSellFailed:
		return "warn"
	default:
		return "info"
	}
}

// Text renders the event as a short plain-text message.
func (e Event) Text() string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(strings.ReplaceAll(string(e.Kind), "_", " ")))
	if e.Symbol != "" {
		fmt.Fprintf(&b, " %s", e.Symbol)
	}
	if e.Subject != "" {
		fmt.Fprintf(&b, " (%s)", e.Subject)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, "\n%s", e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, e.Fields[k])
	}
	return b.String()
}

// Notifier delivers events. Implementations must not block for long; callers
// pass a bounded context.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Log writes events to a zap logger.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Notify(_ context.Context, ev Event) error {
	if l.Logger == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("kind", string(ev.Kind)),
		zap.String("subject", ev.Subject),
		zap.String("symbol", ev.Symbol),
	}
	for k, v := range ev.Fields {
		fields = append(fields, zap.String(k, v))
	}
	if ev.Level() == "warn" {
		l.Logger.Warn(ev.Message, fields...)
	} else {
		l.Logger.Info(ev.Message, fields...)
	}
	return nil
}

// Multi sends every event to each notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send delivers ev on a detached, bounded context so a slow channel cannot
// hold the caller. Failures are logged at debug.
func Send(n Notifier, logger *zap.Logger, ev Event) {
	if n == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := n.Notify(ctx, ev); err != nil && logger != nil {
		logger.Debug("notification failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}
