package payments

import (
	"context"
	"fmt"
	"log/slog"
)

// EventSink receives payment lifecycle events. The embedding application
// provides the implementation; the payment flows never depend on what it
// does.
type EventSink interface {
	// PaymentPaid is invoked after a payment settles or confirms.
	PaymentPaid(ctx context.Context, locator string, answer map[string]any) error

	// PaymentException is invoked when PaymentPaid failed; detail carries
	// the failure description.
	PaymentException(ctx context.Context, locator string, answer map[string]any, detail string) error
}

// Notifier delivers events to the sink without ever letting a sink failure
// break payment processing: a failing PaymentPaid falls back to
// PaymentException, and a failing PaymentException is only logged.
type Notifier struct {
	sink   EventSink
	logger *slog.Logger
}

func NewNotifier(sink EventSink, logger *slog.Logger) *Notifier {
	return &Notifier{sink: sink, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, locator string, answer map[string]any) {
	if n.sink == nil {
		return
	}

	err := n.call(func() error { return n.sink.PaymentPaid(ctx, locator, answer) })
	if err == nil {
		return
	}
	n.logger.Error("payment paid handler failed", "locator", locator, "error", err)

	detail := err.Error()
	err = n.call(func() error { return n.sink.PaymentException(ctx, locator, answer, detail) })
	if err != nil {
		n.logger.Error("payment exception handler failed", "locator", locator, "error", err)
	}
}

// call shields the notifier from panicking sinks.
func (n *Notifier) call(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return f()
}

// LogSink is the default sink: it only logs. Applications replace it with
// their own implementation to react to settled payments.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) PaymentPaid(ctx context.Context, locator string, answer map[string]any) error {
	s.Logger.Info("payment paid", "locator", locator)
	return nil
}

func (s *LogSink) PaymentException(ctx context.Context, locator string, answer map[string]any, detail string) error {
	s.Logger.Error("payment exception", "locator", locator, "detail", detail)
	return nil
}
