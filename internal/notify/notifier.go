package notify

import (
	"context"
	"errors"
	"log"

	"example.com/tierrun/internal/domain"
)

// Logger writes every outcome to a log.Logger.
type Logger struct {
	logger *log.Logger
}

// NewLogger wraps logger; a nil logger writes to the standard logger's output.
func NewLogger(logger *log.Logger) *Logger {
	if logger == nil {
		logger = log.New(log.Writer(), "[notify] ", log.LstdFlags)
	}
	return &Logger{logger: logger}
}

// NotifyRunScored implements domain.Notifier.
func (l *Logger) NotifyRunScored(_ context.Context, run domain.Run, tier domain.TierRecord) error {
	l.logger.Printf("runner %s earned %d LP as %s (%s, %d LP)", run.RunnerID, run.LPEarned, run.Role, tier.State.Name(), tier.State.LP)
	return nil
}

// NotifyTransition implements domain.Notifier.
func (l *Logger) NotifyTransition(_ context.Context, t domain.TierTransition) error {
	l.logger.Printf("runner %s %s %s: %s -> %s", t.RunnerID, t.Role, t.Kind, t.From, t.To)
	return nil
}

// Fanout forwards to several notifiers, continuing past failures.
type Fanout []domain.Notifier

// NotifyRunScored implements domain.Notifier.
func (f Fanout) NotifyRunScored(ctx context.Context, run domain.Run, tier domain.TierRecord) error {
	var errs []error
	for _, n := range f {
		if err := n.NotifyRunScored(ctx, run, tier); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyTransition implements domain.Notifier.
func (f Fanout) NotifyTransition(ctx context.Context, t domain.TierTransition) error {
	var errs []error
	for _, n := range f {
		if err := n.NotifyTransition(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
