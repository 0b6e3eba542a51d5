// Package notify publishes fire-and-forget progression events. Publishing
// never blocks or fails the caller.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learnquest/backend/internal/logger"
)

const (
	EventAttemptCompleted    = "attempt.completed"
	EventLevelUp             = "level.up"
	EventAchievementUnlocked = "achievement.unlocked"
	EventBadgeEarned         = "badge.earned"
)

type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	UserID     int64          `json:"user_id"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func NewEvent(typ string, userID int64, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Dispatcher publishes each event on its own goroutine with a bounded timeout.
type Dispatcher struct {
	sink    Sink
	log     *logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(sink Sink, log *logger.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Dispatcher{sink: sink, log: log.With("service", "notify"), timeout: timeout}
}

func (d *Dispatcher) Emit(events ...Event) {
	for _, ev := range events {
		d.wg.Add(1)
		go func(ev Event) {
			defer d.wg.Done()
			defer func() {
				if p := recover(); p != nil {
					d.log.Error("notification sink panicked", "event", ev.Type, "panic", p)
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := d.sink.Publish(ctx, ev); err != nil {
				d.log.Warn("publish notification failed", "event", ev.Type, "user_id", ev.UserID, "error", err)
			}
		}(ev)
	}
}

// Wait blocks until in-flight publishes finish. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// LogSink writes events to the log. Used when no broker is configured.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(_ context.Context, ev Event) error {
	s.log.Info("notification", "id", ev.ID, "type", ev.Type, "user_id", ev.UserID, "data", ev.Data)
	return nil
}
