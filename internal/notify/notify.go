// Package notify delivers user-facing alerts raised by background checks.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Kind classifies an alert.
type Kind string

// Alert kinds.
const (
	KindCalendarDisconnected Kind = "calendar_disconnected"
	KindCalendarSyncFailed   Kind = "calendar_sync_failed"
)

// Alert is a single notification.
type Alert struct {
	Kind       Kind      `json:"kind"`
	Source     string    `json:"source,omitempty"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier that logs at warn level.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the alert.
func (n *LogNotifier) Notify(_ context.Context, alert Alert) error {
	n.logger.Warn().
		Str("kind", string(alert.Kind)).
		Str("source", alert.Source).
		Str("title", alert.Title).
		Time("occurred_at", alert.OccurredAt).
		Msg(alert.Message)
	return nil
}

// PubSubNotifier publishes alerts as JSON to a Pub/Sub topic.
type PubSubNotifier struct {
	publisher *pubsub.Publisher
	topic     string
}

// NewPubSubNotifier creates a notifier publishing to topic.
func NewPubSubNotifier(client *pubsub.Client, topic string) *PubSubNotifier {
	return &PubSubNotifier{
		publisher: client.Publisher(topic),
		topic:     topic,
	}
}

// Notify publishes the alert and waits for the server ack.
func (n *PubSubNotifier) Notify(ctx context.Context, alert Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}

	result := n.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"kind":   string(alert.Kind),
			"source": alert.Source,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing alert to %s: %w", n.topic, err)
	}
	return nil
}

// Stop flushes pending publishes.
func (n *PubSubNotifier) Stop() {
	n.publisher.Stop()
}

// Multi fans an alert out to every notifier.
type Multi []Notifier

// Notify delivers to all notifiers and joins their errors.
func (m Multi) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Gated drops alerts while Suppressed reports true. Suppressed alerts are
// logged at debug level.
type Gated struct {
	Next       Notifier
	Suppressed func() bool
	Logger     zerolog.Logger
}

// Notify forwards alert unless sending is suppressed.
func (g Gated) Notify(ctx context.Context, alert Alert) error {
	if g.Next == nil {
		return nil
	}
	if g.Suppressed != nil && g.Suppressed() {
		g.Logger.Debug().
			Str("kind", string(alert.Kind)).
			Str("source", alert.Source).
			Msg("alert suppressed")
		return nil
	}
	return g.Next.Notify(ctx, alert)
}

// Recorder keeps alerts in memory.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify records the alert.
func (r *Recorder) Notify(_ context.Context, alert Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

// Alerts returns a copy of the recorded alerts.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}
