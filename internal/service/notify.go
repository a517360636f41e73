package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"meshinv/internal/domain"
	"meshinv/internal/metrics"
)

// NotificationKind classifies a change notification
type NotificationKind string

const (
	NotificationCreated     NotificationKind = "created"
	NotificationUpdated     NotificationKind = "updated"
	NotificationDeactivated NotificationKind = "deactivated"
	NotificationDuplicate   NotificationKind = "duplicate"
	NotificationWarning     NotificationKind = "warning"
)

// ObjectRef identifies an inventory object mentioned in a notification
type ObjectRef struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Notification is a human-readable change report
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Objects   []ObjectRef      `json:"objects"`
	Message   string           `json:"message"`
	Created   bool             `json:"created"`
	Timestamp time.Time        `json:"timestamp"`
}

// Notifier delivers change notifications. Delivery failures are reported
// to the caller but never undo the change being described.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify implements Notifier
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

type namedNotifier struct {
	name     string
	notifier Notifier
}

// MultiNotifier fans a notification out to every registered sink
type MultiNotifier struct {
	sinks  []namedNotifier
	logger *zap.Logger
}

// NewMultiNotifier creates an empty fan-out notifier
func NewMultiNotifier(logger *zap.Logger) *MultiNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiNotifier{logger: logger}
}

// Add registers a sink under name
func (m *MultiNotifier) Add(name string, n Notifier) {
	m.sinks = append(m.sinks, namedNotifier{name: name, notifier: n})
}

// Len returns the number of sinks
func (m *MultiNotifier) Len() int {
	return len(m.sinks)
}

// Notify implements Notifier. Every sink is tried; failures are joined.
func (m *MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.notifier.Notify(ctx, n); err != nil {
			metrics.NotificationsTotal.WithLabelValues(sink.name, metrics.OutcomeFailed).Inc()
			m.logger.Warn("notification delivery failed",
				zap.String("sink", sink.name),
				zap.String("notification_id", n.ID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sink.name, err))
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(sink.name, metrics.OutcomeDelivered).Inc()
	}
	return errors.Join(errs...)
}

// EventNotifier publishes notifications on the event bus
type EventNotifier struct {
	bus *EventBus
}

// NewEventNotifier creates a notifier backed by bus
func NewEventNotifier(bus *EventBus) *EventNotifier {
	return &EventNotifier{bus: bus}
}

// Notify implements Notifier
func (e *EventNotifier) Notify(_ context.Context, n Notification) error {
	e.bus.Publish(Event{Type: EventNotification, Payload: n})
	return nil
}

// ============================================================================
// Outbox
// ============================================================================

// outbox collects notifications produced inside a transaction so they can
// be delivered once it commits
type outbox struct {
	pending []Notification
}

func (o *outbox) add(kind NotificationKind, created bool, message string, objects ...ObjectRef) {
	o.pending = append(o.pending, Notification{
		Kind:    kind,
		Objects: objects,
		Message: message,
		Created: created,
	})
}

func (o *outbox) reset() {
	o.pending = o.pending[:0]
}

// deliver sends every pending notification. Failures are logged only.
func deliver(ctx context.Context, notifier Notifier, logger *zap.Logger, pending []Notification) {
	if notifier == nil {
		return
	}
	for _, n := range pending {
		n.ID = uuid.NewString()
		n.Timestamp = time.Now().UTC()
		if err := notifier.Notify(ctx, n); err != nil {
			logger.Warn("notification not delivered",
				zap.String("kind", string(n.Kind)),
				zap.String("message", firstLine(n.Message)),
				zap.Error(err))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// ============================================================================
// Object References
// ============================================================================

func deviceRef(d *domain.Device) ObjectRef {
	label := d.Name
	if label == "" {
		label = d.ID
	}
	return ObjectRef{Type: string(d.Kind()), ID: d.ID, Label: label}
}

func linkRef(l *domain.Link) ObjectRef {
	return ObjectRef{Type: "link", ID: l.ID, Label: l.String()}
}

func losRef(l *domain.LOS) ObjectRef {
	return ObjectRef{Type: "los", ID: l.ID, Label: l.String()}
}

func nodeRef(n *domain.Node) ObjectRef {
	return ObjectRef{Type: "node", ID: n.ID, Label: n.String()}
}

func installRef(i *domain.Install) ObjectRef {
	return ObjectRef{Type: "install", ID: i.ID, Label: i.String()}
}
