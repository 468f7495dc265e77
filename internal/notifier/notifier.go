// Package notifier sends run summaries to shoutrrr targets.
package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/containrrr/shoutrrr"

	"github.com/mescon/Cachearr/internal/domain"
	"github.com/mescon/Cachearr/internal/eventbus"
	"github.com/mescon/Cachearr/internal/logger"
)

// SendFunc delivers message to a single shoutrrr URL.
type SendFunc func(rawURL, message string) error

// Notifier posts a message when a run completes with work done or fails.
type Notifier struct {
	urls     []string
	eventBus eventbus.Publisher
	send     SendFunc
}

// NewNotifier normalizes and validates every target. A nil or empty list
// yields a disabled notifier.
func NewNotifier(rawURLs []string, eb eventbus.Publisher) (*Notifier, error) {
	n := &Notifier{eventBus: eb, send: shoutrrr.Send}
	for _, raw := range rawURLs {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		u, err := NormalizeURL(raw)
		if err != nil {
			return nil, err
		}
		if _, err := shoutrrr.CreateSender(u); err != nil {
			return nil, fmt.Errorf("invalid notification URL %s: %w", redactURL(u), err)
		}
		n.urls = append(n.urls, u)
	}
	return n, nil
}

// WithSendFunc replaces the delivery function.
func (n *Notifier) WithSendFunc(fn SendFunc) *Notifier {
	n.send = fn
	return n
}

// Enabled reports whether any target is configured.
func (n *Notifier) Enabled() bool {
	return len(n.urls) > 0
}

// Start subscribes to run outcomes. It is a no-op when disabled.
func (n *Notifier) Start() {
	if !n.Enabled() {
		logger.Debugf("Notifier: no targets configured")
		return
	}
	n.eventBus.Subscribe(domain.RunCompleted, n.handleRunCompleted)
	n.eventBus.Subscribe(domain.RunFailed, n.handleRunFailed)
	logger.Infof("Notifier started with %d target(s)", len(n.urls))
}

func (n *Notifier) handleRunCompleted(event domain.Event) {
	s, ok := event.ParseRunSummary()
	if !ok || s.Matched == 0 {
		return
	}
	n.notify(event.AggregateID, formatRunCompleted(s, event))
}

func (n *Notifier) handleRunFailed(event domain.Event) {
	s, ok := event.ParseRunSummary()
	if !ok {
		return
	}
	n.notify(event.AggregateID, formatRunFailed(s))
}

// notify sends to every target; one failing target does not stop the rest.
func (n *Notifier) notify(runID, message string) {
	for _, u := range n.urls {
		target := redactURL(u)
		data := map[string]interface{}{"target": target}

		if err := n.send(u, message); err != nil {
			logger.Errorf("Notifier: failed to send to %s: %v", target, err)
			data["error"] = err.Error()
			n.publish(domain.NotificationFailed, runID, data)
			continue
		}
		logger.Debugf("Notifier: sent run %s summary to %s", runID, target)
		n.publish(domain.NotificationSent, runID, data)
	}
}

func (n *Notifier) publish(eventType domain.EventType, runID string, data map[string]interface{}) {
	if err := n.eventBus.Publish(domain.NewRunEvent(eventType, runID, data)); err != nil {
		logger.Errorf("Notifier: failed to publish %s: %v", eventType, err)
	}
}

func formatRunCompleted(s domain.RunSummary, event domain.Event) string {
	msg := fmt.Sprintf("Cachearr run finished: %d of %d matching torrents added to Real-Debrid (%d cache entries seen)",
		s.Added, s.Matched, s.Seen)
	if seconds, ok := event.GetFloat64("duration_seconds"); ok && seconds > 0 {
		msg += fmt.Sprintf(" in %s", (time.Duration(seconds * float64(time.Second))).Round(time.Second))
	}
	return msg
}

func formatRunFailed(s domain.RunSummary) string {
	if s.Error == "" {
		return "Cachearr run failed"
	}
	return "Cachearr run failed: " + s.Error
}
