// Package notification delivers risk alerts to external channels
// (Telegram, webhooks). Delivery failures are logged by callers and never
// block the risk pipeline.
package notification

import (
	"context"
	"fmt"
	"log"

	"risk-systemv1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel        `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	UserID  string            `json:"user_id,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// FromViolation formats a risk violation as a deliverable alert.
func FromViolation(v model.RiskViolation) Alert {
	level := AlertInfo
	switch v.Severity {
	case model.SeverityCritical:
		level = AlertCritical
	case model.SeverityError, model.SeverityWarning:
		level = AlertWarning
	}
	return Alert{
		Level: level,
		Title: fmt.Sprintf("Risk limit breached: %s", v.Type),
		Message: fmt.Sprintf("%s at %.2f exceeds limit %.2f (%.1f%% over)",
			v.Type, v.CurrentValue, v.LimitValue, v.ViolationPercent),
		UserID: v.UserID,
		Fields: map[string]string{
			"broker_id": v.BrokerID,
			"severity":  string(v.Severity),
			"violation": v.ID,
		},
	}
}

// LogNotifier logs alerts instead of delivering them (useful for
// development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to several backends, returning the first error
// after attempting all of them.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}
