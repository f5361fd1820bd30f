package realtime

import (
	"context"
	"encoding/json"
	"log"

	"tollgate/internal/checkout"
	"tollgate/internal/gateway"
)

const (
	eventSessionStep = "session_step"
	eventWidgetOpen  = "widget_open"
)

type sessionStepEvent struct {
	Type     string            `json:"type"`
	FromStep checkout.Step     `json:"fromStep"`
	Detail   string            `json:"detail,omitempty"`
	Session  checkout.Snapshot `json:"session"`
}

type widgetOpenEvent struct {
	Type            string `json:"type"`
	SessionID       string `json:"sessionId"`
	KeyID           string `json:"keyId"`
	ProviderOrderID string `json:"providerOrderId"`
	AmountPaise     int64  `json:"amountPaise"`
	Currency        string `json:"currency"`
	DatasetTitle    string `json:"datasetTitle"`
}

// StepSink broadcasts session step changes to connected clients. Implements
// the orchestrator's transition observer.
type StepSink struct {
	hub *Hub
}

// NewStepSink constructs a StepSink.
func NewStepSink(hub *Hub) *StepSink {
	return &StepSink{hub: hub}
}

func (s *StepSink) StepChanged(ctx context.Context, snap checkout.Snapshot, from checkout.Step, detail string) {
	s.publish(sessionStepEvent{
		Type:     eventSessionStep,
		FromStep: from,
		Detail:   detail,
		Session:  snap,
	})
}

func (s *StepSink) publish(event any) {
	msg, err := json.Marshal(event)
	if err != nil {
		log.Printf("realtime encode failed: %v", err)
		return
	}
	select {
	case s.hub.Broadcast <- msg:
	default:
		// A full broadcast buffer means no client is draining; the UI will
		// resync from the session snapshot endpoint.
		log.Printf("realtime broadcast dropped (buffer full)")
	}
}

// WidgetCommander tells the browser to render the gateway widget. Implements
// gateway.CommandPublisher.
type WidgetCommander struct {
	hub *Hub
}

// NewWidgetCommander constructs a WidgetCommander.
func NewWidgetCommander(hub *Hub) *WidgetCommander {
	return &WidgetCommander{hub: hub}
}

func (w *WidgetCommander) PublishWidgetOpen(req gateway.OpenRequest) error {
	msg, err := json.Marshal(widgetOpenEvent{
		Type:            eventWidgetOpen,
		SessionID:       req.SessionID,
		KeyID:           req.KeyID,
		ProviderOrderID: req.ProviderOrderID,
		AmountPaise:     req.AmountPaise,
		Currency:        req.Currency,
		DatasetTitle:    req.DatasetTitle,
	})
	if err != nil {
		return err
	}
	w.hub.Broadcast <- msg
	return nil
}
