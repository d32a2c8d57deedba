// Package dispatch turns eligible users into push relay requests and
// classifies delivery outcomes.
package dispatch

import (
	"github.com/hybridhq/reminder-engine/engine"
	"github.com/hybridhq/reminder-engine/record"
)

// =============================================================================
// MESSAGE TEMPLATES
// =============================================================================
// Fixed per-kind title/body/data. The data tags let the app route the tap
// to the right screen; their values are part of the client contract.

// Message is one outbound notification, addressed to a single recipient.
type Message struct {
	To       string            `json:"to"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`

	// UserID correlates the relay ticket back to the record. Not sent on
	// the wire.
	UserID string `json:"-"`
}

// BuildMessage renders the outbound payload for an eligible (record, kind)
// pair. The weekly summary body comes from the monthly accounting report.
func BuildMessage(r *record.UserRecord, kind engine.ReminderKind, clock engine.Clock) Message {
	msg := Message{
		To:       r.PushToken,
		UserID:   r.ID,
		Sound:    "default",
		Priority: "high",
		Data:     map[string]string{"type": string(kind), "date": clock.Today()},
	}

	switch kind {
	case engine.ManualReminder:
		msg.Title = "Don't forget to log your day"
		msg.Body = "Are you in the office or working remotely today? Tap to log it."
	case engine.AutoReminder:
		msg.Title = "We didn't detect you today"
		msg.Body = "Your attendance wasn't tracked automatically. Tap to log today."
	case engine.GeofenceConfirmation:
		msg.Title = "Looks like you're at the office"
		msg.Body = "We detected you near your office. Confirm today as an office day?"
	case engine.WeeklySummary:
		rep := engine.MonthlyReport(r, clock)
		msg.Title = "Your weekly attendance summary"
		msg.Body = rep.Message()
	}

	return msg
}
