package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medical-scheduler-api/internal/model"
	"medical-scheduler-api/internal/timeutil"
)

// Outbound event types on the live connection.
const (
	EventNewAppointment = "new_appointment"
	EventReminder       = "appointment_reminder"
)

// Event is the envelope written to a live connection.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewAppointmentPayload notifies a recipient that an appointment was
// booked for them.
type NewAppointmentPayload struct {
	AppointmentID   string    `json:"appointmentId"`
	Title           string    `json:"title"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	CounterpartName string    `json:"counterpartName"`
}

// ReminderPayload is delivered shortly before an appointment starts.
type ReminderPayload struct {
	AppointmentID     string    `json:"appointmentId"`
	Title             string    `json:"title"`
	StartTime         time.Time `json:"startTime"`
	CounterpartName   string    `json:"counterpartName"`
	MinutesUntilStart int       `json:"minutesUntilStart"`
}

// Presence answers whether a recipient is reachable and through which
// connections.
type Presence interface {
	IsOnline(recipientID string) bool
	ConnectionsFor(recipientID string) []string
}

// Sender pushes raw bytes to a single live connection.
type Sender interface {
	Send(connID string, data []byte) error
}

// LogStore persists the durable notification record.
type LogStore interface {
	InsertNotification(ctx context.Context, n *model.Notification) error
}

// Dispatcher routes notifications: a durable record is written for every
// attempt, and recipients with live connections additionally get the
// payload pushed to each connection. A failed live send never escapes.
type Dispatcher struct {
	presence Presence
	sender   Sender
	logs     LogStore
	log      zerolog.Logger
	now      func() time.Time
}

func NewDispatcher(p Presence, s Sender, logs LogStore, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		presence: p,
		sender:   s,
		logs:     logs,
		log:      log.With().Str("component", "dispatcher").Logger(),
		now:      time.Now,
	}
}

// NotifyNewAppointment records and, if the recipient is online, pushes a
// new-appointment event. Called synchronously at creation time.
func (d *Dispatcher) NotifyNewAppointment(ctx context.Context, a *model.Appointment, counterpartName string) error {
	payload := NewAppointmentPayload{
		AppointmentID:   a.ID,
		Title:           a.Title,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		CounterpartName: counterpartName,
	}

	if err := d.record(ctx, a, model.NotificationNewAppointment, payload); err != nil {
		return err
	}

	d.log.Info().
		Str("appointment_id", a.ID).
		Str("recipient_id", a.RecipientID).
		Str("title", a.Title).
		Msg("new appointment notification")

	d.deliverLive(a.RecipientID, Event{Type: EventNewAppointment, Data: payload})
	return nil
}

// NotifyBatchCreated notifies the recipient about every appointment in a
// freshly created batch.
func (d *Dispatcher) NotifyBatchCreated(ctx context.Context, appts []*model.Appointment, counterpartName string) error {
	for _, a := range appts {
		if err := d.NotifyNewAppointment(ctx, a, counterpartName); err != nil {
			return err
		}
	}
	return nil
}

// NotifyReminder records the reminder attempt and pushes it live when the
// recipient is reachable. MinutesUntilStart is computed at dispatch time.
func (d *Dispatcher) NotifyReminder(ctx context.Context, a *model.Appointment, counterpartName string) error {
	payload := ReminderPayload{
		AppointmentID:     a.ID,
		Title:             a.Title,
		StartTime:         a.StartTime,
		CounterpartName:   counterpartName,
		MinutesUntilStart: timeutil.MinutesUntil(a.StartTime, d.now()),
	}

	// the durable record is the permanent proof of the delivery attempt,
	// written before and independently of any live send
	if err := d.record(ctx, a, model.NotificationReminder, payload); err != nil {
		return err
	}

	d.log.Info().
		Str("appointment_id", a.ID).
		Str("recipient_id", a.RecipientID).
		Str("title", a.Title).
		Int("minutes_until_start", payload.MinutesUntilStart).
		Msg("reminder notification")

	if !d.presence.IsOnline(a.RecipientID) {
		d.log.Debug().Str("recipient_id", a.RecipientID).Msg("recipient offline, reminder recorded only")
		return nil
	}
	d.deliverLive(a.RecipientID, Event{Type: EventReminder, Data: payload})
	return nil
}

func (d *Dispatcher) record(ctx context.Context, a *model.Appointment, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	n := &model.Notification{
		ID:            uuid.New().String(),
		RecipientID:   a.RecipientID,
		AppointmentID: a.ID,
		Kind:          kind,
		Payload:       raw,
	}
	if err := d.logs.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("record %s notification: %w", kind, err)
	}
	return nil
}

// deliverLive pushes the event to every live connection for the
// recipient. Per-connection failures are logged and swallowed.
func (d *Dispatcher) deliverLive(recipientID string, ev Event) {
	conns := d.presence.ConnectionsFor(recipientID)
	if len(conns) == 0 {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		d.log.Error().Err(err).Str("type", ev.Type).Msg("marshal live event")
		return
	}

	for _, connID := range conns {
		if err := d.sender.Send(connID, data); err != nil {
			d.log.Warn().Err(err).
				Str("conn_id", connID).
				Str("recipient_id", recipientID).
				Msg("live delivery failed")
		}
	}
}
