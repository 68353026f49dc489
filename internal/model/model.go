package model

import (
	"encoding/json"
	"time"
)

// User is a clinic-side account (the scheduling party).
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Timezone     string    `json:"timezone"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Patient is the recipient party. Timezone is display-only; instants
// are always stored in UTC.
type Patient struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Timezone     string    `json:"timezone"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Appointment is the canonical scheduled-event record. StartTime and
// EndTime are UTC instants; EndTime is always StartTime plus the fixed
// configured duration. ReminderSent flips false->true exactly once.
type Appointment struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SchedulerID  string    `json:"schedulerId"`
	RecipientID  string    `json:"recipientId"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	ReminderSent bool      `json:"reminderSent"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DueReminder is an appointment inside the reminder window joined with
// the scheduling party's display name for the payload.
type DueReminder struct {
	Appointment   Appointment
	SchedulerName string
}

// Notification kinds stored in the durable log.
const (
	NotificationNewAppointment = "new_appointment"
	NotificationReminder       = "appointment_reminder"
)

// Notification is the durable record of a delivery attempt. Written
// unconditionally, whether or not the recipient was online.
type Notification struct {
	ID            string          `json:"id"`
	RecipientID   string          `json:"recipientId"`
	AppointmentID string          `json:"appointmentId"`
	Kind          string          `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
}
