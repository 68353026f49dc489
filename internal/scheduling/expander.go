package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"medical-scheduler-api/internal/model"
	"medical-scheduler-api/internal/timeutil"
)

// ValidationError rejects bad input before anything is written.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Expander turns scheduling requests into canonical appointment records.
// Pure: output depends only on inputs and the timezone database. Writes
// are the caller's job.
type Expander struct {
	duration time.Duration
	maxBatch int
}

func NewExpander(duration time.Duration, maxBatch int) *Expander {
	return &Expander{duration: duration, maxBatch: maxBatch}
}

// CreateSingle normalizes a local start time in the scheduler's zone and
// returns one unpersisted appointment.
func (e *Expander) CreateSingle(title, schedulerID, recipientID, localStart, timezone string) (*model.Appointment, error) {
	if title == "" || recipientID == "" || localStart == "" {
		return nil, validationf("title, recipient and start time are required")
	}

	start, err := timeutil.ToInstant(localStart, timezone)
	if err != nil {
		return nil, err
	}
	return e.build(title, schedulerID, recipientID, start), nil
}

// CreateBatch expands a date range into one appointment per calendar day
// at the given time of day, converted through the scheduler's zone.
// All-or-nothing: any validation failure yields zero records.
func (e *Expander) CreateBatch(title, schedulerID, recipientID, startDate, endDate, timeOfDay, timezone string) ([]*model.Appointment, error) {
	if title == "" || recipientID == "" || startDate == "" || endDate == "" || timeOfDay == "" {
		return nil, validationf("title, recipient, date range and time are required")
	}
	if !timeutil.ValidTimeOfDay(timeOfDay) {
		return nil, validationf("time must be HH:mm, got %q", timeOfDay)
	}

	days, err := timeutil.DateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, validationf("end date %s precedes start date %s", endDate, startDate)
	}
	// cap checked before any record exists
	if len(days) > e.maxBatch {
		return nil, validationf("batch of %d days exceeds limit of %d", len(days), e.maxBatch)
	}

	out := make([]*model.Appointment, 0, len(days))
	for _, day := range days {
		start, err := timeutil.Combine(day, timeOfDay, timezone)
		if err != nil {
			return nil, err
		}
		out = append(out, e.build(title, schedulerID, recipientID, start))
	}
	return out, nil
}

func (e *Expander) build(title, schedulerID, recipientID string, start time.Time) *model.Appointment {
	return &model.Appointment{
		ID:           uuid.New().String(),
		Title:        title,
		SchedulerID:  schedulerID,
		RecipientID:  recipientID,
		StartTime:    start,
		EndTime:      start.Add(e.duration),
		ReminderSent: false,
	}
}
