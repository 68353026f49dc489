package store

import (
	"context"
	"time"

	"medical-scheduler-api/internal/model"
)

const appointmentCols = `id, title, scheduler_id, recipient_id, start_time, end_time, reminder_sent, created_at, updated_at`

func scanAppointment(row interface{ Scan(...any) error }, a *model.Appointment) error {
	return row.Scan(
		&a.ID, &a.Title, &a.SchedulerID, &a.RecipientID,
		&a.StartTime, &a.EndTime, &a.ReminderSent, &a.CreatedAt, &a.UpdatedAt,
	)
}

func (s *Store) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO appointments (id, title, scheduler_id, recipient_id, start_time, end_time, reminder_sent)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING created_at, updated_at`,
		a.ID, a.Title, a.SchedulerID, a.RecipientID, a.StartTime, a.EndTime, a.ReminderSent,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

// InsertAppointments writes a whole batch in one transaction: all rows
// or none.
func (s *Store) InsertAppointments(ctx context.Context, appts []*model.Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, a := range appts {
		err = tx.QueryRow(ctx,
			`INSERT INTO appointments (id, title, scheduler_id, recipient_id, start_time, end_time, reminder_sent)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)
			 RETURNING created_at, updated_at`,
			a.ID, a.Title, a.SchedulerID, a.RecipientID, a.StartTime, a.EndTime, a.ReminderSent,
		).Scan(&a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id,
	), a)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByScheduler returns the scheduling party's appointments with start
// times inside [from, to], soonest first.
func (s *Store) ListByScheduler(ctx context.Context, schedulerID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appointmentCols+`
		 FROM appointments
		 WHERE scheduler_id = $1 AND start_time >= $2 AND start_time <= $3
		 ORDER BY start_time`, schedulerID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := scanAppointment(rows, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpcomingForRecipient returns the recipient's future appointments,
// nearest first.
func (s *Store) UpcomingForRecipient(ctx context.Context, recipientID string, now time.Time) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appointmentCols+`
		 FROM appointments
		 WHERE recipient_id = $1 AND start_time >= $2
		 ORDER BY start_time`, recipientID, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := scanAppointment(rows, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DaysWithAppointments returns the start instants of a scheduler's
// appointments in a range, for calendar highlighting.
func (s *Store) DaysWithAppointments(ctx context.Context, schedulerID string, from, to time.Time) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT start_time FROM appointments
		 WHERE scheduler_id = $1 AND start_time >= $2 AND start_time <= $3
		 ORDER BY start_time`, schedulerID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DueForReminder returns un-reminded appointments with start times in
// (now, now+window], joined with the scheduler's display name.
func (s *Store) DueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]model.DueReminder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.title, a.scheduler_id, a.recipient_id, a.start_time, a.end_time,
		        a.reminder_sent, a.created_at, a.updated_at, u.name
		 FROM appointments a
		 JOIN users u ON u.id = a.scheduler_id
		 WHERE a.reminder_sent = false
		   AND a.start_time > $1 AND a.start_time <= $2
		 ORDER BY a.start_time`, now, now.Add(window),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DueReminder
	for rows.Next() {
		var d model.DueReminder
		a := &d.Appointment
		if err := rows.Scan(
			&a.ID, &a.Title, &a.SchedulerID, &a.RecipientID, &a.StartTime, &a.EndTime,
			&a.ReminderSent, &a.CreatedAt, &a.UpdatedAt, &d.SchedulerName,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkReminderSentIfUnset performs the compare-and-set on reminder_sent
// in a single statement. Returns true iff this call made the transition.
func (s *Store) MarkReminderSentIfUnset(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET reminder_sent = true, updated_at = NOW()
		 WHERE id = $1 AND reminder_sent = false`, id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
