package store

import (
	"context"

	"medical-scheduler-api/internal/model"
)

func (s *Store) InsertNotification(ctx context.Context, n *model.Notification) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, recipient_id, appointment_id, kind, payload)
		 VALUES ($1,$2,$3,$4,$5)
		 RETURNING created_at`,
		n.ID, n.RecipientID, n.AppointmentID, n.Kind, n.Payload,
	).Scan(&n.CreatedAt)
}

// NotificationsForRecipient returns the durable delivery log, newest
// first.
func (s *Store) NotificationsForRecipient(ctx context.Context, recipientID string, limit int) ([]model.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, recipient_id, appointment_id, kind, payload, created_at
		 FROM notifications
		 WHERE recipient_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, recipientID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.AppointmentID, &n.Kind, &n.Payload, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
