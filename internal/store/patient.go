package store

import (
	"context"

	"medical-scheduler-api/internal/model"
)

func (s *Store) CreatePatient(ctx context.Context, p *model.Patient) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO patients (id, email, password_hash, name, timezone) VALUES ($1,$2,$3,$4,$5)
		 RETURNING created_at, updated_at`,
		p.ID, p.Email, p.PasswordHash, p.Name, p.Timezone,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (s *Store) PatientByEmail(ctx context.Context, email string) (*model.Patient, error) {
	p := &model.Patient{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, name, timezone, created_at, updated_at
		 FROM patients WHERE email = $1`, email,
	).Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Name, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) PatientByID(ctx context.Context, id string) (*model.Patient, error) {
	p := &model.Patient{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, name, timezone, created_at, updated_at
		 FROM patients WHERE id = $1`, id,
	).Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Name, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPatients returns the directory for the booking form, name order.
func (s *Store) ListPatients(ctx context.Context) ([]model.Patient, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, password_hash, name, timezone, created_at, updated_at
		 FROM patients ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Patient
	for rows.Next() {
		var p model.Patient
		if err := rows.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Name, &p.Timezone, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
