package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NaByeonggil/clinic-care-coordination/internal/db"
)

const appointmentColumns = `id, patient_id, doctor_id, department_id, scheduled_at, modality,
	remote_channel, symptom_note, clinical_note, status, created_at, updated_at`

type PgRepository struct {
	pool db.Pool
}

func NewPgRepository(pool db.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var departmentID *uuid.UUID
	var channel *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&departmentID,
		&a.ScheduledAt,
		&a.Modality,
		&channel,
		&a.SymptomNote,
		&a.ClinicalNote,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.DepartmentID = departmentID
	if channel != nil {
		c := RemoteChannel(*channel)
		a.RemoteChannel = &c
	}
	return &a, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) HasActiveBooking(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND scheduled_at = $2
			  AND status IN ('requested', 'confirmed')
		)
	`, doctorID, at).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check active booking: %w", err)
	}
	return taken, nil
}

func (r *PgRepository) Insert(ctx context.Context, a *Appointment) error {
	var channel *string
	if a.RemoteChannel != nil {
		c := string(*a.RemoteChannel)
		channel = &c
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, department_id, scheduled_at, modality,
			remote_channel, symptom_note, clinical_note, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', $9, now(), now())
	`, a.ID, a.PatientID, a.DoctorID, a.DepartmentID, a.ScheduledAt, a.Modality,
		channel, a.SymptomNote, a.Status)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// UpdateStatus performs the conditional status write. The clinical note is
// append-only: a non-empty noteLine is concatenated, never assigned.
func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, noteLine string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    clinical_note = CASE
		        WHEN $3 = '' THEN clinical_note
		        WHEN clinical_note = '' THEN $3
		        ELSE clinical_note || E'\n' || $3
		    END,
		    updated_at = now()
		WHERE id = $1
		  AND status = $4
		RETURNING `+appointmentColumns+`
	`, id, to, noteLine, from)

	return scanAppointment(row)
}

func (r *PgRepository) Cancel(ctx context.Context, id uuid.UUID, noteLine string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    clinical_note = CASE
		        WHEN $2 = '' THEN clinical_note
		        WHEN clinical_note = '' THEN $2
		        ELSE clinical_note || E'\n' || $2
		    END,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('requested', 'confirmed')
		RETURNING `+appointmentColumns+`
	`, id, noteLine)

	return scanAppointment(row)
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []any{}

	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		query += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		query += fmt.Sprintf(" AND doctor_id = $%d", len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY scheduled_at DESC"
	args = append(args, f.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}
