package prescription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/NaByeonggil/clinic-care-coordination/internal/db"
)

const prescriptionColumns = `id, rx_number, patient_id, doctor_id, appointment_id, pharmacy_id,
	diagnosis, total_price, status, issued_at, valid_until, created_at, updated_at`

const uniqueViolation = "23505"

type PgRepository struct {
	pool db.Pool
}

func NewPgRepository(pool db.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	var pharmacyID *uuid.UUID

	err := row.Scan(
		&p.ID,
		&p.RxNumber,
		&p.PatientID,
		&p.DoctorID,
		&p.AppointmentID,
		&pharmacyID,
		&p.Diagnosis,
		&p.TotalPrice,
		&p.Status,
		&p.IssuedAt,
		&p.ValidUntil,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}

	p.PharmacyID = pharmacyID
	return &p, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+prescriptionColumns+`
		FROM prescriptions
		WHERE id = $1
	`, id)
	p, err := scanPrescription(row)
	if err != nil {
		return nil, err
	}

	items, err := r.loadItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

func (r *PgRepository) loadItems(ctx context.Context, prescriptionID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, prescription_id, medication_id, dosage, frequency, duration, quantity, unit_price
		FROM prescription_items
		WHERE prescription_id = $1
		ORDER BY id
	`, prescriptionID)
	if err != nil {
		return nil, fmt.Errorf("load prescription items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.MedicationID,
			&it.Dosage, &it.Frequency, &it.Duration, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Insert writes the prescription and its line items in one transaction.
// The appointment row is locked first so two concurrent issuances against
// the same appointment serialize; the second sees the first's row and
// fails with ErrDuplicatePrescription.
func (r *PgRepository) Insert(ctx context.Context, p *Prescription) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin issue tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var apptStatus string
	err = tx.QueryRow(ctx, `
		SELECT status FROM appointments WHERE id = $1 FOR UPDATE
	`, p.AppointmentID).Scan(&apptStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAppointmentUnavailable
		}
		return fmt.Errorf("lock appointment: %w", err)
	}
	if apptStatus != "confirmed" && apptStatus != "completed" {
		return ErrAppointmentUnavailable
	}

	var active bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM prescriptions
			WHERE appointment_id = $1
			  AND status <> 'dispensed'
			  AND valid_until > now()
		)
	`, p.AppointmentID).Scan(&active)
	if err != nil {
		return fmt.Errorf("check active prescription: %w", err)
	}
	if active {
		return ErrDuplicatePrescription
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO prescriptions (id, rx_number, patient_id, doctor_id, appointment_id, pharmacy_id,
			diagnosis, total_price, status, issued_at, valid_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULL, $6, $7, $8, $9, $10, now(), now())
	`, p.ID, p.RxNumber, p.PatientID, p.DoctorID, p.AppointmentID,
		p.Diagnosis, p.TotalPrice, p.Status, p.IssuedAt, p.ValidUntil)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateRxNumber
		}
		return fmt.Errorf("insert prescription: %w", err)
	}

	for _, it := range p.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO prescription_items (id, prescription_id, medication_id, dosage, frequency, duration, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, it.ID, p.ID, it.MedicationID, it.Dosage, it.Frequency, it.Duration, it.Quantity, it.UnitPrice)
		if err != nil {
			return fmt.Errorf("insert prescription item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit issue tx: %w", err)
	}
	return nil
}

func (r *PgRepository) Route(ctx context.Context, id, pharmacyID uuid.UUID, now time.Time) (*Prescription, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE prescriptions
		SET status = 'routed',
		    pharmacy_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'issued'
		  AND valid_until >= $3
		RETURNING `+prescriptionColumns+`
	`, id, pharmacyID, now)

	p, err := scanPrescription(row)
	if err != nil {
		return nil, err
	}

	items, err := r.loadItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Prescription, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE prescriptions
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+prescriptionColumns+`
	`, id, to, from)

	p, err := scanPrescription(row)
	if err != nil {
		return nil, err
	}

	items, err := r.loadItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE 1=1`
	args := []any{}

	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		query += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		query += fmt.Sprintf(" AND doctor_id = $%d", len(args))
	}
	if f.PharmacyID != nil {
		args = append(args, *f.PharmacyID)
		query += fmt.Sprintf(" AND pharmacy_id = $%d", len(args))
	}

	query += " ORDER BY issued_at DESC"
	args = append(args, f.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	return result, rows.Err()
}
