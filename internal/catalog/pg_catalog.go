package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NaByeonggil/clinic-care-coordination/internal/db"
)

type PgCatalog struct {
	pool db.Pool
}

func NewPgCatalog(pool db.Pool) *PgCatalog {
	return &PgCatalog{pool: pool}
}

func (c *PgCatalog) DoctorModes(ctx context.Context, doctorID uuid.UUID) (ConsultationModes, error) {
	var m ConsultationModes
	err := c.pool.QueryRow(ctx, `
		SELECT remote, in_person
		FROM doctors
		WHERE id = $1
	`, doctorID).Scan(&m.Remote, &m.InPerson)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConsultationModes{}, ErrDoctorNotFound
		}
		return ConsultationModes{}, fmt.Errorf("load doctor modes: %w", err)
	}
	return m, nil
}

func (c *PgCatalog) UnitPrice(ctx context.Context, medicationID uuid.UUID) (int64, error) {
	var price int64
	err := c.pool.QueryRow(ctx, `
		SELECT unit_price
		FROM medications
		WHERE id = $1
	`, medicationID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrMedicationNotFound
		}
		return 0, fmt.Errorf("load medication price: %w", err)
	}
	return price, nil
}
