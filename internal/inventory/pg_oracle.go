package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/NaByeonggil/clinic-care-coordination/internal/db"
)

type PgOracle struct {
	pool db.Pool
}

func NewPgOracle(pool db.Pool) *PgOracle {
	return &PgOracle{pool: pool}
}

func (o *PgOracle) PharmaciesHoldingAll(ctx context.Context, medicationIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(medicationIDs) == 0 {
		return nil, nil
	}

	rows, err := o.pool.Query(ctx, `
		SELECT pharmacy_id
		FROM pharmacy_stock
		WHERE medication_id = ANY($1)
		  AND quantity >= 1
		GROUP BY pharmacy_id
		HAVING COUNT(DISTINCT medication_id) = $2
		ORDER BY pharmacy_id
	`, medicationIDs, len(medicationIDs))
	if err != nil {
		return nil, fmt.Errorf("query stock holders: %w", err)
	}
	defer rows.Close()

	var result []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}

	return result, rows.Err()
}

func (o *PgOracle) HoldsAll(ctx context.Context, pharmacyID uuid.UUID, medicationIDs []uuid.UUID) (bool, error) {
	if len(medicationIDs) == 0 {
		return false, nil
	}

	var count int
	err := o.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT medication_id)
		FROM pharmacy_stock
		WHERE pharmacy_id = $1
		  AND medication_id = ANY($2)
		  AND quantity >= 1
	`, pharmacyID, medicationIDs).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check pharmacy stock: %w", err)
	}

	return count == len(medicationIDs), nil
}
