// Package inventory is the read-only view over pharmacy stock used to
// pick routing candidates. Stock decrement on dispensing belongs to an
// external collaborator; nothing here writes.
package inventory

import (
	"context"

	"github.com/google/uuid"
)

// Oracle answers which pharmacies currently hold stock. The candidacy
// rule is full-stock: a pharmacy qualifies only when it holds at least
// one unit of every requested medication.
type Oracle interface {
	// PharmaciesHoldingAll returns the pharmacies holding >= 1 unit of
	// every listed medication.
	PharmaciesHoldingAll(ctx context.Context, medicationIDs []uuid.UUID) ([]uuid.UUID, error)

	// HoldsAll reports whether one pharmacy holds >= 1 unit of every
	// listed medication.
	HoldsAll(ctx context.Context, pharmacyID uuid.UUID, medicationIDs []uuid.UUID) (bool, error)
}
