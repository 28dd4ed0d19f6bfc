// Package catalog exposes the read-only lookups the workflow consumes
// from external collaborators: doctor consultation modes and medication
// unit prices. Their write side lives outside this system.
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound     = errors.New("doctor not found")
	ErrMedicationNotFound = errors.New("medication not found")
)

// ConsultationModes describes which visit modalities a doctor offers.
type ConsultationModes struct {
	Remote   bool
	InPerson bool
}

// Directory resolves doctor capabilities.
type Directory interface {
	DoctorModes(ctx context.Context, doctorID uuid.UUID) (ConsultationModes, error)
}

// PriceList resolves the current unit price of a medication. Prices are
// snapshotted onto prescription line items at issuance.
type PriceList interface {
	UnitPrice(ctx context.Context, medicationID uuid.UUID) (int64, error)
}
