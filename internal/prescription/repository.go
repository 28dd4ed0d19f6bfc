package prescription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPrescriptionNotFound   = errors.New("prescription not found")
	ErrDuplicatePrescription  = errors.New("an active prescription already exists for this appointment")
	ErrDuplicateRxNumber      = errors.New("prescription number already in use")
	ErrAppointmentUnavailable = errors.New("appointment is not available for prescription issuance")
)

// ListFilter narrows List results. Nil fields are ignored.
type ListFilter struct {
	PatientID  *uuid.UUID
	DoctorID   *uuid.UUID
	PharmacyID *uuid.UUID
	Limit      int
	Offset     int
}

// Repository contains all DB interactions needed by the service.
//
// Insert runs in a single transaction that locks the appointment row,
// re-checks the one-active-prescription rule, and writes the
// prescription with its line items; Route and UpdateStatus are
// conditional updates keyed on id plus the expected current status.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)

	Insert(ctx context.Context, p *Prescription) error

	// Route sets the pharmacy and transitions issued -> routed, guarded
	// by the validity deadline inside the same conditional update.
	Route(ctx context.Context, id, pharmacyID uuid.UUID, now time.Time) (*Prescription, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Prescription, error)

	List(ctx context.Context, f ListFilter) ([]Prescription, error)
}
