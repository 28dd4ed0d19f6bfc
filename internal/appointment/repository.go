package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// ListFilter narrows List results. Nil fields are ignored.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
	Limit     int
	Offset    int
}

// Repository contains all DB interactions needed by the service.
//
// Status writes are conditional updates keyed on id plus the expected
// current status; zero matched rows surface as ErrAppointmentNotFound and
// the service translates that to a lost-race ErrInvalidTransition.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// HasActiveBooking reports whether the doctor already has a
	// requested or confirmed appointment at the given slot.
	HasActiveBooking(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error)

	Insert(ctx context.Context, a *Appointment) error

	// UpdateStatus transitions from -> to, optionally appending noteLine
	// to the clinical note. The note column only ever grows.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, noteLine string) (*Appointment, error)

	// Cancel transitions from any non-terminal status to cancelled,
	// appending noteLine to the clinical note.
	Cancel(ctx context.Context, id uuid.UUID, noteLine string) (*Appointment, error)

	List(ctx context.Context, f ListFilter) ([]Appointment, error)
}
