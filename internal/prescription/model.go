package prescription

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusIssued    Status = "issued"
	StatusRouted    Status = "routed"
	StatusDispensed Status = "dispensed"
)

// DisplayStatusExpired is the derived status shown for prescriptions
// whose validity deadline passed before dispensing. It is never stored.
const DisplayStatusExpired = "expired"

type Prescription struct {
	ID            uuid.UUID
	RxNumber      string
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	AppointmentID uuid.UUID
	PharmacyID    *uuid.UUID
	Diagnosis     string
	TotalPrice    int64
	Status        Status
	IssuedAt      time.Time
	ValidUntil    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Items []Item
}

type Item struct {
	ID             uuid.UUID
	PrescriptionID uuid.UUID
	MedicationID   uuid.UUID
	Dosage         string
	Frequency      string
	Duration       string
	Quantity       int
	UnitPrice      int64
}

// Expired reports the derived expiry state at the given instant.
func (p *Prescription) Expired(now time.Time) bool {
	return p.Status != StatusDispensed && now.After(p.ValidUntil)
}

// Active reports whether this prescription still blocks a new issuance
// against the same appointment.
func (p *Prescription) Active(now time.Time) bool {
	return p.Status != StatusDispensed && !p.Expired(now)
}

// DisplayStatus is the status shown to callers, with derived expiry
// folded in.
func (p *Prescription) DisplayStatus(now time.Time) string {
	if p.Expired(now) {
		return DisplayStatusExpired
	}
	return string(p.Status)
}

// MedicationIDs returns the line-item medication references, used for
// inventory candidacy checks.
func (p *Prescription) MedicationIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Items))
	for _, it := range p.Items {
		ids = append(ids, it.MedicationID)
	}
	return ids
}
