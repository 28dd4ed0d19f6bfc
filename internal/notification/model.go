// Package notification is the append-only per-user message log. Rows are
// written as side effects of workflow transitions and mutated only by the
// recipient's mark-read action.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Category tags a notification with the transition that produced it.
type Category string

const (
	CategoryAppointmentConfirmed  Category = "appointment-confirmed"
	CategoryAppointmentCancelled  Category = "appointment-cancelled"
	CategoryAppointmentCompleted  Category = "appointment-completed"
	CategoryNewPrescription       Category = "new-prescription"
	CategoryPrescriptionDispensed Category = "prescription-dispensed"
)

type Notification struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	Title       string
	Body        string
	Category    Category
	Read        bool
	CreatedAt   time.Time
}
