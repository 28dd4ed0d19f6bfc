package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/NaByeonggil/clinic-care-coordination/internal/appointment"
	"github.com/NaByeonggil/clinic-care-coordination/internal/notification"
	"github.com/NaByeonggil/clinic-care-coordination/internal/prescription"
)

type RequestAppointmentRequest struct {
	DoctorID      string    `json:"doctor_id"`
	DepartmentID  string    `json:"department_id,omitempty"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Modality      string    `json:"modality"`
	RemoteChannel string    `json:"remote_channel,omitempty"`
	SymptomNote   string    `json:"symptom_note,omitempty"`
}

type ConfirmAppointmentRequest struct {
	Note string `json:"note,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	DepartmentID  *uuid.UUID `json:"department_id,omitempty"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	Modality      string     `json:"modality"`
	RemoteChannel *string    `json:"remote_channel,omitempty"`
	SymptomNote   string     `json:"symptom_note"`
	ClinicalNote  string     `json:"clinical_note"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	var channel *string
	if a.RemoteChannel != nil {
		c := string(*a.RemoteChannel)
		channel = &c
	}
	return AppointmentResponse{
		ID:            a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		DepartmentID:  a.DepartmentID,
		ScheduledAt:   a.ScheduledAt,
		Modality:      string(a.Modality),
		RemoteChannel: channel,
		SymptomNote:   a.SymptomNote,
		ClinicalNote:  a.ClinicalNote,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

type PrescriptionItemRequest struct {
	MedicationID string `json:"medication_id"`
	Dosage       string `json:"dosage,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Quantity     int    `json:"quantity"`
}

type IssuePrescriptionRequest struct {
	AppointmentID string                    `json:"appointment_id"`
	Diagnosis     string                    `json:"diagnosis,omitempty"`
	ValidityDays  int                       `json:"validity_days,omitempty"`
	Items         []PrescriptionItemRequest `json:"items"`
}

type RoutePrescriptionRequest struct {
	PharmacyID string `json:"pharmacy_id"`
}

type PrescriptionItemResponse struct {
	MedicationID uuid.UUID `json:"medication_id"`
	Dosage       string    `json:"dosage"`
	Frequency    string    `json:"frequency"`
	Duration     string    `json:"duration"`
	Quantity     int       `json:"quantity"`
	UnitPrice    int64     `json:"unit_price"`
}

type PrescriptionResponse struct {
	ID            uuid.UUID                  `json:"id"`
	RxNumber      string                     `json:"rx_number"`
	PatientID     uuid.UUID                  `json:"patient_id"`
	DoctorID      uuid.UUID                  `json:"doctor_id"`
	AppointmentID uuid.UUID                  `json:"appointment_id"`
	PharmacyID    *uuid.UUID                 `json:"pharmacy_id,omitempty"`
	Diagnosis     string                     `json:"diagnosis"`
	TotalPrice    int64                      `json:"total_price"`
	Status        string                     `json:"status"`
	IssuedAt      time.Time                  `json:"issued_at"`
	ValidUntil    time.Time                  `json:"valid_until"`
	Items         []PrescriptionItemResponse `json:"items,omitempty"`
}

// toPrescriptionResponse folds derived expiry into the status shown to
// callers.
func toPrescriptionResponse(p *prescription.Prescription) PrescriptionResponse {
	items := make([]PrescriptionItemResponse, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, PrescriptionItemResponse{
			MedicationID: it.MedicationID,
			Dosage:       it.Dosage,
			Frequency:    it.Frequency,
			Duration:     it.Duration,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
		})
	}
	return PrescriptionResponse{
		ID:            p.ID,
		RxNumber:      p.RxNumber,
		PatientID:     p.PatientID,
		DoctorID:      p.DoctorID,
		AppointmentID: p.AppointmentID,
		PharmacyID:    p.PharmacyID,
		Diagnosis:     p.Diagnosis,
		TotalPrice:    p.TotalPrice,
		Status:        p.DisplayStatus(time.Now()),
		IssuedAt:      p.IssuedAt,
		ValidUntil:    p.ValidUntil,
		Items:         items,
	}
}

type CandidatePharmaciesResponse struct {
	PharmacyIDs []uuid.UUID `json:"pharmacy_ids"`
}

type NotificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotificationResponse(n notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.Body,
		Category:  string(n.Category),
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// MarkReadRequest acks one notification, or the whole backlog when
// notification_id is "all".
type MarkReadRequest struct {
	NotificationID string `json:"notification_id"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}
