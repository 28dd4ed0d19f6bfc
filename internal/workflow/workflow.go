// Package workflow is the coordination layer invoked by request
// handlers. It sequences a state-machine call with its side effects:
// the status write commits first, and only then is the dependent
// notification handed to the dispatcher. A failed notification never
// rolls back or re-reports the committed transition.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NaByeonggil/clinic-care-coordination/internal/actor"
	"github.com/NaByeonggil/clinic-care-coordination/internal/appointment"
	"github.com/NaByeonggil/clinic-care-coordination/internal/inventory"
	"github.com/NaByeonggil/clinic-care-coordination/internal/notification"
	"github.com/NaByeonggil/clinic-care-coordination/internal/observability/metrics"
	"github.com/NaByeonggil/clinic-care-coordination/internal/prescription"
)

var (
	// ErrPharmacyOutOfStock enforces the full-stock routing policy: a
	// pharmacy must hold every prescribed medication to receive the
	// prescription.
	ErrPharmacyOutOfStock = errors.New("chosen pharmacy does not stock every prescribed medication")
)

// Notifier is the write side of the notification sink as the workflow
// sees it. Delivery is fire-and-forget; failures are the dispatcher's
// problem.
type Notifier interface {
	Deliver(ctx context.Context, n *notification.Notification)
}

type Workflow struct {
	appointments  *appointment.Service
	prescriptions *prescription.Service
	notifier      Notifier
	notifications notification.Repository
	oracle        inventory.Oracle
	metrics       *metrics.WorkflowMetrics
	logger        *zap.Logger
}

func New(
	appointments *appointment.Service,
	prescriptions *prescription.Service,
	notifier Notifier,
	notifications notification.Repository,
	oracle inventory.Oracle,
	m *metrics.WorkflowMetrics,
	logger *zap.Logger,
) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		appointments:  appointments,
		prescriptions: prescriptions,
		notifier:      notifier,
		notifications: notifications,
		oracle:        oracle,
		metrics:       m,
		logger:        logger,
	}
}

func (w *Workflow) outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "rejected"
}

// RequestAppointment books a new appointment. No notification is owed at
// creation; confirming is the doctor's move.
func (w *Workflow) RequestAppointment(ctx context.Context, act actor.Actor, in appointment.RequestInput) (*appointment.Appointment, error) {
	appt, err := w.appointments.Request(ctx, act, in)
	w.metrics.ObserveTransition("appointment", "request", w.outcome(err))
	return appt, err
}

// ConfirmAppointment confirms and notifies the patient.
func (w *Workflow) ConfirmAppointment(ctx context.Context, act actor.Actor, id uuid.UUID, note string) (*appointment.Appointment, error) {
	appt, err := w.appointments.Confirm(ctx, act, id, note)
	w.metrics.ObserveTransition("appointment", "confirm", w.outcome(err))
	if err != nil {
		return nil, err
	}

	w.notify(ctx, appt.PatientID, notification.CategoryAppointmentConfirmed,
		"Appointment confirmed",
		fmt.Sprintf("Your appointment on %s has been confirmed.", appt.ScheduledAt.Format(time.RFC1123)))

	return appt, nil
}

// CancelAppointment cancels and notifies the counterpart of whoever
// cancelled: the doctor when the patient cancels, and vice versa.
func (w *Workflow) CancelAppointment(ctx context.Context, act actor.Actor, id uuid.UUID, reason string) (*appointment.Appointment, error) {
	appt, err := w.appointments.Cancel(ctx, act, id, reason)
	w.metrics.ObserveTransition("appointment", "cancel", w.outcome(err))
	if err != nil {
		return nil, err
	}

	recipient := appt.PatientID
	if act.ID == appt.PatientID {
		recipient = appt.DoctorID
	}
	body := fmt.Sprintf("The appointment on %s was cancelled by the %s.", appt.ScheduledAt.Format(time.RFC1123), act.Role)
	if reason != "" {
		body += " Reason: " + reason
	}
	w.notify(ctx, recipient, notification.CategoryAppointmentCancelled, "Appointment cancelled", body)

	return appt, nil
}

// CompleteAppointment closes the visit and notifies the patient.
func (w *Workflow) CompleteAppointment(ctx context.Context, act actor.Actor, id uuid.UUID) (*appointment.Appointment, error) {
	appt, err := w.appointments.Complete(ctx, act, id)
	w.metrics.ObserveTransition("appointment", "complete", w.outcome(err))
	if err != nil {
		return nil, err
	}

	w.notify(ctx, appt.PatientID, notification.CategoryAppointmentCompleted,
		"Visit completed",
		fmt.Sprintf("Your visit on %s has been marked completed.", appt.ScheduledAt.Format(time.RFC1123)))

	return appt, nil
}

// IssuePrescription drafts a prescription against a visit. The patient is
// not notified here: routing is their own explicit next step.
func (w *Workflow) IssuePrescription(ctx context.Context, act actor.Actor, in prescription.IssueInput) (*prescription.Prescription, error) {
	p, err := w.prescriptions.Issue(ctx, act, in)
	w.metrics.ObserveTransition("prescription", "issue", w.outcome(err))
	return p, err
}

// CandidatePharmacies lists pharmacies holding stock of every line item.
func (w *Workflow) CandidatePharmacies(ctx context.Context, act actor.Actor, prescriptionID uuid.UUID) ([]uuid.UUID, error) {
	p, err := w.prescriptions.GetByID(ctx, act, prescriptionID)
	if err != nil {
		return nil, err
	}
	return w.oracle.PharmaciesHoldingAll(ctx, p.MedicationIDs())
}

// RoutePrescription sends the prescription to the patient's chosen
// pharmacy, provided it stocks every line item, then notifies that
// pharmacy.
func (w *Workflow) RoutePrescription(ctx context.Context, act actor.Actor, prescriptionID, pharmacyID uuid.UUID) (*prescription.Prescription, error) {
	p, err := w.prescriptions.GetByID(ctx, act, prescriptionID)
	if err != nil {
		return nil, err
	}

	ok, err := w.oracle.HoldsAll(ctx, pharmacyID, p.MedicationIDs())
	if err != nil {
		return nil, fmt.Errorf("check pharmacy stock: %w", err)
	}
	if !ok {
		w.metrics.ObserveTransition("prescription", "route", "rejected")
		return nil, ErrPharmacyOutOfStock
	}

	routed, err := w.prescriptions.Route(ctx, act, prescriptionID, pharmacyID)
	w.metrics.ObserveTransition("prescription", "route", w.outcome(err))
	if err != nil {
		return nil, err
	}

	w.notify(ctx, pharmacyID, notification.CategoryNewPrescription,
		"New prescription",
		fmt.Sprintf("Prescription %s has been routed to your pharmacy.", routed.RxNumber))

	return routed, nil
}

// DispensePrescription closes the loop and tells the patient their
// medication is ready.
func (w *Workflow) DispensePrescription(ctx context.Context, act actor.Actor, prescriptionID uuid.UUID) (*prescription.Prescription, error) {
	p, err := w.prescriptions.Dispense(ctx, act, prescriptionID)
	w.metrics.ObserveTransition("prescription", "dispense", w.outcome(err))
	if err != nil {
		return nil, err
	}

	w.notify(ctx, p.PatientID, notification.CategoryPrescriptionDispensed,
		"Prescription dispensed",
		fmt.Sprintf("Prescription %s has been dispensed.", p.RxNumber))

	return p, nil
}

// GetAppointment reads one appointment on behalf of one of its parties.
func (w *Workflow) GetAppointment(ctx context.Context, act actor.Actor, id uuid.UUID) (*appointment.Appointment, error) {
	return w.appointments.GetByID(ctx, act, id)
}

// ListAppointments returns the actor's role-filtered appointment view.
func (w *Workflow) ListAppointments(ctx context.Context, act actor.Actor, status *appointment.Status, limit, offset int) ([]appointment.Appointment, error) {
	return w.appointments.ListForActor(ctx, act, status, limit, offset)
}

// GetPrescription reads one prescription on behalf of one of its parties.
func (w *Workflow) GetPrescription(ctx context.Context, act actor.Actor, id uuid.UUID) (*prescription.Prescription, error) {
	return w.prescriptions.GetByID(ctx, act, id)
}

// ListPrescriptions returns the actor's role-filtered prescription view.
func (w *Workflow) ListPrescriptions(ctx context.Context, act actor.Actor, limit, offset int) ([]prescription.Prescription, error) {
	return w.prescriptions.ListForActor(ctx, act, limit, offset)
}

// ListNotifications reads the actor's own notification log.
func (w *Workflow) ListNotifications(ctx context.Context, act actor.Actor, limit, offset int) ([]notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return w.notifications.ListForRecipient(ctx, act.ID, limit, offset)
}

// MarkNotificationRead acks a single notification.
func (w *Workflow) MarkNotificationRead(ctx context.Context, act actor.Actor, id uuid.UUID) error {
	return w.notifications.MarkRead(ctx, act.ID, id)
}

// MarkAllNotificationsRead acks the actor's whole backlog.
func (w *Workflow) MarkAllNotificationsRead(ctx context.Context, act actor.Actor) (int64, error) {
	return w.notifications.MarkAllRead(ctx, act.ID)
}

func (w *Workflow) notify(ctx context.Context, recipient uuid.UUID, category notification.Category, title, body string) {
	w.notifier.Deliver(ctx, &notification.Notification{
		ID:          uuid.New(),
		RecipientID: recipient,
		Title:       title,
		Body:        body,
		Category:    category,
	})
}
