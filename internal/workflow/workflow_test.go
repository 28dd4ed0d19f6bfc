package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaByeonggil/clinic-care-coordination/internal/actor"
	"github.com/NaByeonggil/clinic-care-coordination/internal/appointment"
	"github.com/NaByeonggil/clinic-care-coordination/internal/catalog"
	"github.com/NaByeonggil/clinic-care-coordination/internal/notification"
	"github.com/NaByeonggil/clinic-care-coordination/internal/prescription"
)

// In-memory collaborators. The workflow is exercised through the real
// appointment and prescription services so transition legality rules
// stay in force.

type apptRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*appointment.Appointment
}

func newApptRepo() *apptRepo {
	return &apptRepo{byID: make(map[uuid.UUID]*appointment.Appointment)}
}

func (r *apptRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *apptRepo) HasActiveBooking(_ context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.DoctorID == doctorID && a.ScheduledAt.Equal(at) && !a.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (r *apptRepo) Insert(_ context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *apptRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to appointment.Status, noteLine string) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Status = to
	if noteLine != "" {
		if a.ClinicalNote != "" {
			a.ClinicalNote += "\n"
		}
		a.ClinicalNote += noteLine
	}
	cp := *a
	return &cp, nil
}

func (r *apptRepo) Cancel(_ context.Context, id uuid.UUID, noteLine string) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Status.IsTerminal() {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Status = appointment.StatusCancelled
	if noteLine != "" {
		if a.ClinicalNote != "" {
			a.ClinicalNote += "\n"
		}
		a.ClinicalNote += noteLine
	}
	cp := *a
	return &cp, nil
}

func (r *apptRepo) List(_ context.Context, f appointment.ListFilter) ([]appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []appointment.Appointment
	for _, a := range r.byID {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		result = append(result, *a)
	}
	return result, nil
}

type rxRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*prescription.Prescription
}

func newRxRepo() *rxRepo {
	return &rxRepo{byID: make(map[uuid.UUID]*prescription.Prescription)}
}

func (r *rxRepo) GetByID(_ context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, prescription.ErrPrescriptionNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *rxRepo) Insert(_ context.Context, p *prescription.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *rxRepo) Route(_ context.Context, id, pharmacyID uuid.UUID, now time.Time) (*prescription.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok || p.Status != prescription.StatusIssued || p.ValidUntil.Before(now) {
		return nil, prescription.ErrPrescriptionNotFound
	}
	p.Status = prescription.StatusRouted
	p.PharmacyID = &pharmacyID
	cp := *p
	return &cp, nil
}

func (r *rxRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to prescription.Status) (*prescription.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok || p.Status != from {
		return nil, prescription.ErrPrescriptionNotFound
	}
	p.Status = to
	cp := *p
	return &cp, nil
}

func (r *rxRepo) List(_ context.Context, f prescription.ListFilter) ([]prescription.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []prescription.Prescription
	for _, p := range r.byID {
		result = append(result, *p)
	}
	return result, nil
}

type stubCatalog struct {
	modes  map[uuid.UUID]catalog.ConsultationModes
	prices map[uuid.UUID]int64
}

func (c *stubCatalog) DoctorModes(_ context.Context, id uuid.UUID) (catalog.ConsultationModes, error) {
	m, ok := c.modes[id]
	if !ok {
		return catalog.ConsultationModes{}, catalog.ErrDoctorNotFound
	}
	return m, nil
}

func (c *stubCatalog) UnitPrice(_ context.Context, id uuid.UUID) (int64, error) {
	p, ok := c.prices[id]
	if !ok {
		return 0, catalog.ErrMedicationNotFound
	}
	return p, nil
}

type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type notifRepo struct {
	mu     sync.Mutex
	failed bool
	stored []notification.Notification
}

func (r *notifRepo) Insert(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed {
		return errors.New("sink unavailable")
	}
	r.stored = append(r.stored, *n)
	return nil
}

func (r *notifRepo) ListForRecipient(_ context.Context, recipientID uuid.UUID, _, _ int) ([]notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []notification.Notification
	for _, n := range r.stored {
		if n.RecipientID == recipientID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (r *notifRepo) MarkRead(_ context.Context, recipientID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.stored {
		if r.stored[i].ID == id && r.stored[i].RecipientID == recipientID {
			r.stored[i].Read = true
			return nil
		}
	}
	return notification.ErrNotificationNotFound
}

func (r *notifRepo) MarkAllRead(_ context.Context, recipientID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.stored {
		if r.stored[i].RecipientID == recipientID && !r.stored[i].Read {
			r.stored[i].Read = true
			n++
		}
	}
	return n, nil
}

func (r *notifRepo) forRecipient(id uuid.UUID) []notification.Notification {
	out, _ := r.ListForRecipient(context.Background(), id, 0, 0)
	return out
}

type stubOracle struct {
	holders  []uuid.UUID
	holdsAll bool
}

func (o *stubOracle) PharmaciesHoldingAll(context.Context, []uuid.UUID) ([]uuid.UUID, error) {
	return o.holders, nil
}

func (o *stubOracle) HoldsAll(context.Context, uuid.UUID, []uuid.UUID) (bool, error) {
	return o.holdsAll, nil
}

type wfFixture struct {
	wf     *Workflow
	appts  *apptRepo
	rxs    *rxRepo
	notifs *notifRepo
	oracle *stubOracle

	patientID  uuid.UUID
	doctorID   uuid.UUID
	pharmacyID uuid.UUID
	medID      uuid.UUID
}

func newWfFixture() *wfFixture {
	f := &wfFixture{
		appts:      newApptRepo(),
		rxs:        newRxRepo(),
		notifs:     &notifRepo{},
		oracle:     &stubOracle{holdsAll: true},
		patientID:  uuid.New(),
		doctorID:   uuid.New(),
		pharmacyID: uuid.New(),
		medID:      uuid.New(),
	}
	f.oracle.holders = []uuid.UUID{f.pharmacyID}

	cat := &stubCatalog{
		modes:  map[uuid.UUID]catalog.ConsultationModes{f.doctorID: {InPerson: true, Remote: true}},
		prices: map[uuid.UUID]int64{f.medID: 4500},
	}

	apptSvc := appointment.NewService(f.appts, cat, passLocker{}, nil)
	rxSvc := prescription.NewService(f.rxs, f.appts, cat, 3, nil)
	dispatcher := notification.NewDispatcher(f.notifs, notification.DispatcherConfig{}, nil, nil)

	f.wf = New(apptSvc, rxSvc, dispatcher, f.notifs, f.oracle, nil, nil)
	return f
}

func (f *wfFixture) patient() actor.Actor {
	return actor.Actor{ID: f.patientID, Role: actor.RolePatient}
}

func (f *wfFixture) doctor() actor.Actor {
	return actor.Actor{ID: f.doctorID, Role: actor.RoleDoctor}
}

func (f *wfFixture) pharmacy() actor.Actor {
	return actor.Actor{ID: f.pharmacyID, Role: actor.RolePharmacy}
}

func (f *wfFixture) seedAppointment(status appointment.Status, scheduledAt time.Time) *appointment.Appointment {
	a := &appointment.Appointment{
		ID:          uuid.New(),
		PatientID:   f.patientID,
		DoctorID:    f.doctorID,
		ScheduledAt: scheduledAt,
		Modality:    appointment.ModalityInPerson,
		Status:      status,
	}
	_ = f.appts.Insert(context.Background(), a)
	return a
}

func (f *wfFixture) issuedPrescription(t *testing.T) *prescription.Prescription {
	t.Helper()
	appt := f.seedAppointment(appointment.StatusConfirmed, time.Now().Add(time.Hour))
	p, err := f.wf.IssuePrescription(context.Background(), f.doctor(), prescription.IssueInput{
		AppointmentID: appt.ID,
		Items:         []prescription.ItemInput{{MedicationID: f.medID, Quantity: 1}},
	})
	require.NoError(t, err)
	return p
}

func TestRequestAppointmentOwesNoNotification(t *testing.T) {
	f := newWfFixture()

	_, err := f.wf.RequestAppointment(context.Background(), f.patient(), appointment.RequestInput{
		DoctorID:    f.doctorID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
		Modality:    appointment.ModalityInPerson,
	})
	require.NoError(t, err)
	assert.Empty(t, f.notifs.stored)
}

func TestConfirmNotifiesPatient(t *testing.T) {
	f := newWfFixture()
	appt := f.seedAppointment(appointment.StatusRequested, time.Now().Add(24*time.Hour))

	_, err := f.wf.ConfirmAppointment(context.Background(), f.doctor(), appt.ID, "")
	require.NoError(t, err)

	got := f.notifs.forRecipient(f.patientID)
	require.Len(t, got, 1)
	assert.Equal(t, notification.CategoryAppointmentConfirmed, got[0].Category)
}

func TestCancelNotifiesCounterpart(t *testing.T) {
	f := newWfFixture()
	ctx := context.Background()

	byPatient := f.seedAppointment(appointment.StatusRequested, time.Now().Add(24*time.Hour))
	_, err := f.wf.CancelAppointment(ctx, f.patient(), byPatient.ID, "conflict")
	require.NoError(t, err)

	doctorInbox := f.notifs.forRecipient(f.doctorID)
	require.Len(t, doctorInbox, 1)
	assert.Equal(t, notification.CategoryAppointmentCancelled, doctorInbox[0].Category)
	assert.Contains(t, doctorInbox[0].Body, "patient")
	assert.Empty(t, f.notifs.forRecipient(f.patientID))

	byDoctor := f.seedAppointment(appointment.StatusConfirmed, time.Now().Add(48*time.Hour))
	_, err = f.wf.CancelAppointment(ctx, f.doctor(), byDoctor.ID, "")
	require.NoError(t, err)

	patientInbox := f.notifs.forRecipient(f.patientID)
	require.Len(t, patientInbox, 1)
	assert.Contains(t, patientInbox[0].Body, "doctor")
}

func TestCompleteNotifiesPatient(t *testing.T) {
	f := newWfFixture()
	appt := f.seedAppointment(appointment.StatusConfirmed, time.Now().Add(-time.Hour))

	_, err := f.wf.CompleteAppointment(context.Background(), f.doctor(), appt.ID)
	require.NoError(t, err)

	got := f.notifs.forRecipient(f.patientID)
	require.Len(t, got, 1)
	assert.Equal(t, notification.CategoryAppointmentCompleted, got[0].Category)
}

func TestRejectedTransitionOwesNoNotification(t *testing.T) {
	f := newWfFixture()
	appt := f.seedAppointment(appointment.StatusCompleted, time.Now().Add(-time.Hour))

	_, err := f.wf.ConfirmAppointment(context.Background(), f.doctor(), appt.ID, "")
	require.Error(t, err)
	assert.Empty(t, f.notifs.stored)
}

func TestIssuePrescriptionOwesNoNotification(t *testing.T) {
	f := newWfFixture()
	f.issuedPrescription(t)
	assert.Empty(t, f.notifs.stored)
}

func TestRouteEnforcesFullStockPolicy(t *testing.T) {
	f := newWfFixture()
	p := f.issuedPrescription(t)
	f.oracle.holdsAll = false

	_, err := f.wf.RoutePrescription(context.Background(), f.patient(), p.ID, f.pharmacyID)
	assert.ErrorIs(t, err, ErrPharmacyOutOfStock)

	// The rejection happens before the transition; the prescription is
	// still routable elsewhere.
	stored, err := f.rxs.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, prescription.StatusIssued, stored.Status)
	assert.Empty(t, f.notifs.stored)
}

func TestRouteNotifiesPharmacy(t *testing.T) {
	f := newWfFixture()
	p := f.issuedPrescription(t)

	routed, err := f.wf.RoutePrescription(context.Background(), f.patient(), p.ID, f.pharmacyID)
	require.NoError(t, err)
	assert.Equal(t, prescription.StatusRouted, routed.Status)

	inbox := f.notifs.forRecipient(f.pharmacyID)
	require.Len(t, inbox, 1)
	assert.Equal(t, notification.CategoryNewPrescription, inbox[0].Category)
	assert.Contains(t, inbox[0].Body, p.RxNumber)
}

func TestDispenseNotifiesPatient(t *testing.T) {
	f := newWfFixture()
	p := f.issuedPrescription(t)
	ctx := context.Background()

	_, err := f.wf.RoutePrescription(ctx, f.patient(), p.ID, f.pharmacyID)
	require.NoError(t, err)

	_, err = f.wf.DispensePrescription(ctx, f.pharmacy(), p.ID)
	require.NoError(t, err)

	inbox := f.notifs.forRecipient(f.patientID)
	require.Len(t, inbox, 1)
	assert.Equal(t, notification.CategoryPrescriptionDispensed, inbox[0].Category)
}

func TestCandidatePharmacies(t *testing.T) {
	f := newWfFixture()
	p := f.issuedPrescription(t)

	got, err := f.wf.CandidatePharmacies(context.Background(), f.patient(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.pharmacyID}, got)
}

func TestNotificationFailureDoesNotFailTransition(t *testing.T) {
	f := newWfFixture()
	appt := f.seedAppointment(appointment.StatusRequested, time.Now().Add(24*time.Hour))
	f.notifs.failed = true

	updated, err := f.wf.ConfirmAppointment(context.Background(), f.doctor(), appt.ID, "")
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusConfirmed, updated.Status)
	assert.Empty(t, f.notifs.stored)
}

func TestMarkNotificationReadScopedToRecipient(t *testing.T) {
	f := newWfFixture()
	appt := f.seedAppointment(appointment.StatusRequested, time.Now().Add(24*time.Hour))
	ctx := context.Background()

	_, err := f.wf.ConfirmAppointment(ctx, f.doctor(), appt.ID, "")
	require.NoError(t, err)

	inbox, err := f.wf.ListNotifications(ctx, f.patient(), 0, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)

	// The doctor cannot ack the patient's notification.
	err = f.wf.MarkNotificationRead(ctx, f.doctor(), inbox[0].ID)
	assert.ErrorIs(t, err, notification.ErrNotificationNotFound)

	require.NoError(t, f.wf.MarkNotificationRead(ctx, f.patient(), inbox[0].ID))

	inbox, err = f.wf.ListNotifications(ctx, f.patient(), 0, 0)
	require.NoError(t, err)
	assert.True(t, inbox[0].Read)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	f := newWfFixture()
	ctx := context.Background()

	first := f.seedAppointment(appointment.StatusRequested, time.Now().Add(24*time.Hour))
	_, err := f.wf.ConfirmAppointment(ctx, f.doctor(), first.ID, "")
	require.NoError(t, err)

	second := f.seedAppointment(appointment.StatusConfirmed, time.Now().Add(-time.Hour))
	_, err = f.wf.CompleteAppointment(ctx, f.doctor(), second.ID)
	require.NoError(t, err)

	n, err := f.wf.MarkAllNotificationsRead(ctx, f.patient())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = f.wf.MarkAllNotificationsRead(ctx, f.patient())
	require.NoError(t, err)
	assert.Zero(t, n)
}
