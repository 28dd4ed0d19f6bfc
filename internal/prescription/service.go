package prescription

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NaByeonggil/clinic-care-coordination/internal/actor"
	"github.com/NaByeonggil/clinic-care-coordination/internal/appointment"
	"github.com/NaByeonggil/clinic-care-coordination/internal/catalog"
)

var (
	ErrNotDoctor            = errors.New("only a doctor may issue a prescription")
	ErrNotAppointmentDoctor = errors.New("only the doctor who held the appointment may issue a prescription for it")
	ErrAppointmentNotReady  = errors.New("prescriptions require a confirmed or completed appointment")
	ErrNoItems              = errors.New("a prescription needs at least one line item")
	ErrInvalidQuantity      = errors.New("line item quantities must be at least 1")
	ErrNotPrescriptionOwner = errors.New("only the patient the prescription was issued to may route it")
	ErrNotRoutedPharmacy    = errors.New("prescription is routed to a different pharmacy")
	ErrInvalidTransition    = errors.New("prescription status does not permit this transition")
	ErrExpired              = errors.New("prescription validity deadline has passed")
)

const rxNumberAttempts = 3

// Appointments is the read surface the prescription service needs from
// the appointment module.
type Appointments interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

// Service owns the prescription lifecycle from issuance through routing
// to dispensing.
type Service struct {
	repo         Repository
	appointments Appointments
	prices       catalog.PriceList
	validityDays int
	logger       *zap.Logger
}

func NewService(repo Repository, appointments Appointments, prices catalog.PriceList, defaultValidityDays int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultValidityDays <= 0 {
		defaultValidityDays = 3
	}
	return &Service{
		repo:         repo,
		appointments: appointments,
		prices:       prices,
		validityDays: defaultValidityDays,
		logger:       logger,
	}
}

type ItemInput struct {
	MedicationID uuid.UUID
	Dosage       string
	Frequency    string
	Duration     string
	Quantity     int
}

type IssueInput struct {
	AppointmentID uuid.UUID
	Diagnosis     string
	Items         []ItemInput
	ValidityDays  int
}

// Issue creates a prescription against a confirmed or completed
// appointment. Unit prices are snapshotted from the medication catalog at
// this moment; the total is fixed from then on.
func (s *Service) Issue(ctx context.Context, act actor.Actor, in IssueInput) (*Prescription, error) {
	if !act.IsDoctor() {
		return nil, ErrNotDoctor
	}
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}

	appt, err := s.appointments.GetByID(ctx, in.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != act.ID {
		return nil, ErrNotAppointmentDoctor
	}
	if appt.Status != appointment.StatusConfirmed && appt.Status != appointment.StatusCompleted {
		return nil, ErrAppointmentNotReady
	}

	now := time.Now().UTC()
	days := in.ValidityDays
	if days <= 0 {
		days = s.validityDays
	}

	var total int64
	items := make([]Item, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		price, err := s.prices.UnitPrice(ctx, it.MedicationID)
		if err != nil {
			return nil, err
		}
		total += price * int64(it.Quantity)
		items = append(items, Item{
			ID:           uuid.New(),
			MedicationID: it.MedicationID,
			Dosage:       it.Dosage,
			Frequency:    it.Frequency,
			Duration:     it.Duration,
			Quantity:     it.Quantity,
			UnitPrice:    price,
		})
	}

	p := &Prescription{
		ID:            uuid.New(),
		PatientID:     appt.PatientID,
		DoctorID:      act.ID,
		AppointmentID: appt.ID,
		Diagnosis:     in.Diagnosis,
		TotalPrice:    total,
		Status:        StatusIssued,
		IssuedAt:      now,
		ValidUntil:    now.AddDate(0, 0, days),
		Items:         items,
	}

	// The rx number contract is uniqueness, not format; the unique index
	// is the arbiter, so regenerate on collision.
	for attempt := 0; ; attempt++ {
		p.RxNumber = newRxNumber(now)
		err = s.repo.Insert(ctx, p)
		if err == nil {
			break
		}
		if errors.Is(err, ErrDuplicateRxNumber) && attempt < rxNumberAttempts-1 {
			continue
		}
		return nil, err
	}

	s.logger.Info("prescription issued",
		zap.String("prescription_id", p.ID.String()),
		zap.String("rx_number", p.RxNumber),
		zap.String("appointment_id", appt.ID.String()),
		zap.Int64("total_price", total))

	return p, nil
}

func newRxNumber(now time.Time) string {
	return fmt.Sprintf("RX-%s-%06d", now.Format("20060102"), rand.Intn(1_000_000))
}

// Route assigns the patient's chosen pharmacy and transitions
// issued -> routed. Legal only before the validity deadline.
func (s *Service) Route(ctx context.Context, act actor.Actor, id, pharmacyID uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !act.IsPatient() || act.ID != p.PatientID {
		return nil, ErrNotPrescriptionOwner
	}

	now := time.Now()
	if p.Expired(now) {
		return nil, fmt.Errorf("%w (deadline was %s)", ErrExpired, p.ValidUntil.UTC().Format(time.RFC3339))
	}
	if p.Status != StatusIssued {
		return nil, ErrInvalidTransition
	}

	routed, err := s.repo.Route(ctx, id, pharmacyID, now)
	if err != nil {
		if errors.Is(err, ErrPrescriptionNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("route prescription: %w", err)
	}
	return routed, nil
}

// Dispense closes a routed prescription. Legal only for the pharmacy it
// was routed to.
func (s *Service) Dispense(ctx context.Context, act actor.Actor, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !act.IsPharmacy() || p.PharmacyID == nil || *p.PharmacyID != act.ID {
		return nil, ErrNotRoutedPharmacy
	}
	if p.Status != StatusRouted {
		return nil, ErrInvalidTransition
	}

	dispensed, err := s.repo.UpdateStatus(ctx, id, StatusRouted, StatusDispensed)
	if err != nil {
		if errors.Is(err, ErrPrescriptionNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("dispense prescription: %w", err)
	}
	return dispensed, nil
}

// GetByID loads one prescription, restricted to its own parties.
func (s *Service) GetByID(ctx context.Context, act actor.Actor, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case act.ID == p.PatientID, act.ID == p.DoctorID:
	case p.PharmacyID != nil && act.ID == *p.PharmacyID:
	default:
		return nil, ErrPrescriptionNotFound
	}
	return p, nil
}

// ListForActor returns the actor's own prescriptions: a patient sees the
// ones issued to them, a doctor the ones they issued, a pharmacy the ones
// routed to it.
func (s *Service) ListForActor(ctx context.Context, act actor.Actor, limit, offset int) ([]Prescription, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	f := ListFilter{Limit: limit, Offset: offset}
	switch {
	case act.IsPatient():
		f.PatientID = &act.ID
	case act.IsDoctor():
		f.DoctorID = &act.ID
	case act.IsPharmacy():
		f.PharmacyID = &act.ID
	default:
		return []Prescription{}, nil
	}

	prescriptions, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	return prescriptions, nil
}
