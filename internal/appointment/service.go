package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NaByeonggil/clinic-care-coordination/internal/actor"
	"github.com/NaByeonggil/clinic-care-coordination/internal/catalog"
	redisclient "github.com/NaByeonggil/clinic-care-coordination/internal/redis"
)

var (
	ErrNotPatient           = errors.New("only a patient may request an appointment")
	ErrInvalidSlot          = errors.New("scheduled time must be in the future")
	ErrSlotTaken            = errors.New("doctor already has a booking for this slot")
	ErrSlotBeingBooked      = errors.New("slot is currently being booked, please retry")
	ErrProviderUnavailable  = errors.New("doctor does not offer the requested consultation modality")
	ErrMissingRemoteChannel = errors.New("remote appointments require a video or voice channel")
	ErrInvalidTransition    = errors.New("appointment status does not permit this transition")
	ErrNotAppointmentDoctor = errors.New("only the appointment's doctor may perform this action")
	ErrNotAppointmentParty  = errors.New("only the appointment's patient or doctor may cancel it")
	ErrTooEarly             = errors.New("appointment cannot be completed before its scheduled time")
)

// Service owns the appointment lifecycle. Every transition is a
// conditional update against the expected current status, so concurrent
// actors cannot both win the same edge.
type Service struct {
	repo   Repository
	dir    catalog.Directory
	locker redisclient.Locker
	logger *zap.Logger
}

func NewService(repo Repository, dir catalog.Directory, locker redisclient.Locker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		dir:    dir,
		locker: locker,
		logger: logger,
	}
}

type RequestInput struct {
	DoctorID      uuid.UUID
	DepartmentID  *uuid.UUID
	ScheduledAt   time.Time
	Modality      Modality
	RemoteChannel *RemoteChannel
	SymptomNote   string
}

// Request books a new appointment in requested status. The per-slot lock
// keeps two patients from passing the overlap check for the same doctor
// and time at once.
func (s *Service) Request(ctx context.Context, act actor.Actor, in RequestInput) (*Appointment, error) {
	if !act.IsPatient() {
		return nil, ErrNotPatient
	}
	if !in.ScheduledAt.After(time.Now()) {
		return nil, ErrInvalidSlot
	}
	if in.Modality == ModalityRemote && in.RemoteChannel == nil {
		return nil, ErrMissingRemoteChannel
	}
	if in.Modality == ModalityInPerson {
		in.RemoteChannel = nil
	}

	modes, err := s.dir.DoctorModes(ctx, in.DoctorID)
	if err != nil {
		if errors.Is(err, catalog.ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor modes: %w", err)
	}
	if (in.Modality == ModalityRemote && !modes.Remote) ||
		(in.Modality == ModalityInPerson && !modes.InPerson) {
		return nil, ErrProviderUnavailable
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, in.DoctorID, in.ScheduledAt, func(lockCtx context.Context) error {
		taken, err := s.repo.HasActiveBooking(lockCtx, in.DoctorID, in.ScheduledAt)
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if taken {
			return ErrSlotTaken
		}

		a := &Appointment{
			ID:            uuid.New(),
			PatientID:     act.ID,
			DoctorID:      in.DoctorID,
			DepartmentID:  in.DepartmentID,
			ScheduledAt:   in.ScheduledAt,
			Modality:      in.Modality,
			RemoteChannel: in.RemoteChannel,
			SymptomNote:   in.SymptomNote,
			Status:        StatusRequested,
		}
		if err := s.repo.Insert(lockCtx, a); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = a
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logger.Info("appointment requested",
		zap.String("appointment_id", created.ID.String()),
		zap.String("doctor_id", in.DoctorID.String()),
		zap.Time("scheduled_at", in.ScheduledAt))

	return created, nil
}

// Confirm moves a requested appointment to confirmed. Doctor only.
func (s *Service) Confirm(ctx context.Context, act actor.Actor, id uuid.UUID, note string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !act.IsDoctor() || act.ID != appt.DoctorID {
		return nil, ErrNotAppointmentDoctor
	}
	if appt.Status != StatusRequested {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusRequested, StatusConfirmed, note)
	if err != nil {
		// The row existed a moment ago; zero matched rows means another
		// actor won the transition race.
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}
	return updated, nil
}

// Cancel moves a requested or confirmed appointment to cancelled. Legal
// for the appointment's patient or doctor; the reason is appended to the
// clinical note, never overwriting history.
func (s *Service) Cancel(ctx context.Context, act actor.Actor, id uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	isPatient := act.IsPatient() && act.ID == appt.PatientID
	isDoctor := act.IsDoctor() && act.ID == appt.DoctorID
	if !isPatient && !isDoctor {
		return nil, ErrNotAppointmentParty
	}
	if appt.Status.IsTerminal() {
		return nil, ErrInvalidTransition
	}

	noteLine := fmt.Sprintf("[cancelled by %s at %s]", act.Role, time.Now().UTC().Format(time.RFC3339))
	if reason != "" {
		noteLine += " " + reason
	}

	updated, err := s.repo.Cancel(ctx, id, noteLine)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}
	return updated, nil
}

// Complete closes a confirmed appointment after its scheduled time.
// Doctor only.
func (s *Service) Complete(ctx context.Context, act actor.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !act.IsDoctor() || act.ID != appt.DoctorID {
		return nil, ErrNotAppointmentDoctor
	}
	if appt.Status != StatusConfirmed {
		return nil, ErrInvalidTransition
	}
	if time.Now().Before(appt.ScheduledAt) {
		return nil, ErrTooEarly
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusConfirmed, StatusCompleted, "")
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}
	return updated, nil
}

// GetByID loads one appointment, restricted to its own parties.
func (s *Service) GetByID(ctx context.Context, act actor.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if act.ID != appt.PatientID && act.ID != appt.DoctorID {
		return nil, ErrAppointmentNotFound
	}
	return appt, nil
}

// ListForActor returns the actor's own appointments: a patient sees the
// ones they booked, a doctor the ones booked with them.
func (s *Service) ListForActor(ctx context.Context, act actor.Actor, status *Status, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	f := ListFilter{Status: status, Limit: limit, Offset: offset}
	switch {
	case act.IsPatient():
		f.PatientID = &act.ID
	case act.IsDoctor():
		f.DoctorID = &act.ID
	default:
		return []Appointment{}, nil
	}

	appointments, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}
