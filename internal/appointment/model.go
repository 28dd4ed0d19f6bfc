package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRequested Status = "requested"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transition may leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Modality string

const (
	ModalityInPerson Modality = "in_person"
	ModalityRemote   Modality = "remote"
)

// ParseModality normalizes a modality string at the system boundary.
func ParseModality(s string) (Modality, error) {
	switch Modality(strings.ToLower(strings.TrimSpace(s))) {
	case ModalityInPerson:
		return ModalityInPerson, nil
	case ModalityRemote:
		return ModalityRemote, nil
	default:
		return "", fmt.Errorf("unknown modality %q", s)
	}
}

// RemoteChannel is the structured sub-modality of a remote visit. It
// replaces free-text note scanning with an explicit field.
type RemoteChannel string

const (
	ChannelVideo RemoteChannel = "video"
	ChannelVoice RemoteChannel = "voice"
)

func ParseRemoteChannel(s string) (RemoteChannel, error) {
	switch RemoteChannel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelVideo:
		return ChannelVideo, nil
	case ChannelVoice:
		return ChannelVoice, nil
	default:
		return "", fmt.Errorf("unknown remote channel %q", s)
	}
}

type Appointment struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	DepartmentID  *uuid.UUID
	ScheduledAt   time.Time
	Modality      Modality
	RemoteChannel *RemoteChannel
	SymptomNote   string
	ClinicalNote  string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
