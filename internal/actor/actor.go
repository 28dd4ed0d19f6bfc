// Package actor defines the caller identity passed explicitly into every
// workflow operation. Roles are a closed enum normalized once at the
// system boundary; business logic never compares raw strings.
package actor

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient  Role = "patient"
	RoleDoctor   Role = "doctor"
	RolePharmacy Role = "pharmacy"
)

// ParseRole normalizes a role string to the canonical enum.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePatient:
		return RolePatient, nil
	case RoleDoctor:
		return RoleDoctor, nil
	case RolePharmacy:
		return RolePharmacy, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Actor is the authenticated caller as resolved by the upstream identity
// service. The workflow trusts this value as-is.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsPatient() bool  { return a.Role == RolePatient }
func (a Actor) IsDoctor() bool   { return a.Role == RoleDoctor }
func (a Actor) IsPharmacy() bool { return a.Role == RolePharmacy }
